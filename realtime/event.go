package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind names an event on a room channel. The string is the wire event name.
type Kind string

const (
	KindCodeUpdate      Kind = "code-update"
	KindLanguageUpdate  Kind = "language-update"
	KindTerminalsUpdate Kind = "terminals-update"
	KindFileSelection   Kind = "file-selection"
)

// ChannelPrefix starts every room channel name.
const ChannelPrefix = "room-"

// ChannelName is the broadcast address of a room.
func ChannelName(roomID string) string {
	return ChannelPrefix + roomID
}

// RoomFromChannel is the inverse of ChannelName.
func RoomFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, ChannelPrefix) || len(channel) == len(ChannelPrefix) {
		return "", false
	}
	return strings.TrimPrefix(channel, ChannelPrefix), true
}

// Payload is the kind-specific part of an event.
type Payload interface {
	Kind() Kind
	validate() error
	// message builds the wire object sent on the channel.
	message(m meta) any
}

// meta carries the fields every wire object shares.
type meta struct {
	UserID    uint
	Username  string
	Timestamp time.Time
}

func (m meta) stamp() string {
	return m.Timestamp.UTC().Format(time.RFC3339Nano)
}

// Event is one published occurrence. It only lives for the duration of a
// Publish call.
type Event struct {
	Kind      Kind
	RoomID    string
	ActorID   uint
	Payload   Payload
	Timestamp time.Time
}

type CodeUpdate struct {
	Code string `json:"code"`
}

func (CodeUpdate) Kind() Kind { return KindCodeUpdate }

func (p CodeUpdate) validate() error {
	if p.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidPayload)
	}
	return nil
}

func (p CodeUpdate) message(m meta) any {
	return struct {
		Code      string `json:"code"`
		UserID    uint   `json:"userId"`
		Timestamp string `json:"timestamp"`
	}{p.Code, m.UserID, m.stamp()}
}

type LanguageUpdate struct {
	Language string `json:"language"`
}

func (LanguageUpdate) Kind() Kind { return KindLanguageUpdate }

func (p LanguageUpdate) validate() error {
	if strings.TrimSpace(p.Language) == "" {
		return fmt.Errorf("%w: language is required", ErrInvalidPayload)
	}
	return nil
}

func (p LanguageUpdate) message(m meta) any {
	return struct {
		Language  string `json:"language"`
		UserID    uint   `json:"userId"`
		Timestamp string `json:"timestamp"`
	}{p.Language, m.UserID, m.stamp()}
}

// TerminalsUpdate relays terminal state. Input and Output are passed through
// untouched, whatever shape the client uses.
type TerminalsUpdate struct {
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
	IsLoading bool            `json:"isLoading"`
}

func (TerminalsUpdate) Kind() Kind { return KindTerminalsUpdate }

func (TerminalsUpdate) validate() error { return nil }

func (p TerminalsUpdate) message(m meta) any {
	return struct {
		Input     json.RawMessage `json:"input"`
		Output    json.RawMessage `json:"output"`
		IsLoading bool            `json:"isLoading"`
		UserID    uint            `json:"userId"`
		Timestamp string          `json:"timestamp"`
	}{rawOrNull(p.Input), rawOrNull(p.Output), p.IsLoading, m.UserID, m.stamp()}
}

type FileSelection struct {
	File json.RawMessage `json:"file"`
}

func (FileSelection) Kind() Kind { return KindFileSelection }

func (p FileSelection) validate() error {
	if len(p.File) == 0 || string(p.File) == "null" {
		return fmt.Errorf("%w: file is required", ErrInvalidPayload)
	}
	return nil
}

func (p FileSelection) message(m meta) any {
	return struct {
		File      json.RawMessage `json:"file"`
		UserID    uint            `json:"userId"`
		Username  string          `json:"username"`
		Timestamp string          `json:"timestamp"`
	}{p.File, m.UserID, m.Username, m.stamp()}
}

func rawOrNull(r json.RawMessage) json.RawMessage {
	if len(r) == 0 {
		return json.RawMessage("null")
	}
	return r
}
