package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// HistoryCapacity is how many recently visited rooms a user keeps.
const HistoryCapacity = 5

// RoomHistory is a bounded ordered set of public room ids, oldest first.
// Visiting a room already present moves it to the end; overflow evicts
// from the front.
type RoomHistory []string

// Visit returns the history with roomID as the most recent entry.
func (h RoomHistory) Visit(roomID string) RoomHistory {
	out := h.Remove(roomID)
	out = append(out, roomID)
	if len(out) > HistoryCapacity {
		out = out[len(out)-HistoryCapacity:]
	}
	return out
}

// Remove returns a copy of the history without roomID.
func (h RoomHistory) Remove(roomID string) RoomHistory {
	out := make(RoomHistory, 0, HistoryCapacity+1)
	for _, id := range h {
		if id != roomID {
			out = append(out, id)
		}
	}
	return out
}

// Newest returns the ids most recent first.
func (h RoomHistory) Newest() []string {
	out := make([]string, 0, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out = append(out, h[i])
	}
	return out
}

// normalize collapses duplicates (keeping the latest position) and trims to
// capacity. Rows written before the cap existed can hold either.
func (h RoomHistory) normalize() RoomHistory {
	out := RoomHistory{}
	for _, id := range h {
		if id == "" {
			continue
		}
		out = out.Visit(id)
	}
	return out
}

func (h RoomHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(h))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (h *RoomHistory) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*h = RoomHistory{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("room history: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*h = RoomHistory{}
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("room history: %w", err)
	}
	*h = RoomHistory(ids).normalize()
	return nil
}
