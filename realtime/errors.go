package realtime

import "errors"

var (
	// ErrConfiguration means the broadcast transport cannot work. It is
	// detected at startup and returned by every Publish afterwards.
	ErrConfiguration = errors.New("realtime: broadcast transport misconfigured")
	// ErrUpstreamLookup means enriching an event from the identity directory
	// failed; nothing was emitted.
	ErrUpstreamLookup = errors.New("realtime: identity lookup failed")
	ErrInvalidPayload = errors.New("realtime: invalid payload")
	ErrUnknownKind    = errors.New("realtime: unknown event kind")
)
