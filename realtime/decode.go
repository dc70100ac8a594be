package realtime

import (
	"encoding/json"
	"fmt"
)

// DecodePayload parses a JSON body into the payload type of kind.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	var p Payload
	switch kind {
	case KindCodeUpdate:
		var v CodeUpdate
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		p = v
	case KindLanguageUpdate:
		var v LanguageUpdate
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		p = v
	case KindTerminalsUpdate:
		var v TerminalsUpdate
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		p = v
	case KindFileSelection:
		var v FileSelection
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return p, nil
}
