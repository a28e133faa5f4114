package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	MaxPayloadBytes = 16 << 10
	MaxPayloadDepth = 8
)

// ErrInvalidPayload is returned when a payload is not a bounded JSON object.
var ErrInvalidPayload = errors.New("invalid payload")

// Payload is the optional structured data attached to an Activity. It is a
// JSON object bounded in encoded size and nesting depth.
type Payload map[string]any

// ParsePayload decodes raw JSON into a Payload and validates its bounds.
// Empty input and a JSON null both yield a nil Payload.
func ParsePayload(raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if len(raw) > MaxPayloadBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrInvalidPayload, MaxPayloadBytes)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidPayload)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the payload encodes to JSON within the size and depth limits.
func (p Payload) Validate() error {
	if p == nil {
		return nil
	}
	if d := depth(map[string]any(p)); d > MaxPayloadDepth {
		return fmt.Errorf("%w: nesting depth %d exceeds %d", ErrInvalidPayload, d, MaxPayloadDepth)
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(encoded) > MaxPayloadBytes {
		return fmt.Errorf("%w: exceeds %d bytes", ErrInvalidPayload, MaxPayloadBytes)
	}
	return nil
}

// Value implements driver.Valuer. A nil payload is stored as SQL NULL.
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSON/JSONB columns.
func (p *Payload) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidPayload, src)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded Payload
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	*p = decoded
	return nil
}

func depth(v any) int {
	switch typed := v.(type) {
	case map[string]any:
		deepest := 0
		for _, child := range typed {
			if d := depth(child); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	case Payload:
		return depth(map[string]any(typed))
	case []any:
		deepest := 0
		for _, child := range typed {
			if d := depth(child); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	default:
		return 0
	}
}
