package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/modkit/internal/ir"
)

// marshalArgs converts IRObject to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalArgs(args ir.IRObject) (string, error) {
	if args == nil {
		args = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT to IRObject.
// ir.IRObject.UnmarshalJSON keeps large integers exact via json.Number.
func unmarshalArgs(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return obj, nil
}

// marshalSurface converts a Surface to JSON TEXT.
// Surface is a struct (not IRValue), so it goes through json.Encoder with
// HTML escaping disabled. Field order is fixed by the struct definition.
func marshalSurface(s ir.Surface) (string, error) {
	if s.Modules == nil {
		s.Modules = []string{}
	}
	if s.Capabilities == nil {
		s.Capabilities = []ir.CapabilityEntry{}
	}
	if s.Shape == nil {
		s.Shape = []ir.ConfigField{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", fmt.Errorf("marshal surface: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalSurface parses JSON TEXT to a Surface.
func unmarshalSurface(data string) (ir.Surface, error) {
	var s ir.Surface
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return ir.Surface{}, fmt.Errorf("unmarshal surface: %w", err)
	}
	if s.Modules == nil {
		s.Modules = []string{}
	}
	if s.Capabilities == nil {
		s.Capabilities = []ir.CapabilityEntry{}
	}
	if s.Shape == nil {
		s.Shape = []ir.ConfigField{}
	}
	return s, nil
}
