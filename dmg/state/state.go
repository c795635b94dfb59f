// Package state encodes component snapshots for save states.
package state

import (
	"bytes"
	"encoding/gob"

	"github.com/valerio/dotmatrix/dmg/fault"
)

// Encode gob-encodes a component's state struct. Only a type gob cannot
// handle makes this fail, so failure is an invariant violation.
func Encode(component string, v any) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		fault.Violation(component, "encoding state: %v", err)
	}
	return buf.Bytes()
}

// Decode reads a state produced by Encode into v.
func Decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
