package dto

import (
	"bytes"
	"encoding/json"
)

// Clearable is a PATCH field that tells apart an absent key, an explicit null
// and a value. Present is set whenever the key appears in the body.
type Clearable[T any] struct {
	Present bool
	Value   *T
}

// UnmarshalJSON is only invoked for keys present in the payload, null included.
func (c *Clearable[T]) UnmarshalJSON(data []byte) error {
	c.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		c.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	c.Value = &v
	return nil
}

// Cleared reports whether the payload set the field to null.
func (c Clearable[T]) Cleared() bool {
	return c.Present && c.Value == nil
}
