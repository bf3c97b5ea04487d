package codec

import (
	"errors"
	"fmt"
)

// Sentinel causes carried inside typed codec errors.
var (
	ErrValueLength  = errors.New("value length invalid for definition")
	ErrBadDigit     = errors.New("invalid digit")
	ErrTruncated    = errors.New("insufficient bytes")
	ErrLengthPrefix = errors.New("malformed length prefix")
)

// FieldError reports a failure encoding or decoding a single field. The
// operation aborts; no shared state is touched.
type FieldError struct {
	Field int
	Op    string // "encode" or "decode"
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s field %d: %v", e.Op, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ViolationError reports a message that contradicts its schema on encode:
// a required field absent, an unknown field present, or a controlled field
// present without its governing bitmap bit.
type ViolationError struct {
	Channel string
	Field   int
	Reason  string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("schema violation on channel %s, field %d: %s", e.Channel, e.Field, e.Reason)
}

// FormatError reports a malformed inbound frame. Offset is the byte position
// at which decoding failed, for wire-level diagnostics.
type FormatError struct {
	Offset int
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed message at offset %d: %v", e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
