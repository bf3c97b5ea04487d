// Package codec implements the schema-driven wire codec: a stateless
// per-field encoder/decoder and a message engine that assembles full frames
// with bitmaps and recursive composites.
//
// Logical values are byte strings ("000000100000"); the field definition
// decides how they are laid out on the wire. For BCD fields lengths count
// digits; for every other encoding they count bytes.
package codec

import (
	"bytes"
	"fmt"

	"github.com/finswitch/finswitch/domain/field"
)

// EncodeField writes one field to buf: a decimal length prefix for variable
// formats, then the payload in the field's encoding. Composite and bitmap
// formats are the engine's job and are rejected here.
func EncodeField(def field.Definition, value []byte, buf *bytes.Buffer) error {
	if def.Format == field.FormatComposite || def.Format == field.FormatBitmap {
		return &FieldError{Field: def.ID, Op: "encode",
			Err: fmt.Errorf("%s fields are handled by the engine", def.Format)}
	}
	if err := checkValue(def, value); err != nil {
		return &FieldError{Field: def.ID, Op: "encode", Err: err}
	}
	switch def.Format {
	case field.FormatLLVar:
		writePrefix(buf, len(value), 2, def.Encoding)
	case field.FormatLLLVar:
		writePrefix(buf, len(value), 3, def.Encoding)
	}
	return writePayload(def, value, buf)
}

// DecodeField reads one field from data, returning the logical value and the
// number of wire bytes consumed.
func DecodeField(def field.Definition, data []byte) (value []byte, consumed int, err error) {
	if def.Format == field.FormatComposite || def.Format == field.FormatBitmap {
		return nil, 0, &FieldError{Field: def.ID, Op: "decode",
			Err: fmt.Errorf("%s fields are handled by the engine", def.Format)}
	}

	units := def.Length
	switch def.Format {
	case field.FormatLLVar:
		units, consumed, err = readPrefix(data, 2, def.Encoding)
	case field.FormatLLLVar:
		units, consumed, err = readPrefix(data, 3, def.Encoding)
	}
	if err != nil {
		return nil, 0, &FieldError{Field: def.ID, Op: "decode", Err: err}
	}
	if def.MaxLength > 0 && units > def.MaxLength {
		return nil, 0, &FieldError{Field: def.ID, Op: "decode",
			Err: fmt.Errorf("%w: declared length %d exceeds max %d", ErrLengthPrefix, units, def.MaxLength)}
	}

	payload := wireBytes(def.Encoding, units)
	if len(data) < consumed+payload {
		return nil, 0, &FieldError{Field: def.ID, Op: "decode",
			Err: fmt.Errorf("%w: need %d payload bytes, have %d", ErrTruncated, payload, len(data)-consumed)}
	}

	value, err = readPayload(def, units, data[consumed:consumed+payload])
	if err != nil {
		return nil, 0, &FieldError{Field: def.ID, Op: "decode", Err: err}
	}
	return value, consumed + payload, nil
}

// EncodedLength computes the wire size of a field without writing anything.
// Pure and side-effect free; used to pre-validate and pre-size buffers.
func EncodedLength(def field.Definition, value []byte) (int, error) {
	if def.Format == field.FormatBitmap {
		return def.Length, nil
	}
	if def.Format == field.FormatComposite {
		return 0, &FieldError{Field: def.ID, Op: "encode",
			Err: fmt.Errorf("composite length is the sum of its children")}
	}
	if err := checkValue(def, value); err != nil {
		return 0, &FieldError{Field: def.ID, Op: "encode", Err: err}
	}
	n := wireBytes(def.Encoding, len(value))
	switch def.Format {
	case field.FormatLLVar:
		n += 2
	case field.FormatLLLVar:
		n += 3
	}
	return n, nil
}

// checkValue validates the logical value against the definition.
func checkValue(def field.Definition, value []byte) error {
	switch def.Format {
	case field.FormatFixed:
		if len(value) != def.Length {
			return fmt.Errorf("%w: got %d units, want %d", ErrValueLength, len(value), def.Length)
		}
	case field.FormatLLVar, field.FormatLLLVar:
		if len(value) > def.MaxLength {
			return fmt.Errorf("%w: got %d units, max %d", ErrValueLength, len(value), def.MaxLength)
		}
	}
	if def.Encoding == field.EncodingBCD || def.Type == field.TypeNumeric {
		for _, b := range value {
			if b < '0' || b > '9' {
				return fmt.Errorf("%w: %q", ErrBadDigit, b)
			}
		}
	}
	return nil
}

// wireBytes converts logical units to wire bytes for an encoding.
func wireBytes(enc field.Encoding, units int) int {
	if enc == field.EncodingBCD {
		return (units + 1) / 2
	}
	return units
}

// writePrefix writes an n-digit decimal length. Character-encoded fields get
// the prefix in their own code page; BCD and binary payloads carry an ASCII
// prefix.
func writePrefix(buf *bytes.Buffer, length, digits int, enc field.Encoding) {
	prefix := make([]byte, digits)
	for i := digits - 1; i >= 0; i-- {
		prefix[i] = byte('0' + length%10)
		length /= 10
	}
	if enc == field.EncodingEBCDIC {
		toEbcdic(prefix, prefix)
	}
	buf.Write(prefix)
}

func readPrefix(data []byte, digits int, enc field.Encoding) (length, consumed int, err error) {
	if len(data) < digits {
		return 0, 0, fmt.Errorf("%w: need %d prefix bytes, have %d", ErrTruncated, digits, len(data))
	}
	prefix := make([]byte, digits)
	copy(prefix, data[:digits])
	if enc == field.EncodingEBCDIC {
		fromEbcdic(prefix, prefix)
	}
	for _, b := range prefix {
		if b < '0' || b > '9' {
			return 0, 0, fmt.Errorf("%w: non-digit byte 0x%02x", ErrLengthPrefix, b)
		}
		length = length*10 + int(b-'0')
	}
	return length, digits, nil
}

func writePayload(def field.Definition, value []byte, buf *bytes.Buffer) error {
	switch def.Encoding {
	case field.EncodingBCD:
		packBCD(value, buf)
	case field.EncodingEBCDIC:
		out := make([]byte, len(value))
		toEbcdic(out, value)
		buf.Write(out)
	default: // ascii, binary: one unit per byte
		buf.Write(value)
	}
	return nil
}

func readPayload(def field.Definition, units int, wire []byte) ([]byte, error) {
	switch def.Encoding {
	case field.EncodingBCD:
		return unpackBCD(units, wire)
	case field.EncodingEBCDIC:
		out := make([]byte, len(wire))
		fromEbcdic(out, wire)
		return out, nil
	default:
		out := make([]byte, len(wire))
		copy(out, wire)
		return out, nil
	}
}

// packBCD packs decimal digits two per byte, left-padding odd-length values
// with a zero nibble.
func packBCD(digits []byte, buf *bytes.Buffer) {
	padded := digits
	if len(digits)%2 == 1 {
		padded = make([]byte, len(digits)+1)
		padded[0] = '0'
		copy(padded[1:], digits)
	}
	for i := 0; i < len(padded); i += 2 {
		buf.WriteByte((padded[i]-'0')<<4 | (padded[i+1] - '0'))
	}
}

// unpackBCD unpacks units digits from wire bytes, dropping the pad nibble of
// odd-length values.
func unpackBCD(units int, wire []byte) ([]byte, error) {
	digits := make([]byte, 0, units+1)
	for _, b := range wire {
		hi, lo := b>>4, b&0x0F
		if hi > 9 || lo > 9 {
			return nil, fmt.Errorf("%w: nibble 0x%02x", ErrBadDigit, b)
		}
		digits = append(digits, '0'+hi, '0'+lo)
	}
	if units%2 == 1 {
		if digits[0] != '0' {
			return nil, fmt.Errorf("%w: nonzero pad nibble", ErrBadDigit)
		}
		digits = digits[1:]
	}
	return digits[:units], nil
}
