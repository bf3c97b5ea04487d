// Package message provides the logical message value type and pure helpers
// over MTIs and response codes. A message is what the business layer sees:
// an MTI plus a field-number keyed value map. Wire layout is the codec's job.
package message

import (
	"fmt"
	"sort"
)

// MaxField is the highest addressable field number.
const MaxField = 128

// TraceField is the field carrying the system trace audit number (STAN).
const TraceField = 11

// ResponseCodeField is the field carrying the action/response code.
const ResponseCodeField = 39

// Message is a logical financial message. Field presence is derived from the
// map; the bitmap is never stored redundantly.
type Message struct {
	MTI    string
	Fields map[int][]byte
}

// New creates an empty message with the given MTI.
func New(mti string) Message {
	return Message{MTI: mti, Fields: make(map[int][]byte)}
}

// Set stores a field value. Values are copied so callers may reuse buffers.
func (m *Message) Set(id int, value []byte) error {
	if id < 2 || id > MaxField {
		return fmt.Errorf("field id %d out of range [2,%d]", id, MaxField)
	}
	if m.Fields == nil {
		m.Fields = make(map[int][]byte)
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.Fields[id] = v
	return nil
}

// SetString stores a field value from a string.
func (m *Message) SetString(id int, value string) error {
	return m.Set(id, []byte(value))
}

// Get returns a field value and whether it is present.
func (m *Message) Get(id int) ([]byte, bool) {
	v, ok := m.Fields[id]
	return v, ok
}

// GetString returns a field value as a string.
func (m *Message) GetString(id int) (string, bool) {
	v, ok := m.Fields[id]
	return string(v), ok
}

// Has reports field presence.
func (m *Message) Has(id int) bool {
	_, ok := m.Fields[id]
	return ok
}

// Delete removes a field.
func (m *Message) Delete(id int) {
	delete(m.Fields, id)
}

// Trace returns the STAN (field 11) if present.
func (m *Message) Trace() (string, bool) {
	return m.GetString(TraceField)
}

// Present returns the present field ids in ascending order.
func (m *Message) Present() []int {
	ids := make([]int, 0, len(m.Fields))
	for id := range m.Fields {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Equal reports whether two messages carry the same MTI and field values.
func (m *Message) Equal(other Message) bool {
	if m.MTI != other.MTI || len(m.Fields) != len(other.Fields) {
		return false
	}
	for id, v := range m.Fields {
		ov, ok := other.Fields[id]
		if !ok || string(v) != string(ov) {
			return false
		}
	}
	return true
}

// Bitmap computes the primary and secondary bitmaps for a set of present
// top-level field ids. Bit 1 of the primary bitmap signals that a secondary
// bitmap follows; bits 2..64 map to fields 2..64 and bits 65..128 to the
// secondary bitmap. hasSecondary is true iff any field above 64 is present.
func Bitmap(ids []int) (primary, secondary [8]byte, hasSecondary bool) {
	for _, id := range ids {
		if id < 2 || id > MaxField {
			continue
		}
		if id <= 64 {
			primary[(id-1)/8] |= 1 << (7 - uint((id-1)%8))
		} else {
			secondary[(id-65)/8] |= 1 << (7 - uint((id-65)%8))
			hasSecondary = true
		}
	}
	if hasSecondary {
		primary[0] |= 0x80 // bit 1
	}
	return primary, secondary, hasSecondary
}

// BitmapFields returns the field ids marked present in a bitmap, where the
// first bit corresponds to field number base+1. Bit 1 of a primary bitmap
// (base 0) is the secondary-bitmap marker and is skipped by the caller.
func BitmapFields(bitmap []byte, base int) []int {
	var ids []int
	for i, b := range bitmap {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<(7-uint(bit))) != 0 {
				n := base + i*8 + bit + 1
				if n >= 2 {
					ids = append(ids, n)
				}
			}
		}
	}
	return ids
}

// ValidMTI reports whether mti is exactly four ASCII digits.
func ValidMTI(mti string) bool {
	if len(mti) != 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		if mti[i] < '0' || mti[i] > '9' {
			return false
		}
	}
	return true
}

// IsRequest reports whether the MTI function digit marks a request
// originated by the acquirer (x x 0 0).
func IsRequest(mti string) bool {
	return ValidMTI(mti) && mti[2] == '0' && mti[3] == '0'
}

// IsResponse reports whether the MTI function digit marks a response (x x 1 0).
func IsResponse(mti string) bool {
	return ValidMTI(mti) && mti[2] == '1' && mti[3] == '0'
}

// ResponseMTI returns the paired response MTI for a request MTI
// (0200 -> 0210, 0800 -> 0810).
func ResponseMTI(mti string) (string, error) {
	if !ValidMTI(mti) || mti[2] != '0' || mti[3] != '0' {
		return "", fmt.Errorf("not a request MTI: %q", mti)
	}
	return mti[:2] + "10", nil
}

// IsNetworkManagement reports whether the MTI belongs to the 08xx network
// management class (heartbeats, sign-on, cutover).
func IsNetworkManagement(mti string) bool {
	return ValidMTI(mti) && mti[0] == '0' && mti[1] == '8'
}
