package codec

import (
	"bytes"
	"fmt"

	"github.com/finswitch/finswitch/domain/channel"
	"github.com/finswitch/finswitch/domain/field"
	"github.com/finswitch/finswitch/domain/message"
	"github.com/rs/zerolog"
)

// Engine assembles and disassembles full messages against a resolved channel
// schema. It is stateless and safe for concurrent use.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates a message engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Encode lays a logical message out on the wire:
// MTI, primary bitmap, optional secondary bitmap, then field payloads in
// ascending field-number order, recursing into composites in declared order.
func (e *Engine) Encode(msg message.Message, ch *channel.Resolved) ([]byte, error) {
	if !message.ValidMTI(msg.MTI) {
		return nil, &ViolationError{Channel: ch.Channel.ID, Reason: fmt.Sprintf("invalid MTI %q", msg.MTI)}
	}

	// Every field in the message must belong to the schema.
	for id := range msg.Fields {
		if _, ok := ch.Tree.ByID[id]; !ok {
			return nil, &ViolationError{Channel: ch.Channel.ID, Field: id, Reason: "field not in schema"}
		}
	}

	// Top-level presence: a composite is present iff any of its leaves is.
	var present []int
	for _, id := range ch.Tree.RootIDs {
		n := ch.Tree.Roots[id]
		if nodePresent(n, msg) {
			present = append(present, id)
		} else if n.Def.Required {
			return nil, &ViolationError{Channel: ch.Channel.ID, Field: id, Reason: "required field missing"}
		}
	}

	var buf bytes.Buffer
	buf.WriteString(msg.MTI)

	primary, secondary, hasSecondary := message.Bitmap(present)
	buf.Write(primary[:])
	if hasSecondary {
		buf.Write(secondary[:])
	}

	for _, id := range present {
		if err := e.encodeNode(ch, ch.Tree.Roots[id], msg, &buf); err != nil {
			return nil, err
		}
	}

	e.logger.Debug().
		Str("channel", ch.Channel.ID).
		Str("mti", msg.MTI).
		Ints("fields", present).
		Int("bytes", buf.Len()).
		Msg("message encoded")
	return buf.Bytes(), nil
}

func (e *Engine) encodeNode(ch *channel.Resolved, n *field.Node, msg message.Message, buf *bytes.Buffer) error {
	switch {
	case n.IsBitmap():
		bits := make([]byte, n.Def.Length)
		for i, target := range n.Controls {
			if nodePresent(target, msg) {
				bits[i/8] |= 1 << (7 - uint(i%8))
			}
		}
		buf.Write(bits)
		return nil

	case n.IsComposite():
		for _, child := range n.Children {
			if child.IsBitmap() {
				if err := e.encodeNode(ch, child, msg, buf); err != nil {
					return err
				}
				continue
			}
			if child.ControlledBy != nil {
				if nodePresent(child, msg) {
					if err := e.encodeNode(ch, child, msg, buf); err != nil {
						return err
					}
				}
				continue
			}
			// Uncontrolled children are mandatory once the composite appears.
			if !nodePresent(child, msg) {
				return &ViolationError{Channel: ch.Channel.ID, Field: child.Def.ID,
					Reason: fmt.Sprintf("mandatory child of composite %d missing", n.Def.ID)}
			}
			if err := e.encodeNode(ch, child, msg, buf); err != nil {
				return err
			}
		}
		return nil

	default:
		value, _ := msg.Get(n.Def.ID)
		return EncodeField(n.Def, value, buf)
	}
}

// Decode mirrors Encode: MTI, bitmaps, then each set bit's field in ascending
// order, recursing into composites.
func (e *Engine) Decode(data []byte, ch *channel.Resolved) (message.Message, error) {
	var msg message.Message
	pos := 0

	if len(data) < 4 {
		return msg, &FormatError{Offset: pos, Err: fmt.Errorf("%w: no MTI", ErrTruncated)}
	}
	mti := string(data[:4])
	if !message.ValidMTI(mti) {
		return msg, &FormatError{Offset: pos, Err: fmt.Errorf("invalid MTI %q", mti)}
	}
	msg = message.New(mti)
	pos += 4

	if len(data) < pos+8 {
		return msg, &FormatError{Offset: pos, Err: fmt.Errorf("%w: no primary bitmap", ErrTruncated)}
	}
	primary := data[pos : pos+8]
	pos += 8

	ids := message.BitmapFields(primary, 0)
	if primary[0]&0x80 != 0 {
		if len(data) < pos+8 {
			return msg, &FormatError{Offset: pos, Err: fmt.Errorf("%w: no secondary bitmap", ErrTruncated)}
		}
		ids = append(ids, message.BitmapFields(data[pos:pos+8], 64)...)
		pos += 8
	}

	for _, id := range ids {
		n, ok := ch.Tree.Roots[id]
		if !ok {
			return msg, &FormatError{Offset: pos, Err: fmt.Errorf("bitmap bit %d has no field definition", id)}
		}
		consumed, err := e.decodeNode(n, data[pos:], pos, &msg)
		if err != nil {
			return msg, err
		}
		pos += consumed
	}

	e.logger.Debug().
		Str("channel", ch.Channel.ID).
		Str("mti", msg.MTI).
		Ints("fields", msg.Present()).
		Int("bytes", pos).
		Msg("message decoded")
	return msg, nil
}

// decodeNode consumes one field (or composite subtree) from data, which
// starts at absolute offset base within the frame.
func (e *Engine) decodeNode(n *field.Node, data []byte, base int, msg *message.Message) (int, error) {
	switch {
	case n.IsBitmap():
		if len(data) < n.Def.Length {
			return 0, &FormatError{Offset: base, Err: fmt.Errorf("%w: bitmap field %d", ErrTruncated, n.Def.ID)}
		}
		return n.Def.Length, nil

	case n.IsComposite():
		pos := 0
		// Presence of controlled siblings, filled as bitmap children decode.
		controlled := make(map[int]bool)
		for _, child := range n.Children {
			if child.IsBitmap() {
				if len(data) < pos+child.Def.Length {
					return 0, &FormatError{Offset: base + pos,
						Err: fmt.Errorf("%w: bitmap field %d", ErrTruncated, child.Def.ID)}
				}
				bits := data[pos : pos+child.Def.Length]
				for i, target := range child.Controls {
					if bits[i/8]&(1<<(7-uint(i%8))) != 0 {
						controlled[target.Def.ID] = true
					}
				}
				pos += child.Def.Length
				continue
			}
			if child.ControlledBy != nil && !controlled[child.Def.ID] {
				continue
			}
			consumed, err := e.decodeNode(child, data[pos:], base+pos, msg)
			if err != nil {
				return 0, err
			}
			pos += consumed
		}
		return pos, nil

	default:
		value, consumed, err := DecodeField(n.Def, data)
		if err != nil {
			return 0, &FormatError{Offset: base, Err: err}
		}
		if err := msg.Set(n.Def.ID, value); err != nil {
			return 0, &FormatError{Offset: base, Err: err}
		}
		return consumed, nil
	}
}

// nodePresent reports whether a field participates in the message: leaves by
// map membership, composites when any descendant leaf is present.
func nodePresent(n *field.Node, msg message.Message) bool {
	if n.IsComposite() {
		for _, child := range n.Children {
			if child.IsBitmap() {
				continue
			}
			if nodePresent(child, msg) {
				return true
			}
		}
		return false
	}
	if n.IsBitmap() {
		return false
	}
	return msg.Has(n.Def.ID)
}
