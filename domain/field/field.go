// Package field provides field definition value types for channel schemas.
// A definition describes the wire format of a single ISO 8583 data element;
// Resolve turns a flat definition list into an explicit tree so the codec
// never chases ids at message time.
package field

import (
	"fmt"
	"sort"
	"strings"
)

// Format defines how a field's payload is framed on the wire.
type Format string

const (
	FormatFixed     Format = "fixed"     // declared length, no prefix
	FormatLLVar     Format = "llvar"     // 2-digit length prefix
	FormatLLLVar    Format = "lllvar"    // 3-digit length prefix
	FormatBitmap    Format = "bitmap"    // presence bits for controlled fields
	FormatComposite Format = "composite" // ordered sequence of child fields
)

// Encoding defines how payload units are written as bytes.
type Encoding string

const (
	EncodingASCII  Encoding = "ascii"  // one character per byte
	EncodingEBCDIC Encoding = "ebcdic" // one character per byte, EBCDIC code page
	EncodingBCD    Encoding = "bcd"    // packed decimal, two digits per byte
	EncodingBinary Encoding = "binary" // raw bytes
)

// DataType constrains the logical value of a field.
type DataType string

const (
	TypeNumeric      DataType = "numeric"
	TypeAlphanumeric DataType = "alphanumeric"
	TypeBinary       DataType = "binary"
	TypeTrack        DataType = "track"
)

// Definition describes one field of a channel schema (immutable value type).
// Definitions are loaded from YAML channel descriptions.
type Definition struct {
	ID       int      `yaml:"id"`
	Name     string   `yaml:"name"`
	Format   Format   `yaml:"format"`
	Encoding Encoding `yaml:"encoding"`

	// Length is the exact payload length for fixed fields, the bitmap width
	// in bytes for bitmap fields, and ignored for composites.
	Length int `yaml:"length,omitempty"`

	// MaxLength bounds the payload for llvar/lllvar fields.
	MaxLength int `yaml:"max_length,omitempty"`

	Type      DataType `yaml:"type,omitempty"`
	Required  bool     `yaml:"required,omitempty"`
	Sensitive bool     `yaml:"sensitive,omitempty"`

	// Children lists child field ids in wire order (composite only).
	Children []int `yaml:"children,omitempty"`

	// Controls lists field ids whose presence this bitmap governs (bitmap only).
	Controls []int `yaml:"controls,omitempty"`
}

// Validate checks a single definition for internal consistency.
func (d Definition) Validate() error {
	if d.ID < 2 || d.ID > 128 {
		return fmt.Errorf("field %d: id must be in [2,128]", d.ID)
	}
	switch d.Format {
	case FormatFixed:
		if d.Length <= 0 {
			return fmt.Errorf("field %d (%s): fixed format requires length", d.ID, d.Name)
		}
	case FormatLLVar:
		if d.MaxLength <= 0 || d.MaxLength > 99 {
			return fmt.Errorf("field %d (%s): llvar max_length must be in [1,99]", d.ID, d.Name)
		}
	case FormatLLLVar:
		if d.MaxLength <= 0 || d.MaxLength > 999 {
			return fmt.Errorf("field %d (%s): lllvar max_length must be in [1,999]", d.ID, d.Name)
		}
	case FormatBitmap:
		if d.Length <= 0 {
			return fmt.Errorf("field %d (%s): bitmap format requires length", d.ID, d.Name)
		}
		if len(d.Controls) == 0 {
			return fmt.Errorf("field %d (%s): bitmap format requires controls", d.ID, d.Name)
		}
	case FormatComposite:
		if len(d.Children) == 0 {
			return fmt.Errorf("field %d (%s): composite format requires children", d.ID, d.Name)
		}
	default:
		return fmt.Errorf("field %d (%s): unknown format %q", d.ID, d.Name, d.Format)
	}
	if d.Format != FormatBitmap && d.Format != FormatComposite {
		switch d.Encoding {
		case EncodingASCII, EncodingEBCDIC, EncodingBCD, EncodingBinary:
		default:
			return fmt.Errorf("field %d (%s): unknown encoding %q", d.ID, d.Name, d.Encoding)
		}
	}
	switch d.Type {
	case "", TypeNumeric, TypeAlphanumeric, TypeBinary, TypeTrack:
	default:
		return fmt.Errorf("field %d (%s): unknown type %q", d.ID, d.Name, d.Type)
	}
	return nil
}

// Node is one resolved field in a schema tree. Children and Controls carry
// direct references instead of ids.
type Node struct {
	Def      Definition
	Parent   *Node
	Children []*Node
	Controls []*Node

	// ControlledBy is the sibling bitmap governing this field's presence,
	// or nil when the field is mandatory within its scope.
	ControlledBy *Node
}

// IsComposite reports whether the node is a composite field.
func (n *Node) IsComposite() bool { return n.Def.Format == FormatComposite }

// IsBitmap reports whether the node is a nested bitmap field.
func (n *Node) IsBitmap() bool { return n.Def.Format == FormatBitmap }

// Tree is the resolved form of a flat definition list.
type Tree struct {
	// Roots are top-level fields (no parent), keyed by id.
	Roots map[int]*Node

	// ByID indexes every node, including composite children.
	ByID map[int]*Node

	// RootIDs lists top-level ids in ascending order.
	RootIDs []int
}

// Resolve builds an explicit tree from a flat definition list. It rejects
// duplicate ids, child ids with no definition, children claimed by more than
// one composite, and control targets outside the owning composite.
func Resolve(defs []Definition) (*Tree, error) {
	byID := make(map[int]*Node, len(defs))
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate field id %d", d.ID)
		}
		byID[d.ID] = &Node{Def: d}
	}

	// Wire composite children.
	for _, n := range byID {
		if !n.IsComposite() {
			continue
		}
		for _, childID := range n.Def.Children {
			child, ok := byID[childID]
			if !ok {
				return nil, fmt.Errorf("field %d: unknown child field %d", n.Def.ID, childID)
			}
			if child.Parent != nil {
				return nil, fmt.Errorf("field %d claimed by composites %d and %d",
					childID, child.Parent.Def.ID, n.Def.ID)
			}
			if childID == n.Def.ID {
				return nil, fmt.Errorf("field %d: composite cannot contain itself", n.Def.ID)
			}
			child.Parent = n
			n.Children = append(n.Children, child)
		}
	}

	// Composites nested under composites would need cycle detection beyond
	// the self/double-claim checks above.
	for _, n := range byID {
		if cyclic(n, map[int]bool{}) {
			return nil, fmt.Errorf("field %d: cyclic composite nesting", n.Def.ID)
		}
	}

	// Wire bitmap controls. Nested bitmaps live inside a composite and may
	// only govern siblings; top-level presence is the primary bitmap's job.
	for _, n := range byID {
		if !n.IsBitmap() {
			continue
		}
		if n.Parent == nil {
			return nil, fmt.Errorf("field %d: bitmap fields must be composite children", n.Def.ID)
		}
		for _, ctlID := range n.Def.Controls {
			target, ok := byID[ctlID]
			if !ok {
				return nil, fmt.Errorf("field %d: bitmap controls unknown field %d", n.Def.ID, ctlID)
			}
			if target.Parent != n.Parent {
				return nil, fmt.Errorf("field %d: bitmap cannot control field %d outside its scope",
					n.Def.ID, ctlID)
			}
			if target.ControlledBy != nil {
				return nil, fmt.Errorf("field %d controlled by bitmaps %d and %d",
					ctlID, target.ControlledBy.Def.ID, n.Def.ID)
			}
			if len(n.Controls) >= n.Def.Length*8 {
				return nil, fmt.Errorf("field %d: bitmap of %d bytes cannot control %d fields",
					n.Def.ID, n.Def.Length, len(n.Def.Controls))
			}
			target.ControlledBy = n
			n.Controls = append(n.Controls, target)
		}
	}

	tree := &Tree{Roots: make(map[int]*Node), ByID: byID}
	for id, n := range byID {
		if n.Parent == nil {
			tree.Roots[id] = n
			tree.RootIDs = append(tree.RootIDs, id)
		}
	}
	sort.Ints(tree.RootIDs)
	return tree, nil
}

func cyclic(n *Node, seen map[int]bool) bool {
	if seen[n.Def.ID] {
		return true
	}
	seen[n.Def.ID] = true
	for _, c := range n.Children {
		if cyclic(c, seen) {
			return true
		}
	}
	delete(seen, n.Def.ID)
	return false
}

// Mask returns a log-safe rendering of a sensitive value. PAN-like values
// keep the first six and last four digits; anything shorter is fully masked.
func Mask(value string) string {
	if len(value) > 10 {
		return value[:6] + strings.Repeat("*", len(value)-10) + value[len(value)-4:]
	}
	return strings.Repeat("*", len(value))
}
