package field_test

import (
	"strings"
	"testing"

	"github.com/finswitch/finswitch/domain/field"
)

func fixedNumeric(id int, length int) field.Definition {
	return field.Definition{
		ID:       id,
		Name:     "f",
		Format:   field.FormatFixed,
		Encoding: field.EncodingASCII,
		Length:   length,
		Type:     field.TypeNumeric,
	}
}

func settlementDefs() []field.Definition {
	return []field.Definition{
		{ID: 2, Name: "pan", Format: field.FormatLLVar, Encoding: field.EncodingASCII, MaxLength: 19, Type: field.TypeNumeric},
		fixedNumeric(4, 12),
		{ID: 62, Name: "settlement", Format: field.FormatComposite, Children: []int{120, 121, 122}},
		{ID: 120, Name: "bm", Format: field.FormatBitmap, Length: 1, Controls: []int{121, 122}},
		fixedNumeric(121, 11),
		{ID: 122, Name: "ref", Format: field.FormatLLVar, Encoding: field.EncodingASCII, MaxLength: 20, Type: field.TypeAlphanumeric},
	}
}

func TestResolve_BuildsTree(t *testing.T) {
	tree, err := field.Resolve(settlementDefs())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	wantRoots := []int{2, 4, 62}
	if len(tree.RootIDs) != len(wantRoots) {
		t.Fatalf("got roots %v, want %v", tree.RootIDs, wantRoots)
	}
	for i, id := range wantRoots {
		if tree.RootIDs[i] != id {
			t.Errorf("root[%d] = %d, want %d", i, tree.RootIDs[i], id)
		}
	}

	child := tree.ByID[121]
	if child.Parent == nil || child.Parent.Def.ID != 62 {
		t.Error("field 121 should be a child of composite 62")
	}
	if child.ControlledBy == nil || child.ControlledBy.Def.ID != 120 {
		t.Error("field 121 should be controlled by bitmap 120")
	}
	bm := tree.ByID[120]
	if len(bm.Controls) != 2 {
		t.Errorf("bitmap controls %d fields, want 2", len(bm.Controls))
	}
}

func TestResolve_DuplicateID(t *testing.T) {
	defs := []field.Definition{fixedNumeric(4, 12), fixedNumeric(4, 6)}
	if _, err := field.Resolve(defs); err == nil {
		t.Fatal("expected error for duplicate field id")
	}
}

func TestResolve_UnknownChild(t *testing.T) {
	defs := []field.Definition{
		{ID: 62, Name: "c", Format: field.FormatComposite, Children: []int{99}},
	}
	if _, err := field.Resolve(defs); err == nil {
		t.Fatal("expected error for unknown child")
	}
}

func TestResolve_ChildClaimedTwice(t *testing.T) {
	defs := []field.Definition{
		{ID: 60, Name: "a", Format: field.FormatComposite, Children: []int{100}},
		{ID: 62, Name: "b", Format: field.FormatComposite, Children: []int{100}},
		fixedNumeric(100, 2),
	}
	if _, err := field.Resolve(defs); err == nil {
		t.Fatal("expected error for doubly-claimed child")
	}
}

func TestResolve_TopLevelBitmap(t *testing.T) {
	defs := []field.Definition{
		{ID: 65, Name: "bm", Format: field.FormatBitmap, Length: 8, Controls: []int{70}},
		fixedNumeric(70, 3),
	}
	if _, err := field.Resolve(defs); err == nil {
		t.Fatal("expected error for top-level bitmap")
	}
}

func TestResolve_DoublyControlled(t *testing.T) {
	defs := []field.Definition{
		{ID: 62, Name: "c", Format: field.FormatComposite, Children: []int{110, 111, 112}},
		{ID: 110, Name: "bm1", Format: field.FormatBitmap, Length: 1, Controls: []int{112}},
		{ID: 111, Name: "bm2", Format: field.FormatBitmap, Length: 1, Controls: []int{112}},
		fixedNumeric(112, 2),
	}
	if _, err := field.Resolve(defs); err == nil {
		t.Fatal("expected error for doubly-controlled field")
	}
}

func TestResolve_CyclicComposites(t *testing.T) {
	defs := []field.Definition{
		{ID: 100, Name: "a", Format: field.FormatComposite, Children: []int{101}},
		{ID: 101, Name: "b", Format: field.FormatComposite, Children: []int{100}},
	}
	if _, err := field.Resolve(defs); err == nil {
		t.Fatal("expected error for cyclic composites")
	}
}

func TestValidate_UnknownType(t *testing.T) {
	def := fixedNumeric(41, 8)
	def.Type = "ans"
	if err := def.Validate(); err == nil {
		t.Fatal("expected error for unknown data type")
	}

	// Type is optional; an empty value passes.
	def.Type = ""
	if err := def.Validate(); err != nil {
		t.Fatalf("empty type should be allowed: %v", err)
	}
}

func TestMask(t *testing.T) {
	got := field.Mask("4532123456789012")
	if got != "453212******9012" {
		t.Errorf("Mask = %q", got)
	}
	if !strings.HasPrefix(got, "453212") || !strings.HasSuffix(got, "9012") {
		t.Errorf("Mask should keep first six and last four: %q", got)
	}

	short := field.Mask("123456")
	if short != "******" {
		t.Errorf("short values must be fully masked, got %q", short)
	}
}
