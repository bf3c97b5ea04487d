package registry_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/finswitch/finswitch/core/registry"
	"github.com/finswitch/finswitch/domain/channel"
	"github.com/finswitch/finswitch/domain/field"
)

func testChannel(id, typ, vendor string, active bool) channel.Channel {
	return channel.Channel{
		ID:     id,
		Name:   id,
		Type:   typ,
		Vendor: vendor,
		Active: active,
		Fields: []field.Definition{
			{ID: 4, Name: "amount", Format: field.FormatFixed, Encoding: field.EncodingASCII, Length: 12, Type: field.TypeNumeric, Required: true},
			{ID: 11, Name: "stan", Format: field.FormatFixed, Encoding: field.EncodingASCII, Length: 6, Type: field.TypeNumeric, Required: true},
		},
	}
}

func TestRegistry_RegisterGet(t *testing.T) {
	r := registry.New()

	if err := r.Register(testChannel("ATM_FISC_V1", "ATM", "FISC", true), false); err != nil {
		t.Fatalf("Register: %v", err)
	}

	resolved, ok := r.Get("ATM_FISC_V1")
	if !ok {
		t.Fatal("registered channel not found")
	}
	if resolved.Tree == nil || len(resolved.Tree.RootIDs) != 2 {
		t.Error("channel resolved without its field tree")
	}

	if _, ok := r.Get("NOPE"); ok {
		t.Error("unknown id must not resolve")
	}
}

func TestRegistry_DuplicateAndOverwrite(t *testing.T) {
	r := registry.New()
	r.Register(testChannel("ATM_FISC_V1", "ATM", "FISC", true), false)

	err := r.Register(testChannel("ATM_FISC_V1", "ATM", "FISC", true), false)
	var dup *registry.DuplicateChannelError
	if !errors.As(err, &dup) {
		t.Fatalf("got %v, want DuplicateChannelError", err)
	}

	replacement := testChannel("ATM_FISC_V1", "POS", "FISC", true)
	if err := r.Register(replacement, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	resolved, _ := r.Get("ATM_FISC_V1")
	if resolved.Channel.Type != "POS" {
		t.Error("overwrite did not replace the channel")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d after overwrite", r.Len())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := registry.New()
	r.Register(testChannel("A", "ATM", "FISC", true), false)

	if err := r.Unregister("A"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if r.Len() != 0 {
		t.Error("channel still present after unregister")
	}

	var unknown *registry.UnknownChannelError
	if err := r.Unregister("A"); !errors.As(err, &unknown) {
		t.Errorf("got %v, want UnknownChannelError", err)
	}
}

func TestRegistry_ReplaceAll(t *testing.T) {
	r := registry.New()
	r.Register(testChannel("OLD", "ATM", "FISC", true), false)

	err := r.ReplaceAll([]channel.Channel{
		testChannel("A", "ATM", "FISC", true),
		testChannel("B", "POS", "NCR", true),
	})
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	if _, ok := r.Get("OLD"); ok {
		t.Error("old generation still visible after swap")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}

	// A failing replace keeps the current snapshot.
	err = r.ReplaceAll([]channel.Channel{
		testChannel("C", "ATM", "FISC", true),
		testChannel("C", "ATM", "FISC", true),
	})
	if err == nil {
		t.Fatal("duplicate ids in one batch must fail")
	}
	if _, ok := r.Get("A"); !ok {
		t.Error("failed replace must not discard the old snapshot")
	}
}

func TestRegistry_Filters(t *testing.T) {
	r := registry.New()
	r.Register(testChannel("A", "ATM", "FISC", true), false)
	r.Register(testChannel("B", "ATM", "NCR", true), false)
	r.Register(testChannel("C", "INTERBANK", "FISC", false), false)

	if got := r.ByType("ATM"); len(got) != 2 {
		t.Errorf("ByType(ATM) = %d channels, want 2", len(got))
	}
	if got := r.ByVendor("FISC"); len(got) != 2 {
		t.Errorf("ByVendor(FISC) = %d channels, want 2", len(got))
	}
	active := r.Active()
	if len(active) != 2 {
		t.Fatalf("Active = %d channels, want 2", len(active))
	}
	for _, ch := range active {
		if ch.Channel.ID == "C" {
			t.Error("inactive channel listed as active")
		}
	}

	// Inactive channels are still addressable directly.
	if _, ok := r.Get("C"); !ok {
		t.Error("inactive channel must still resolve by id")
	}

	ids := r.IDs()
	want := []string{"A", "B", "C"}
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("IDs[%d] = %s, want %s (insertion order)", i, ids[i], id)
		}
	}
}

func TestRegistry_ConcurrentReaders(t *testing.T) {
	r := registry.New()
	r.Register(testChannel("A", "ATM", "FISC", true), false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					r.Get("A")
					r.Active()
				} else {
					r.Register(testChannel(fmt.Sprintf("W%d-%d", i, j), "ATM", "FISC", true), false)
				}
			}
		}(i)
	}
	wg.Wait()

	if _, ok := r.Get("A"); !ok {
		t.Error("channel A lost during concurrent writes")
	}
}
