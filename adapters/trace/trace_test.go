package trace_test

import (
	"sync"
	"testing"

	"github.com/finswitch/finswitch/adapters/trace"
)

func TestRolling_SequenceAndFormat(t *testing.T) {
	r := trace.NewRolling()

	if got := r.Next(); got != "000001" {
		t.Errorf("first trace = %q, want 000001", got)
	}
	if got := r.Next(); got != "000002" {
		t.Errorf("second trace = %q, want 000002", got)
	}
}

func TestRolling_WrapsAfterMax(t *testing.T) {
	r := trace.NewRolling()
	var last string
	for i := 0; i < 999999; i++ {
		last = r.Next()
	}
	if last != "999999" {
		t.Fatalf("trace 999999 = %q", last)
	}
	if got := r.Next(); got != "000001" {
		t.Errorf("trace after wrap = %q, want 000001", got)
	}
}

func TestRolling_ConcurrentUnique(t *testing.T) {
	r := trace.NewRolling()
	const n = 200

	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < n/4; j++ {
				tr := r.Next()
				mu.Lock()
				seen[tr] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("got %d distinct traces from %d calls", len(seen), n)
	}
}

func TestFixed(t *testing.T) {
	f := trace.Fixed{Value: "000042"}
	if f.Next() != "000042" || f.Next() != "000042" {
		t.Error("Fixed must always return its value")
	}
}
