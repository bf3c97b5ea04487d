// Package trace provides TraceSource implementations.
package trace

import (
	"fmt"
	"sync/atomic"

	"github.com/finswitch/finswitch/ports"
)

// Rolling allocates six-digit STANs 000001..999999, wrapping after the
// maximum. The wrap window is far wider than any realistic set of requests
// outstanding on one link.
type Rolling struct {
	counter uint64
}

// NewRolling creates a rolling trace source.
func NewRolling() *Rolling {
	return &Rolling{}
}

// Next returns the next trace number.
func (r *Rolling) Next() string {
	n := atomic.AddUint64(&r.counter, 1)
	return fmt.Sprintf("%06d", (n-1)%999999+1)
}

var _ ports.TraceSource = (*Rolling)(nil)

// Fixed always returns the same trace number (for testing).
type Fixed struct {
	Value string
}

// Next returns the fixed trace number.
func (f Fixed) Next() string { return f.Value }

var _ ports.TraceSource = Fixed{}
