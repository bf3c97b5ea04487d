// Package registry manages named channel schemas. Readers get immutable
// snapshots; writers serialize on a mutex and publish whole snapshots
// atomically, so no reader ever observes a partial update.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/finswitch/finswitch/domain/channel"
)

// DuplicateChannelError reports a register of an already-known channel id
// without an explicit overwrite.
type DuplicateChannelError struct {
	ID string
}

func (e *DuplicateChannelError) Error() string {
	return fmt.Sprintf("channel %q already registered", e.ID)
}

// UnknownChannelError reports an unregister of a channel id that is not held.
type UnknownChannelError struct {
	ID string
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("channel %q not registered", e.ID)
}

// snapshot is one immutable registry generation. order preserves insertion
// order for listings.
type snapshot struct {
	byID  map[string]*channel.Resolved
	order []string
}

func emptySnapshot() *snapshot {
	return &snapshot{byID: map[string]*channel.Resolved{}}
}

// clone copies a snapshot so a writer can mutate freely before publishing.
func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		byID:  make(map[string]*channel.Resolved, len(s.byID)),
		order: make([]string, len(s.order)),
	}
	for id, ch := range s.byID {
		next.byID[id] = ch
	}
	copy(next.order, s.order)
	return next
}

// Registry holds channel schemas with copy-on-write snapshot semantics.
type Registry struct {
	mu      sync.Mutex // serializes writers
	current atomic.Pointer[snapshot]
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{}
	r.current.Store(emptySnapshot())
	return r
}

// Register resolves and adds a channel. An existing id fails with
// DuplicateChannelError unless overwrite is set.
func (r *Registry) Register(ch channel.Channel, overwrite bool) error {
	resolved, err := channel.Resolve(ch)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.current.Load().clone()
	if _, exists := next.byID[ch.ID]; exists {
		if !overwrite {
			return &DuplicateChannelError{ID: ch.ID}
		}
	} else {
		next.order = append(next.order, ch.ID)
	}
	next.byID[ch.ID] = resolved
	r.current.Store(next)
	return nil
}

// Unregister removes a channel by id.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	if _, exists := cur.byID[id]; !exists {
		return &UnknownChannelError{ID: id}
	}
	next := cur.clone()
	delete(next.byID, id)
	for i, oid := range next.order {
		if oid == id {
			next.order = append(next.order[:i], next.order[i+1:]...)
			break
		}
	}
	r.current.Store(next)
	return nil
}

// ReplaceAll swaps the whole registry contents in one publish. Used by
// schema reload so readers switch generations atomically.
func (r *Registry) ReplaceAll(channels []channel.Channel) error {
	next := emptySnapshot()
	for _, ch := range channels {
		resolved, err := channel.Resolve(ch)
		if err != nil {
			return err
		}
		if _, dup := next.byID[ch.ID]; dup {
			return &DuplicateChannelError{ID: ch.ID}
		}
		next.byID[ch.ID] = resolved
		next.order = append(next.order, ch.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Store(next)
	return nil
}

// Get returns a channel by id. Inactive channels are returned; active=false
// only hides a channel from default listings.
func (r *Registry) Get(id string) (*channel.Resolved, bool) {
	ch, ok := r.current.Load().byID[id]
	return ch, ok
}

// IDs returns all channel ids in insertion order.
func (r *Registry) IDs() []string {
	cur := r.current.Load()
	ids := make([]string, len(cur.order))
	copy(ids, cur.order)
	return ids
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	return len(r.current.Load().byID)
}

// ByType returns channels of the given type, insertion ordered.
func (r *Registry) ByType(typ string) []*channel.Resolved {
	return r.filter(func(ch *channel.Resolved) bool { return ch.Channel.Type == typ })
}

// ByVendor returns channels of the given vendor, insertion ordered.
func (r *Registry) ByVendor(vendor string) []*channel.Resolved {
	return r.filter(func(ch *channel.Resolved) bool { return ch.Channel.Vendor == vendor })
}

// Active returns active channels, insertion ordered.
func (r *Registry) Active() []*channel.Resolved {
	return r.filter(func(ch *channel.Resolved) bool { return ch.Channel.Active })
}

func (r *Registry) filter(keep func(*channel.Resolved) bool) []*channel.Resolved {
	cur := r.current.Load()
	var out []*channel.Resolved
	for _, id := range cur.order {
		if ch := cur.byID[id]; keep(ch) {
			out = append(out, ch)
		}
	}
	return out
}
