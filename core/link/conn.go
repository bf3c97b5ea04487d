package link

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/finswitch/finswitch/ports"
	"github.com/google/uuid"
)

// Conn is one pooled connection. Writes are serialized so several pending
// requests can share the session; reads happen on the manager's pump.
type Conn struct {
	ID      string
	Role    Role
	session ports.Session

	writeMu sync.Mutex
	closed  atomic.Bool

	// busy is owned by the manager's mutex.
	busy bool

	lastUsed    atomic.Int64 // unix nanos of last checkout/checkin
	lastInbound atomic.Int64 // unix nanos of last frame received from the peer
}

func newConn(session ports.Session, role Role, now time.Time) *Conn {
	c := &Conn{
		ID:      uuid.New().String(),
		Role:    role,
		session: session,
	}
	c.lastUsed.Store(now.UnixNano())
	c.lastInbound.Store(now.UnixNano())
	return c
}

// WriteFrame sends one frame on the session. Safe for concurrent use.
// Writes deliberately do not count as liveness: a dead peer's TCP stack
// keeps accepting bytes long after it stopped answering.
func (c *Conn) WriteFrame(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.session.WriteFrame(frame)
}

// RemoteAddr describes the peer for logging.
func (c *Conn) RemoteAddr() string {
	return c.session.RemoteAddr()
}

// touch records an inbound frame at the given instant.
func (c *Conn) touch(now time.Time) {
	c.lastInbound.Store(now.UnixNano())
}

func (c *Conn) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastUsed.Load()))
}

// quietSince is the time since the peer last sent a frame.
func (c *Conn) quietSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastInbound.Load()))
}

// close tears the session down once.
func (c *Conn) close() {
	if c.closed.CompareAndSwap(false, true) {
		_ = c.session.Close()
	}
}
