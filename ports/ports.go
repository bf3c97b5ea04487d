// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/finswitch/finswitch/domain/channel"
	"github.com/finswitch/finswitch/domain/message"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time

	// After behaves like time.After; fakes can fire it deterministically.
	After(d time.Duration) <-chan time.Time
}

// TraceSource allocates trace numbers (STANs) for request correlation.
// Numbers must be unique among requests outstanding on the same link.
type TraceSource interface {
	Next() string
}

// -----------------------------------------------------------------------------
// Transport Ports
// -----------------------------------------------------------------------------

// Session is one framed byte stream to a peer. WriteFrame and ReadFrame
// carry whole ISO frames; transport length headers stay inside the adapter.
type Session interface {
	// WriteFrame sends one frame, bounded by the session's write timeout.
	WriteFrame(frame []byte) error

	// ReadFrame blocks for the next inbound frame, bounded by the session's
	// read timeout.
	ReadFrame() ([]byte, error)

	// Close tears the session down. Safe to call more than once.
	Close() error

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
}

// Dialer opens sessions to an endpoint.
type Dialer interface {
	DialContext(ctx context.Context, host string, port int) (Session, error)
}

// -----------------------------------------------------------------------------
// Codec Ports
// -----------------------------------------------------------------------------

// Encoder turns a logical message into wire bytes under a channel schema.
type Encoder interface {
	Encode(msg message.Message, ch *channel.Resolved) ([]byte, error)
}

// Decoder turns wire bytes back into a logical message.
type Decoder interface {
	Decode(data []byte, ch *channel.Resolved) (message.Message, error)
}

// Codec bundles both directions for consumers that need them together.
type Codec interface {
	Encoder
	Decoder
}
