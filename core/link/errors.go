package link

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned for operations on a stopped manager.
var ErrClosed = errors.New("link manager closed")

// PoolExhaustedError reports a checkout that found no free connection within
// the pool wait bound. Surfaced immediately; callers are never queued
// unboundedly.
type PoolExhaustedError struct {
	Link string
	Wait time.Duration
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("link %s: pool exhausted after %s", e.Link, e.Wait)
}

// LinkDownError reports that neither primary nor backup is reachable after
// exhausting retries, or that reconnection is disabled and no connection
// remains.
type LinkDownError struct {
	Link  string
	State State
}

func (e *LinkDownError) Error() string {
	return fmt.Sprintf("link %s is down (state %s)", e.Link, e.State)
}
