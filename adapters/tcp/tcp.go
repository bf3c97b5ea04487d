// Package tcp provides the Dialer and Session implementations used to reach
// payment networks. Frames are delimited by a two-byte big-endian length
// header; the ISO payload inside is opaque to this layer.
package tcp

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/finswitch/finswitch/ports"
)

// MaxFrameSize bounds a single inbound frame. Anything larger is a corrupt
// length header, not a real message.
const MaxFrameSize = 65535

// Options carry the socket tuning knobs from link configuration.
type Options struct {
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	KeepAlive         bool
	NoDelay           bool
	ReceiveBufferSize int
	SendBufferSize    int
}

// Dialer opens framed TCP sessions.
type Dialer struct {
	opts Options
}

// NewDialer creates a dialer with the given socket options.
func NewDialer(opts Options) *Dialer {
	return &Dialer{opts: opts}
}

var _ ports.Dialer = (*Dialer)(nil)

// DialContext connects to host:port and returns a framed session.
func (d *Dialer) DialContext(ctx context.Context, host string, port int) (ports.Session, error) {
	nd := net.Dialer{Timeout: d.opts.ConnectTimeout}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(d.opts.KeepAlive)
		_ = tc.SetNoDelay(d.opts.NoDelay)
		if d.opts.ReceiveBufferSize > 0 {
			_ = tc.SetReadBuffer(d.opts.ReceiveBufferSize)
		}
		if d.opts.SendBufferSize > 0 {
			_ = tc.SetWriteBuffer(d.opts.SendBufferSize)
		}
	}

	return &Session{
		conn:         conn,
		readTimeout:  d.opts.ReadTimeout,
		writeTimeout: d.opts.WriteTimeout,
	}, nil
}

// Session is one framed TCP connection.
type Session struct {
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// WriteFrame sends one frame with its length header, bounded by the write
// timeout.
func (s *Session) WriteFrame(frame []byte) error {
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds maximum %d", len(frame), MaxFrameSize)
	}
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	buf := make([]byte, 2+len(frame))
	binary.BigEndian.PutUint16(buf[:2], uint16(len(frame)))
	copy(buf[2:], frame)

	if _, err := s.conn.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame blocks for the next inbound frame, bounded by the read timeout.
func (s *Session) ReadFrame() ([]byte, error) {
	if s.readTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
	}

	var header [2]byte
	if _, err := io.ReadFull(s.conn, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	length := int(binary.BigEndian.Uint16(header[:]))
	if length == 0 {
		return nil, fmt.Errorf("zero-length frame")
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(s.conn, frame); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return frame, nil
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() error {
	return s.conn.Close()
}

// RemoteAddr describes the peer for logging.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}
