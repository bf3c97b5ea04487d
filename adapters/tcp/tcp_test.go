package tcp_test

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/finswitch/finswitch/adapters/tcp"
)

func testOptions() tcp.Options {
	return tcp.Options{
		ConnectTimeout: time.Second,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		KeepAlive:      true,
		NoDelay:        true,
	}
}

// startServer accepts one connection and hands it to fn.
func startServer(t *testing.T, fn func(conn net.Conn)) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestSession_FrameRoundTrip(t *testing.T) {
	host, port := startServer(t, func(conn net.Conn) {
		// Echo frames back verbatim, header and all.
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				return
			}
		}
	})

	session, err := tcp.NewDialer(testOptions()).DialContext(context.Background(), host, port)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer session.Close()

	payload := []byte("0200test-frame")
	if err := session.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := session.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("round trip = %q, want %q", got, payload)
	}
}

func TestSession_LengthHeaderOnWire(t *testing.T) {
	received := make(chan []byte, 1)
	host, port := startServer(t, func(conn net.Conn) {
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		received <- buf[:n]
	})

	session, err := tcp.NewDialer(testOptions()).DialContext(context.Background(), host, port)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer session.Close()

	if err := session.WriteFrame([]byte("hello")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	select {
	case wire := <-received:
		if len(wire) != 7 {
			t.Fatalf("wire length = %d, want 2+5", len(wire))
		}
		if binary.BigEndian.Uint16(wire[:2]) != 5 {
			t.Errorf("length header = %x", wire[:2])
		}
		if string(wire[2:]) != "hello" {
			t.Errorf("payload = %q", wire[2:])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestSession_RejectsZeroLengthFrame(t *testing.T) {
	host, port := startServer(t, func(conn net.Conn) {
		conn.Write([]byte{0x00, 0x00})
		// Hold the connection open so the client error is the zero
		// length, not a close.
		time.Sleep(500 * time.Millisecond)
	})

	session, err := tcp.NewDialer(testOptions()).DialContext(context.Background(), host, port)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer session.Close()

	if _, err := session.ReadFrame(); err == nil || !strings.Contains(err.Error(), "zero-length") {
		t.Errorf("got %v, want zero-length frame error", err)
	}
}

func TestSession_WriteFrameTooLarge(t *testing.T) {
	host, port := startServer(t, func(conn net.Conn) {
		time.Sleep(100 * time.Millisecond)
	})

	session, err := tcp.NewDialer(testOptions()).DialContext(context.Background(), host, port)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer session.Close()

	if err := session.WriteFrame(make([]byte, tcp.MaxFrameSize+1)); err == nil {
		t.Error("oversized frame must be rejected before hitting the socket")
	}
}

func TestSession_ReadTimeout(t *testing.T) {
	host, port := startServer(t, func(conn net.Conn) {
		// Never write anything.
		time.Sleep(2 * time.Second)
	})

	opts := testOptions()
	opts.ReadTimeout = 50 * time.Millisecond
	session, err := tcp.NewDialer(opts).DialContext(context.Background(), host, port)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer session.Close()

	_, err = session.ReadFrame()
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("got %v, want a timeout error", err)
	}
}

func TestDialer_ConnectionRefused(t *testing.T) {
	// Grab a port and close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	if _, err := tcp.NewDialer(testOptions()).DialContext(context.Background(), "127.0.0.1", addr.Port); err == nil {
		t.Error("dial to a closed port must fail")
	}
}
