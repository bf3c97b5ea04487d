package app_test

import (
	"testing"

	"github.com/finswitch/finswitch/adapters/trace"
	"github.com/finswitch/finswitch/app"
	"github.com/finswitch/finswitch/core/codec"
	"github.com/finswitch/finswitch/domain/channel"
	"github.com/finswitch/finswitch/domain/field"
	"github.com/finswitch/finswitch/domain/message"
	"github.com/rs/zerolog"
)

func TestHeartbeatFactory_BuildsEchoFrame(t *testing.T) {
	ch := testChannel(t)
	engine := codec.NewEngine(zerolog.Nop())
	factory := app.NewHeartbeatFactory(ch, engine, trace.NewRolling())

	frame, err := factory()
	if err != nil {
		t.Fatalf("heartbeat factory: %v", err)
	}

	msg, err := engine.Decode(frame, ch)
	if err != nil {
		t.Fatalf("decode heartbeat: %v", err)
	}
	if msg.MTI != message.MTIEchoRequest {
		t.Errorf("MTI = %s, want 0800", msg.MTI)
	}
	if tr, ok := msg.Trace(); !ok || len(tr) != 6 {
		t.Errorf("trace = %q, %v", tr, ok)
	}
	if code, ok := msg.GetString(70); !ok || code != "301" {
		t.Errorf("network management code = %q, %v, want 301", code, ok)
	}
}

func TestHeartbeatFactory_FreshTracePerFrame(t *testing.T) {
	ch := testChannel(t)
	engine := codec.NewEngine(zerolog.Nop())
	factory := app.NewHeartbeatFactory(ch, engine, trace.NewRolling())

	traces := make(map[string]bool)
	for i := 0; i < 3; i++ {
		frame, err := factory()
		if err != nil {
			t.Fatalf("heartbeat factory: %v", err)
		}
		msg, err := engine.Decode(frame, ch)
		if err != nil {
			t.Fatalf("decode heartbeat: %v", err)
		}
		tr, _ := msg.Trace()
		traces[tr] = true
	}
	if len(traces) != 3 {
		t.Errorf("saw %d distinct traces across 3 heartbeats", len(traces))
	}
}

func TestHeartbeatFactory_NoNetworkCodeField(t *testing.T) {
	// A channel without field 70 still heartbeats, just without the code.
	resolved, err := channel.Resolve(channel.Channel{
		ID:     "MINIMAL",
		Name:   "minimal",
		Type:   "ATM",
		Active: true,
		Fields: []field.Definition{
			{ID: 11, Name: "stan", Format: field.FormatFixed, Encoding: field.EncodingASCII, Length: 6, Type: field.TypeNumeric, Required: true},
		},
	})
	if err != nil {
		t.Fatalf("resolve channel: %v", err)
	}

	engine := codec.NewEngine(zerolog.Nop())
	factory := app.NewHeartbeatFactory(resolved, engine, trace.NewRolling())

	frame, err := factory()
	if err != nil {
		t.Fatalf("heartbeat factory: %v", err)
	}
	msg, err := engine.Decode(frame, resolved)
	if err != nil {
		t.Fatalf("decode heartbeat: %v", err)
	}
	if msg.Has(70) {
		t.Error("field 70 set on a schema that does not define it")
	}
}
