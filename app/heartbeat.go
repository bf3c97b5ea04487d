package app

import (
	"github.com/finswitch/finswitch/domain/channel"
	"github.com/finswitch/finswitch/domain/message"
	"github.com/finswitch/finswitch/ports"
)

// Network management information code for an echo test (field 70).
const echoTestCode = "301"

// NewHeartbeatFactory builds the echo frame the link manager sends on idle
// connections: an 0800 with a fresh trace number, plus the network management
// code when the channel schema defines field 70.
func NewHeartbeatFactory(ch *channel.Resolved, enc ports.Encoder, traces ports.TraceSource) func() ([]byte, error) {
	_, hasNMCode := ch.Tree.Roots[70]
	return func() ([]byte, error) {
		msg := message.New(message.MTIEchoRequest)
		if err := msg.SetString(message.TraceField, traces.Next()); err != nil {
			return nil, err
		}
		if hasNMCode {
			if err := msg.SetString(70, echoTestCode); err != nil {
				return nil, err
			}
		}
		return enc.Encode(msg, ch)
	}
}
