// Package app provides the application services composing codec, registry,
// and link layers into operations the business layer calls.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/finswitch/finswitch/adapters/metrics"
	"github.com/finswitch/finswitch/core/link"
	"github.com/finswitch/finswitch/domain/channel"
	"github.com/finswitch/finswitch/domain/field"
	"github.com/finswitch/finswitch/domain/message"
	"github.com/finswitch/finswitch/ports"
	"github.com/rs/zerolog"
)

// ErrTimeout is returned when a request's deadline passes with no matched
// response. The pending entry is cleaned up; a response arriving later is
// dropped as unmatched.
var ErrTimeout = errors.New("request timed out awaiting response")

// DispatcherConfig tunes a dispatcher.
type DispatcherConfig struct {
	// DefaultTimeout bounds Send calls whose context has no deadline.
	DefaultTimeout time.Duration
}

// DispatcherService correlates outbound requests with inbound responses via
// the trace number (field 11), multiplexing many outstanding requests over
// the link's pooled connections.
type DispatcherService struct {
	channel   *channel.Resolved
	mgr       *link.Manager
	codec     ports.Codec
	traces    ports.TraceSource
	clock     ports.Clock
	collector *metrics.Collector
	logger    zerolog.Logger
	codes     *message.Catalog
	cfg       DispatcherConfig

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

type pendingRequest struct {
	trace     string
	submitted time.Time
	done      chan result
}

type result struct {
	msg message.Message
}

// NewDispatcherService creates a dispatcher bound to one link and channel
// schema and registers itself as the link's frame handler.
func NewDispatcherService(ch *channel.Resolved, mgr *link.Manager, codec ports.Codec,
	traces ports.TraceSource, clk ports.Clock, collector *metrics.Collector,
	logger zerolog.Logger, cfg DispatcherConfig) *DispatcherService {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	d := &DispatcherService{
		channel:   ch,
		mgr:       mgr,
		codec:     codec,
		traces:    traces,
		clock:     clk,
		collector: collector,
		logger:    logger.With().Str("channel", ch.Channel.ID).Logger(),
		codes:     message.DefaultCatalog(),
		cfg:       cfg,
		pending:   make(map[string]*pendingRequest),
	}
	mgr.SetFrameHandler(d.handleFrame)
	return d
}

// Send stamps a fresh trace number into the message, transmits it, and
// blocks until the correlated response arrives or the deadline passes.
func (d *DispatcherService) Send(ctx context.Context, msg message.Message) (message.Message, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.DefaultTimeout)
		defer cancel()
	}

	trace := d.traces.Next()
	if err := msg.SetString(message.TraceField, trace); err != nil {
		return message.Message{}, err
	}

	frame, err := d.codec.Encode(msg, d.channel)
	if err != nil {
		d.collector.EncodeErrors.WithLabelValues(d.channel.Channel.ID).Inc()
		return message.Message{}, fmt.Errorf("encode request: %w", err)
	}
	d.logger.Debug().Str("trace", trace).Str("mti", msg.MTI).
		Dict("fields", d.maskedFields(msg)).Msg("dispatching request")

	p, err := d.register(trace)
	if err != nil {
		return message.Message{}, err
	}

	conn, err := d.mgr.Checkout(ctx)
	if err != nil {
		d.unregister(trace)
		d.collector.RequestsTotal.WithLabelValues(d.mgr.Status().Name, msg.MTI, "link_error").Inc()
		return message.Message{}, err
	}

	if err := conn.WriteFrame(frame); err != nil {
		d.mgr.Checkin(conn, false)
		d.unregister(trace)
		d.collector.RequestsTotal.WithLabelValues(d.mgr.Status().Name, msg.MTI, "write_error").Inc()
		return message.Message{}, fmt.Errorf("transmit request: %w", err)
	}
	// The connection is free for other writers immediately; the response
	// arrives on the read pump and is matched by trace number.
	d.mgr.Checkin(conn, true)

	linkName := d.mgr.Status().Name
	select {
	case res := <-p.done:
		d.collector.RequestsTotal.WithLabelValues(linkName, msg.MTI, "ok").Inc()
		d.collector.RequestDuration.WithLabelValues(linkName, msg.MTI).
			Observe(d.clock.Now().Sub(p.submitted).Seconds())
		if code, ok := res.msg.GetString(message.ResponseCodeField); ok {
			d.logger.Debug().Str("trace", trace).Str("code", code).
				Str("outcome", d.codes.Describe(code)).Msg("response matched")
		}
		return res.msg, nil
	case <-ctx.Done():
		d.unregister(trace)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			d.collector.Timeouts.WithLabelValues(linkName).Inc()
			d.collector.RequestsTotal.WithLabelValues(linkName, msg.MTI, "timeout").Inc()
			d.logger.Warn().Str("trace", trace).Str("mti", msg.MTI).Msg("request timed out")
			return message.Message{}, fmt.Errorf("%w: trace %s", ErrTimeout, trace)
		}
		d.collector.RequestsTotal.WithLabelValues(linkName, msg.MTI, "cancelled").Inc()
		return message.Message{}, ctx.Err()
	}
}

// maskedFields renders a message's field values for logging, masking any the
// channel schema marks sensitive.
func (d *DispatcherService) maskedFields(msg message.Message) *zerolog.Event {
	dict := zerolog.Dict()
	for _, id := range msg.Present() {
		v, _ := msg.GetString(id)
		if node, ok := d.channel.Tree.ByID[id]; ok && node.Def.Sensitive {
			v = field.Mask(v)
		}
		dict.Str(strconv.Itoa(id), v)
	}
	return dict
}

// Pending returns the number of requests awaiting a response.
func (d *DispatcherService) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *DispatcherService) register(trace string) (*pendingRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.pending[trace]; exists {
		return nil, fmt.Errorf("trace %s already outstanding", trace)
	}
	p := &pendingRequest{
		trace:     trace,
		submitted: d.clock.Now(),
		done:      make(chan result, 1),
	}
	d.pending[trace] = p
	d.collector.PendingRequests.WithLabelValues(d.mgr.Status().Name).Set(float64(len(d.pending)))
	return p, nil
}

func (d *DispatcherService) unregister(trace string) *pendingRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pending[trace]
	delete(d.pending, trace)
	d.collector.PendingRequests.WithLabelValues(d.mgr.Status().Name).Set(float64(len(d.pending)))
	return p
}

// handleFrame decodes an inbound frame and completes the matching pending
// request. Unmatched traces (late, duplicate, or heartbeat replies) are
// logged and dropped, never fatal.
func (d *DispatcherService) handleFrame(conn *link.Conn, frame []byte) {
	resp, err := d.codec.Decode(frame, d.channel)
	if err != nil {
		d.collector.DecodeErrors.WithLabelValues(d.channel.Channel.ID).Inc()
		d.logger.Warn().Err(err).Str("conn", conn.ID).Msg("dropping undecodable frame")
		return
	}

	trace, ok := resp.Trace()
	if !ok {
		d.logger.Warn().Str("mti", resp.MTI).Str("conn", conn.ID).Msg("response without trace number dropped")
		d.collector.UnmatchedResponses.WithLabelValues(d.mgr.Status().Name).Inc()
		return
	}

	p := d.unregister(trace)
	if p == nil {
		if message.IsNetworkManagement(resp.MTI) {
			d.logger.Debug().Str("trace", trace).Msg("heartbeat reply")
			return
		}
		d.collector.UnmatchedResponses.WithLabelValues(d.mgr.Status().Name).Inc()
		d.logger.Warn().Str("trace", trace).Str("mti", resp.MTI).Msg("unmatched response dropped")
		return
	}
	p.done <- result{msg: resp}
}
