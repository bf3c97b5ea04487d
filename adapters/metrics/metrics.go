// Package metrics provides Prometheus metrics collection for the switch core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the switch core.
type Collector struct {
	// Link metrics
	LinkState      *prometheus.GaugeVec
	Connects       *prometheus.CounterVec
	Reconnects     *prometheus.CounterVec
	Failovers      *prometheus.CounterVec
	HeartbeatsSent *prometheus.CounterVec
	ConnFailures   *prometheus.CounterVec

	// Pool metrics
	PoolSize        *prometheus.GaugeVec
	PoolBusy        *prometheus.GaugeVec
	PoolWaitSeconds *prometheus.HistogramVec
	PoolExhausted   *prometheus.CounterVec

	// Dispatch metrics
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	PendingRequests    *prometheus.GaugeVec
	Timeouts           *prometheus.CounterVec
	UnmatchedResponses *prometheus.CounterVec

	// Codec metrics
	EncodeErrors *prometheus.CounterVec
	DecodeErrors *prometheus.CounterVec

	// Schema metrics
	SchemaReloads      prometheus.Counter
	SchemaReloadErrors prometheus.Counter
	ChannelsRegistered prometheus.Gauge
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		LinkState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "finswitch",
				Name:      "link_state",
				Help:      "Current link state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting, 4 failed)",
			},
			[]string{"link"},
		),
		Connects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "link_connects_total",
				Help:      "Total successful connection establishments",
			},
			[]string{"link", "role"},
		),
		Reconnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "link_reconnects_total",
				Help:      "Total reconnection attempts",
			},
			[]string{"link"},
		),
		Failovers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "link_failovers_total",
				Help:      "Total primary-to-backup failovers",
			},
			[]string{"link"},
		),
		HeartbeatsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "link_heartbeats_sent_total",
				Help:      "Total heartbeat frames sent on idle connections",
			},
			[]string{"link"},
		),
		ConnFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "link_connection_failures_total",
				Help:      "Total connection failures detected",
			},
			[]string{"link", "reason"},
		),
		PoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "finswitch",
				Name:      "pool_connections",
				Help:      "Connections currently held by the pool",
			},
			[]string{"link"},
		),
		PoolBusy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "finswitch",
				Name:      "pool_connections_busy",
				Help:      "Connections currently checked out",
			},
			[]string{"link"},
		),
		PoolWaitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "finswitch",
				Name:      "pool_wait_seconds",
				Help:      "Time spent waiting for a pooled connection",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"link"},
		),
		PoolExhausted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "pool_exhausted_total",
				Help:      "Checkouts that failed because the pool stayed exhausted",
			},
			[]string{"link"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "requests_total",
				Help:      "Total requests dispatched",
			},
			[]string{"link", "mti", "outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "finswitch",
				Name:      "request_duration_seconds",
				Help:      "Round-trip time from send to matched response",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"link", "mti"},
		),
		PendingRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "finswitch",
				Name:      "pending_requests",
				Help:      "Requests awaiting a correlated response",
			},
			[]string{"link"},
		),
		Timeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "request_timeouts_total",
				Help:      "Requests that expired before a response matched",
			},
			[]string{"link"},
		),
		UnmatchedResponses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "unmatched_responses_total",
				Help:      "Inbound responses with no pending request (late or duplicate)",
			},
			[]string{"link"},
		),
		EncodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "encode_errors_total",
				Help:      "Message encode failures",
			},
			[]string{"channel"},
		),
		DecodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "decode_errors_total",
				Help:      "Message decode failures",
			},
			[]string{"channel"},
		),
		SchemaReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "schema_reloads_total",
				Help:      "Total successful schema reloads",
			},
		),
		SchemaReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "finswitch",
				Name:      "schema_reload_errors_total",
				Help:      "Total schema reload errors",
			},
		),
		ChannelsRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "finswitch",
				Name:      "channels_registered",
				Help:      "Channels currently held by the registry",
			},
		),
	}
}
