// Package metrics defines prometheus metric types and provides convenience
// methods to add accounting to various parts of the pipeline.
//
// When defining new operations or metrics, these are helpful values to track:
//  - things coming into or go out of the system: requests, files, tests, api calls.
//  - the success or error status of any of the above.
//  - the distribution of processing latency.
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts post-handshake distribution frames processed,
	// by kind ("tick", "data").
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnode_frames_total",
			Help: "Post-handshake distribution frames processed, by kind.",
		}, []string{"kind"})

	// HandshakeOutcomes counts distribution handshake attempts by
	// outcome ("ok", "bad_flags", "digest_mismatch", "io_error").
	HandshakeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnode_handshake_outcomes_total",
			Help: "Distribution handshake attempts by outcome.",
		}, []string{"outcome"})

	// CodecErrors counts ETF encode/decode failures by operation and
	// etf.Kind string.
	CodecErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cnode_codec_errors_total",
			Help: "ETF encode/decode errors by operation and kind.",
		}, []string{"op", "kind"})

	// EPMDLatency tracks round-trip latency of EPMD publish/port calls.
	EPMDLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cnode_epmd_latency_seconds",
			Help:    "EPMD client call latency distribution (seconds).",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"})

	// ActiveSessions tracks the number of distribution sessions
	// currently past the handshake and running their message loop.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cnode_active_sessions",
			Help: "Distribution sessions currently serving their message loop.",
		},
	)

	// HandlerErrors counts RegSend handler invocations that returned an
	// error (and therefore produced no reply).
	HandlerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cnode_handler_errors_total",
			Help: "RegSend handler invocations that returned an error.",
		},
	)
)

// init() prints a log message to let the user know that the package has been
// loaded and the metrics registered. The metrics are auto-registered, which
// means they are registered as soon as this package is loaded, and the exact
// time this occurs (and whether this occurs at all in a given context) can be
// opaque.
func init() {
	log.Println("Prometheus metrics in cnode.metrics are registered.")
}
