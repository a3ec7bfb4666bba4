package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	datagrams = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "luxbridge",
			Subsystem: "protocol",
			Name:      "datagrams_total",
			Help:      "Datagrams received, by decoded kind.",
		},
		[]string{"kind"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "luxbridge",
			Subsystem: "protocol",
			Name:      "decode_errors_total",
			Help:      "Datagrams dropped by the decoder.",
		},
		[]string{"reason"},
	)
	assembleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "luxbridge",
			Subsystem: "frame",
			Name:      "assemble_errors_total",
			Help:      "Color writes rejected by the frame assembler.",
		},
		[]string{"reason"},
	)
	transmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "luxbridge",
			Subsystem: "strip",
			Name:      "transmissions_total",
			Help:      "Pulse-train transmissions, by outcome (ok, degraded, failed).",
		},
		[]string{"outcome"},
	)
	transmitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "luxbridge",
			Subsystem: "strip",
			Name:      "transmit_duration_seconds",
			Help:      "Blocking duration of one pulse-train send.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "luxbridge",
			Subsystem: "lifecycle",
			Name:      "state_transitions_total",
			Help:      "Connectivity state machine transitions.",
		},
		[]string{"from", "to"},
	)
	connectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "luxbridge",
			Subsystem: "lifecycle",
			Name:      "connection_state",
			Help:      "Current connectivity state as its enum value.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			datagrams, decodeErrors, assembleErrors,
			transmissions, transmitDuration,
			stateTransitions, connectionState,
		)
	})
}

func RecordDatagram(kind string) {
	RegisterMetrics()
	datagrams.WithLabelValues(kind).Inc()
}

func RecordDecodeError(reason string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(reason).Inc()
}

func RecordAssembleError(reason string) {
	RegisterMetrics()
	assembleErrors.WithLabelValues(reason).Inc()
}

func RecordTransmit(duration time.Duration, outcome string) {
	RegisterMetrics()
	transmissions.WithLabelValues(outcome).Inc()
	transmitDuration.Observe(duration.Seconds())
}

func RecordStateTransition(from, to string, stateValue int) {
	RegisterMetrics()
	stateTransitions.WithLabelValues(from, to).Inc()
	connectionState.Set(float64(stateValue))
}
