package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the runtime-level metrics shared by every component,
// execution context and connector.
type Metrics struct {
	// Lifecycle
	ComponentState *prometheus.GaugeVec
	Transitions    *prometheus.CounterVec
	HookFailures   *prometheus.CounterVec

	// Scheduling
	Rounds        *prometheus.CounterVec
	RoundDuration *prometheus.HistogramVec

	// Data flow
	Pushes           *prometheus.CounterVec
	ConnectorsActive prometheus.Gauge
	ConnectionsLost  prometheus.Counter
	NamingOperations *prometheus.CounterVec

	// NATS
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rtkit",
				Subsystem: "component",
				Name:      "state",
				Help:      "Component state per execution context (0=created, 1=inactive, 2=active, 3=error, 4=exiting)",
			},
			[]string{"component", "ec"},
		),

		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rtkit",
				Subsystem: "component",
				Name:      "transitions_total",
				Help:      "Total number of applied lifecycle transitions",
			},
			[]string{"component", "to"},
		),

		HookFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rtkit",
				Subsystem: "component",
				Name:      "hook_failures_total",
				Help:      "Total number of lifecycle hooks that returned an error or faulted",
			},
			[]string{"component", "hook"},
		),

		Rounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rtkit",
				Subsystem: "ec",
				Name:      "rounds_total",
				Help:      "Total number of execution rounds",
			},
			[]string{"ec", "kind"},
		),

		RoundDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rtkit",
				Subsystem: "ec",
				Name:      "round_duration_seconds",
				Help:      "Wall-clock duration of one execution round",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"ec"},
		),

		Pushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rtkit",
				Subsystem: "connector",
				Name:      "pushes_total",
				Help:      "Total number of publisher pushes by result status",
			},
			[]string{"connector", "status"},
		),

		ConnectorsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rtkit",
				Subsystem: "connector",
				Name:      "active",
				Help:      "Number of live connectors",
			},
		),

		ConnectionsLost: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rtkit",
				Subsystem: "connector",
				Name:      "connections_lost_total",
				Help:      "Total number of connectors torn down after a lost connection",
			},
		),

		NamingOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rtkit",
				Subsystem: "naming",
				Name:      "operations_total",
				Help:      "Total number of naming bind/unbind attempts by result",
			},
			[]string{"op", "status"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rtkit",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "rtkit",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.ComponentState,
		c.Transitions,
		c.HookFailures,
		c.Rounds,
		c.RoundDuration,
		c.Pushes,
		c.ConnectorsActive,
		c.ConnectionsLost,
		c.NamingOperations,
		c.NATSConnected,
		c.NATSReconnects,
	}
}

// RecordComponentState sets the state gauge for one component in one execution context.
func (c *Metrics) RecordComponentState(component, ec string, state int) {
	c.ComponentState.WithLabelValues(component, ec).Set(float64(state))
}

// RecordTransition counts an applied transition.
func (c *Metrics) RecordTransition(component, to string) {
	c.Transitions.WithLabelValues(component, to).Inc()
}

// RecordHookFailure counts a failed or faulted hook.
func (c *Metrics) RecordHookFailure(component, hook string) {
	c.HookFailures.WithLabelValues(component, hook).Inc()
}

// RecordRound counts one execution round and its duration.
func (c *Metrics) RecordRound(ec, kind string, duration time.Duration) {
	c.Rounds.WithLabelValues(ec, kind).Inc()
	c.RoundDuration.WithLabelValues(ec).Observe(duration.Seconds())
}

// RecordPush counts a publisher push by port status name.
func (c *Metrics) RecordPush(connector, status string) {
	c.Pushes.WithLabelValues(connector, status).Inc()
}

// RecordConnectorCount sets the number of live connectors.
func (c *Metrics) RecordConnectorCount(n int) {
	c.ConnectorsActive.Set(float64(n))
}

// RecordConnectionLost counts a connector removed after its transport failed.
func (c *Metrics) RecordConnectionLost() {
	c.ConnectionsLost.Inc()
}

// RecordNaming counts a naming operation.
func (c *Metrics) RecordNaming(op string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	c.NamingOperations.WithLabelValues(op, status).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
