// Package metrics registers the process's Prometheus instrumentation and
// adapts it to the narrow interfaces internal/supervisor and
// internal/transport/httpsession depend on.
//
// Grounded on internal/adapter/inbound/http/metrics.go from the teacher
// repo: same promauto.With(registerer) construction style and Namespace
// convention, retargeted from gateway request/policy/audit metrics to
// backend supervision and session metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mcphubd"

// Metrics holds every Prometheus collector the daemon registers.
type Metrics struct {
	BackendsStartedTotal          *prometheus.CounterVec
	BackendsImmediateCrashTotal   *prometheus.CounterVec
	BackendsRestartedTotal        *prometheus.CounterVec
	BackendsRestartExhaustedTotal *prometheus.CounterVec
	BackendsCrashedTotal          *prometheus.CounterVec
	RouteDurationSeconds          *prometheus.HistogramVec

	ActiveSessions      prometheus.Gauge
	SSEEventsEmitted    *prometheus.CounterVec
	ReplayBufferTrimmed prometheus.Counter
}

// New creates and registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		BackendsStartedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backends_started_total",
				Help:      "Total number of backend processes successfully started",
			},
			[]string{"backend"},
		),
		BackendsImmediateCrashTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backends_immediate_crash_total",
				Help:      "Total number of backends removed for crashing within the startup window",
			},
			[]string{"backend"},
		),
		BackendsRestartedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backends_restarted_total",
				Help:      "Total number of backend respawns after a transient crash",
			},
			[]string{"backend"},
		),
		BackendsRestartExhaustedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backends_restart_exhausted_total",
				Help:      "Total number of backends permanently removed after exceeding the restart budget",
			},
			[]string{"backend"},
		),
		BackendsCrashedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backends_crashed_total",
				Help:      "Total number of backend pipe failures observed during routing",
			},
			[]string{"backend"},
		),
		RouteDurationSeconds: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "route_duration_seconds",
				Help:      "Time spent routing one frame to a backend and back",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "outcome"},
		),
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_http_sessions",
				Help:      "Number of currently live HTTP sessions",
			},
		),
		SSEEventsEmitted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sse_events_emitted_total",
				Help:      "Total number of SSE events emitted, by kind",
			},
			[]string{"kind"},
		),
		ReplayBufferTrimmed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replay_buffer_trimmed_total",
				Help:      "Total number of buffered SSE events dropped to enforce the replay buffer cap",
			},
		),
	}
}

// Supervisor-facing adapter methods — satisfy internal/supervisor.Metrics.

func (m *Metrics) BackendStarted(name string) { m.BackendsStartedTotal.WithLabelValues(name).Inc() }
func (m *Metrics) BackendImmediateCrash(name string) {
	m.BackendsImmediateCrashTotal.WithLabelValues(name).Inc()
}
func (m *Metrics) BackendRestarted(name string) {
	m.BackendsRestartedTotal.WithLabelValues(name).Inc()
}
func (m *Metrics) BackendRestartExhausted(name string) {
	m.BackendsRestartExhaustedTotal.WithLabelValues(name).Inc()
}
func (m *Metrics) BackendCrashed(name string) { m.BackendsCrashedTotal.WithLabelValues(name).Inc() }

// RouteDuration satisfies internal/supervisor.Metrics.
func (m *Metrics) RouteDuration(name, outcome string, d time.Duration) {
	m.RouteDurationSeconds.WithLabelValues(name, outcome).Observe(d.Seconds())
}

// SessionOpened/SessionClosed/EventEmitted/ReplayTrimmed satisfy
// internal/transport/httpsession's metrics dependency.

func (m *Metrics) SessionOpened()  { m.ActiveSessions.Inc() }
func (m *Metrics) SessionClosed()  { m.ActiveSessions.Dec() }
func (m *Metrics) EventEmitted(kind string) {
	m.SSEEventsEmitted.WithLabelValues(kind).Inc()
}
func (m *Metrics) ReplayTrimmed() { m.ReplayBufferTrimmed.Inc() }
