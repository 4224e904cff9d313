package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics keeps label cardinality bounded: no per-player or per-treaty labels.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	treatiesOpened    prometheus.Counter
	treatiesFinalized *prometheus.CounterVec // outcome: ok, dissolved
	treatiesCancelled prometheus.Counter
	treatiesActive    prometheus.Gauge
	acceptRejections  *prometheus.CounterVec // code
	clauseChanges     *prometheus.CounterVec // kind, op

	connectionsActive prometheus.Gauge
	clientsDropped    prometheus.Counter
	connRejected      *prometheus.CounterVec // reason: auth, version, rate_limit, bad_request

	requestTotal    *prometheus.CounterVec // type
	requestDuration prometheus.Histogram
	turnsAdvanced   prometheus.Counter
	recorderErrors  prometheus.Counter
}

// New registers every metric with reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		treatiesOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "envoy_treaties_opened_total",
			Help: "Meetings opened",
		}),
		treatiesFinalized: f.NewCounterVec(prometheus.CounterOpts{
			Name: "envoy_treaties_finalized_total",
			Help: "Mutually accepted treaties by outcome",
		}, []string{"outcome"}),
		treatiesCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "envoy_treaties_cancelled_total",
			Help: "Meetings cancelled before agreement",
		}),
		treatiesActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "envoy_treaties_active",
			Help: "Open treaties",
		}),
		acceptRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "envoy_accept_rejections_total",
			Help: "Accept attempts refused by validation",
		}, []string{"code"}),
		clauseChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "envoy_clause_changes_total",
			Help: "Clauses added or removed",
		}, []string{"kind", "op"}),
		connectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "envoy_connections_active",
			Help: "Attached client connections",
		}),
		clientsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "envoy_clients_dropped_total",
			Help: "Connections dropped because their send buffer was full",
		}),
		connRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "envoy_connections_rejected_total",
			Help: "Connections or requests rejected at the edge",
		}, []string{"reason"}),
		requestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "envoy_requests_total",
			Help: "Diplomacy requests handled",
		}, []string{"type"}),
		requestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "envoy_request_duration_seconds",
			Help:    "Time spent handling one diplomacy request",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		turnsAdvanced: f.NewCounter(prometheus.CounterOpts{
			Name: "envoy_turns_advanced_total",
			Help: "Turn changes processed",
		}),
		recorderErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "envoy_recorder_errors_total",
			Help: "Treaty records that failed to persist",
		}),
	}
}

func (m *Metrics) TreatyOpened() {
	if m == nil {
		return
	}
	m.treatiesOpened.Inc()
}

// TreatyFinalized counts a mutual treaty; ok=false means the finalize check dissolved it.
func (m *Metrics) TreatyFinalized(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "dissolved"
	}
	m.treatiesFinalized.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TreatyCancelled() {
	if m == nil {
		return
	}
	m.treatiesCancelled.Inc()
}

func (m *Metrics) SetActiveTreaties(n int) {
	if m == nil {
		return
	}
	m.treatiesActive.Set(float64(n))
}

// AcceptRejected takes a validation reason code, a closed set.
func (m *Metrics) AcceptRejected(code string) {
	if m == nil {
		return
	}
	m.acceptRejections.WithLabelValues(code).Inc()
}

func (m *Metrics) ClauseChanged(kind string, added bool) {
	if m == nil {
		return
	}
	op := "add"
	if !added {
		op = "remove"
	}
	m.clauseChanges.WithLabelValues(kind, op).Inc()
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connectionsActive.Set(float64(n))
}

func (m *Metrics) ClientDropped() {
	if m == nil {
		return
	}
	m.clientsDropped.Inc()
}

// ConnectionRejected reason must be one of "auth", "version", "rate_limit", "bad_request".
func (m *Metrics) ConnectionRejected(reason string) {
	if m == nil {
		return
	}
	m.connRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RequestHandled(typ string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.WithLabelValues(typ).Inc()
	m.requestDuration.Observe(d.Seconds())
}

func (m *Metrics) TurnAdvanced() {
	if m == nil {
		return
	}
	m.turnsAdvanced.Inc()
}

func (m *Metrics) RecorderError() {
	if m == nil {
		return
	}
	m.recorderErrors.Inc()
}
