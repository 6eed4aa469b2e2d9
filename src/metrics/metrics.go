package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so services can run without it in tests.
type Metrics struct {
	PositionsOpened   prometheus.Counter
	PositionsClosed   *prometheus.CounterVec // mode: full | partial
	CloseConflicts    prometheus.Counter
	PaymentsVerified  *prometheus.CounterVec // outcome: credited | signature_mismatch | not_pending | error
	WalletCredited    prometheus.Counter
	BestEffortFailure *prometheus.CounterVec // module: margin | ledger | cache | wallet
	CloseDuration     prometheus.Histogram
}

// NewMetrics creates and registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PositionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_positions_opened_total",
			Help: "Positions opened",
		}),
		PositionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_positions_closed_total",
			Help: "Position closes by mode (full, partial)",
		}, []string{"mode"}),
		CloseConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_close_conflicts_total",
			Help: "Closes rejected because the position quantity changed concurrently",
		}),
		PaymentsVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_payments_verified_total",
			Help: "Payment verifications by outcome",
		}, []string{"outcome"}),
		WalletCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_wallet_credited_amount_total",
			Help: "Sum of wallet credits from verified payments",
		}),
		BestEffortFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_best_effort_failures_total",
			Help: "Best-effort steps that failed without failing the request",
		}, []string{"module"}),
		CloseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_close_duration_seconds",
			Help:    "Latency of a position close including wallet update",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}

	reg.MustRegister(
		m.PositionsOpened,
		m.PositionsClosed,
		m.CloseConflicts,
		m.PaymentsVerified,
		m.WalletCredited,
		m.BestEffortFailure,
		m.CloseDuration,
	)

	return m
}

// Handler exposes the default registry, which is where main registers Metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) Opened() {
	if m == nil {
		return
	}
	m.PositionsOpened.Inc()
}

func (m *Metrics) Closed(partial bool, seconds float64) {
	if m == nil {
		return
	}
	mode := "full"
	if partial {
		mode = "partial"
	}
	m.PositionsClosed.WithLabelValues(mode).Inc()
	m.CloseDuration.Observe(seconds)
}

func (m *Metrics) CloseConflict() {
	if m == nil {
		return
	}
	m.CloseConflicts.Inc()
}

func (m *Metrics) PaymentOutcome(outcome string, credited float64) {
	if m == nil {
		return
	}
	m.PaymentsVerified.WithLabelValues(outcome).Inc()
	if credited > 0 {
		m.WalletCredited.Add(credited)
	}
}

func (m *Metrics) BestEffortFailed(module string) {
	if m == nil {
		return
	}
	m.BestEffortFailure.WithLabelValues(module).Inc()
}
