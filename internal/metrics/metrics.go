package metrics

import (
	"context"

	"github.com/UnknownOlympus/pincheck/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal   *prometheus.CounterVec
	StageFailures *prometheus.CounterVec
	Pincodes      *prometheus.CounterVec
	CheckSeconds  *prometheus.HistogramVec
	ActiveChecks  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ChecksTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pincheck_checks_total",
			Help: "Total number of finished provider checks by resulting status.",
		}, []string{"provider", "status"}),
		StageFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pincheck_stage_failures_total",
			Help: "Total number of provider checks that failed at a given stage.",
		}, []string{"provider", "stage"}),
		Pincodes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pincheck_pincodes_total",
			Help: "Total number of input pincodes by validity.",
		}, []string{"validity"}),
		CheckSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pincheck_check_duration_seconds",
			Help:    "Duration of a single provider check.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"provider"}),
		ActiveChecks: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pincheck_active_checks",
			Help: "Number of provider checks currently running.",
		}),
	}
}

// ObserveInput counts the partition of the input file.
func (m *Metrics) ObserveInput(valid, invalid int) {
	m.Pincodes.WithLabelValues("valid").Add(float64(valid))
	m.Pincodes.WithLabelValues("invalid").Add(float64(invalid))
}

// Emit implements events.Sink.
func (m *Metrics) Emit(_ context.Context, ev events.Event) {
	switch {
	case ev.Stage == events.StageCheck && ev.Outcome == events.OutcomeStarted:
		m.ActiveChecks.Inc()
	case ev.Stage == events.StageCheck && ev.Outcome == events.OutcomeDone:
		m.ActiveChecks.Dec()
		m.ChecksTotal.WithLabelValues(ev.Provider, string(ev.Status)).Inc()
		m.CheckSeconds.WithLabelValues(ev.Provider).Observe(ev.Duration.Seconds())
	case ev.Outcome == events.OutcomeFailed:
		m.StageFailures.WithLabelValues(ev.Provider, string(ev.Stage)).Inc()
	}
}
