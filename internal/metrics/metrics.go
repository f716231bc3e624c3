package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	PollsStarted  *prometheus.CounterVec
	PollOutcomes  *prometheus.CounterVec
	PollAttempts  *prometheus.HistogramVec
	PollDuration  *prometheus.HistogramVec
	ActivePolls   prometheus.Gauge
	NotifyFailure *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PollsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "payment",
				Name:      "polls_started_total",
				Help:      "Payment status polls started, per payment kind",
			},
			[]string{"kind"},
		),
		PollOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "payment",
				Name:      "poll_outcomes_total",
				Help:      "Resolved payment status polls by outcome and reason",
			},
			[]string{"kind", "outcome", "reason"},
		),
		PollAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "payment",
				Name:      "poll_attempts",
				Help:      "Verify calls needed before a poll resolved",
				Buckets:   []float64{1, 2, 3, 5, 8, 12, 20, 30, 50},
			},
			[]string{"kind", "outcome"},
		),
		PollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "payment",
				Name:      "poll_duration_seconds",
				Help:      "Time from poll start to resolution",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300, 600},
			},
			[]string{"kind", "outcome"},
		),
		ActivePolls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "payment",
			Name:      "active_polls",
			Help:      "Payment status polls currently running",
		}),
		NotifyFailure: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "payment",
				Name:      "notify_failures_total",
				Help:      "Outcome notifications that could not be delivered",
			},
			[]string{"notifier"},
		),
	}

	reg.MustRegister(m.PollsStarted, m.PollOutcomes, m.PollAttempts, m.PollDuration, m.ActivePolls, m.NotifyFailure)
	return m
}

func (m *Metrics) PollStarted(kind string) {
	m.PollsStarted.WithLabelValues(kind).Inc()
	m.ActivePolls.Inc()
}

func (m *Metrics) PollResolved(kind, outcome, reason string, attempts int, took time.Duration) {
	m.ActivePolls.Dec()
	if reason == "" {
		reason = "none"
	}
	m.PollOutcomes.WithLabelValues(kind, outcome, reason).Inc()
	m.PollAttempts.WithLabelValues(kind, outcome).Observe(float64(attempts))
	m.PollDuration.WithLabelValues(kind, outcome).Observe(took.Seconds())
}

func (m *Metrics) PollCanceled() {
	m.ActivePolls.Dec()
}

func (m *Metrics) NotifyFailed(notifier string) {
	m.NotifyFailure.WithLabelValues(notifier).Inc()
}
