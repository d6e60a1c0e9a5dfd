// metrics — счётчики конвейера и модерации в Prometheus.
// Методы безопасны на nil-получателе: сервис можно собрать без метрик.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы элемента в ingest_items_total.
const (
	OutcomeSeen      = "seen"
	OutcomePassed    = "passed"
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// Результаты для ingest_runs_total, enrich_generation_total и moderation_transitions_total.
const (
	ResultOK       = "ok"
	ResultFailed   = "failed"
	ResultFallback = "fallback"
)

type Metrics struct {
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	items       *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
	generation  *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// New регистрирует коллекторы в reg (обычно prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Batch runs by result.",
		}, []string{"result"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Duration of batch runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		items: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_items_total",
			Help: "Feed items by source and pipeline outcome.",
		}, []string{"source", "outcome"}),
		fetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_fetch_errors_total",
			Help: "Feed fetch failures by source.",
		}, []string{"source"}),
		generation: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enrich_generation_total",
			Help: "Insight generation calls by result.",
		}, []string{"result"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_transitions_total",
			Help: "Moderation actions by action and result.",
		}, []string{"action", "result"}),
	}
}

func (m *Metrics) Run(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *Metrics) Item(source, outcome string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) FetchError(source string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(source).Inc()
}

// Generation учитывает один результат генерации: ok или fallback.
func (m *Metrics) Generation(fallback bool) {
	if m == nil {
		return
	}
	result := ResultOK
	if fallback {
		result = ResultFallback
	}
	m.generation.WithLabelValues(result).Inc()
}

func (m *Metrics) Transition(action string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	m.transitions.WithLabelValues(action, result).Inc()
}
