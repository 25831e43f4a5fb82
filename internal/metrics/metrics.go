// Package metrics exposes Prometheus metrics for the credit engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics tracks evaluation outcomes and provider latency.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Evaluations        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	ProviderDuration   *prometheus.HistogramVec
	ProviderFailures   *prometheus.CounterVec
	PolicyRulesLoaded  prometheus.Gauge
	PolicyRuleErrors   prometheus.Counter
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "motor_credito_evaluations_total",
			Help: "Total number of credit evaluations by status and rejection code",
		}, []string{"status", "rejection_code"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "motor_credito_evaluation_duration_seconds",
			Help:    "End-to-end duration of a credit evaluation",
			Buckets: durationBuckets,
		}),
		ProviderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "motor_credito_provider_duration_seconds",
			Help:    "Duration of external provider calls by source",
			Buckets: durationBuckets,
		}, []string{"source"}),
		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "motor_credito_provider_failures_total",
			Help: "Provider calls that failed or timed out, by source",
		}, []string{"source"}),
		PolicyRulesLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "motor_credito_policy_rules_loaded",
			Help: "Number of policy rules currently loaded",
		}),
		PolicyRuleErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "motor_credito_policy_rule_errors_total",
			Help: "Policy rule evaluations that errored and were skipped",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveEvaluation records a finished evaluation.
func (m *Metrics) ObserveEvaluation(eval *domain.Evaluation) {
	if m == nil || eval == nil {
		return
	}
	m.Evaluations.WithLabelValues(eval.Status, string(eval.Result.RejectionCode)).Inc()
	m.EvaluationDuration.Observe(float64(eval.Metadata.TotalMs) / 1000)
	if n := len(eval.Metadata.PolicyRuleErrors); n > 0 {
		m.PolicyRuleErrors.Add(float64(n))
	}
}

// ObserveProvider records one provider call.
func (m *Metrics) ObserveProvider(source string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.ProviderDuration.WithLabelValues(source).Observe(d.Seconds())
	if failed {
		m.ProviderFailures.WithLabelValues(source).Inc()
	}
}

// SetPolicyRulesLoaded records the number of loaded policy rules.
func (m *Metrics) SetPolicyRulesLoaded(n int) {
	if m == nil {
		return
	}
	m.PolicyRulesLoaded.Set(float64(n))
}
