package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the safety-pipeline counters. Label cardinality is
// bounded: decisions, detector categories and operations are all closed
// enums.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	DetectorHits     *prometheus.CounterVec
	RateLimitDenials *prometheus.CounterVec
	ProviderFailures prometheus.Counter
	SuspiciousOutput prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_moderation_decisions_total",
			Help: "Moderation decisions by final decision value.",
		}, []string{"decision"}),
		DetectorHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_injection_detections_total",
			Help: "Prompt injection detections by category.",
		}, []string{"category"}),
		RateLimitDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_rate_limit_denials_total",
			Help: "Rate limit denials by operation.",
		}, []string{"operation"}),
		ProviderFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_provider_failures_total",
			Help: "LLM provider call or parse failures.",
		}),
		SuspiciousOutput: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_suspicious_output_total",
			Help: "Moderation responses downgraded to manual review.",
		}),
	}
}
