package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teachertime_webhook_events_total",
			Help: "Number of handled payment webhooks by outcome",
		},
		[]string{"outcome"},
	)

	WebhookProcessingTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "teachertime_webhook_processing_seconds",
			Help: "Time taken to handle a payment webhook",
		},
	)

	PayrexxLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teachertime_payrexx_lookups_total",
			Help: "Number of live Payrexx transaction lookups by result",
		},
		[]string{"result"},
	)

	LifecycleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teachertime_lifecycle_transitions_total",
			Help: "Rows moved by background sweeps",
		},
		[]string{"sweep"},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call twice.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(WebhookEvents, WebhookProcessingTime, PayrexxLookups, LifecycleTransitions)
	})
}

// ObserveWebhook records one webhook delivery.
func ObserveWebhook(outcome string, took time.Duration) {
	WebhookEvents.WithLabelValues(outcome).Inc()
	WebhookProcessingTime.Observe(took.Seconds())
}

func ObservePayrexxLookup(result string) {
	PayrexxLookups.WithLabelValues(result).Inc()
}

func ObserveSweep(sweep string, rows int64) {
	if rows > 0 {
		LifecycleTransitions.WithLabelValues(sweep).Add(float64(rows))
	}
}
