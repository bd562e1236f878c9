package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records Stripe webhook processing outcomes.
type WebhookMetrics struct {
	duration *prometheus.HistogramVec
	received *prometheus.CounterVec
	applied  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_duration_seconds",
		Help:    "Duration of webhook event processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received",
		Help: "Webhook events accepted after signature verification.",
	}, []string{"event_type"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_applied",
		Help: "Webhook events that resulted in an entitlement update.",
	}, []string{"event_type"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_skipped",
		Help: "Webhook events acknowledged without an entitlement update.",
	}, []string{"event_type", "reason"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed",
		Help: "Webhook events that failed during processing.",
	}, []string{"event_type"})
	reg.MustRegister(duration, received, applied, skipped, failure)
	return &WebhookMetrics{
		duration: duration,
		received: received,
		applied:  applied,
		skipped:  skipped,
		failure:  failure,
	}
}

// ObserveDuration records processing time for the event type.
func (w *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncReceived increments the received counter for the event type.
func (w *WebhookMetrics) IncReceived(eventType string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncApplied increments the applied counter for the event type.
func (w *WebhookMetrics) IncApplied(eventType string) {
	if w == nil || w.applied == nil {
		return
	}
	w.applied.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncSkipped increments the skipped counter with the supplied reason.
func (w *WebhookMetrics) IncSkipped(eventType, reason string) {
	if w == nil || w.skipped == nil {
		return
	}
	w.skipped.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}

// IncFailure increments the failure counter for the event type.
func (w *WebhookMetrics) IncFailure(eventType string) {
	if w == nil || w.failure == nil {
		return
	}
	w.failure.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
