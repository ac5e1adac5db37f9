package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesProcessed The total number of processed messages (counter)
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processed_total",
			Help:      "The total number of processed messages",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingFailed total number of message processing failures (counter)
	MessagesProcessingFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messages",
			Name:      "processing_failed_total",
			Help:      "The total number of message processing failures",
		},
		[]string{"topic", "handler"},
	)

	// MessagesProcessingDuration The total time spent processing messages (summary with quantiles 0.5, 0.9, and 0.99)
	MessagesProcessingDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "messages",
			Name:       "processing_duration_seconds",
			Help:       "The total time spent processing messages",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"topic", "handler"},
	)

	// BookingsCreated counts accepted bookings.
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "created_total",
			Help:      "The total number of bookings created",
		},
	)

	// BookingsExpired counts pending bookings cancelled by the expiry sweep.
	BookingsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "expired_total",
			Help:      "The total number of bookings expired for lack of payment",
		},
	)

	// WebhooksReceived counts gateway webhooks by apply outcome
	// (applied, already_applied, rejected, invalid_signature).
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhooks",
			Name:      "received_total",
			Help:      "The total number of payment gateway webhooks received",
		},
		[]string{"result"},
	)

	// RefundsIssued counts refund commands sent to the gateway.
	RefundsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "refunds",
			Name:      "issued_total",
			Help:      "The total number of refunds sent to the payment gateway",
		},
	)
)
