package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики Prometheus. Экспортируются каждым сервисом на /metrics.
var (
	// EventsReceived — количество принятых доменных событий по типу.
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_events_received_total",
		Help: "Domain events accepted for dispatch",
	}, []string{"event_type"})

	// DeliveryAttempts — попытки доставки по исходу.
	// outcome: success | failed | abandoned
	DeliveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_delivery_attempts_total",
		Help: "Webhook delivery attempts by outcome",
	}, []string{"outcome"})

	// DeliveryDuration — длительность HTTP-попытки доставки.
	DeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courier_delivery_duration_seconds",
		Help:    "Duration of a single delivery attempt",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// RetriesScheduled — количество запланированных retry.
	RetriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_retries_scheduled_total",
		Help: "Deliveries scheduled for a retry",
	})

	// DeliveriesExhausted — доставки, исчерпавшие все попытки.
	DeliveriesExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_deliveries_exhausted_total",
		Help: "Deliveries that permanently failed after exhausting retries",
	})
)

// Исходы для DeliveryAttempts.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)
