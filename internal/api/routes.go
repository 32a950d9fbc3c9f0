package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Subscriptions
	mux.Handle("GET /api/v1/subscriptions", chain(http.HandlerFunc(h.ListSubscriptions)))
	mux.Handle("POST /api/v1/subscriptions", chain(http.HandlerFunc(h.CreateSubscription)))
	mux.Handle("GET /api/v1/subscriptions/{id}", chain(http.HandlerFunc(h.GetSubscription)))
	mux.Handle("PUT /api/v1/subscriptions/{id}", chain(http.HandlerFunc(h.UpdateSubscription)))
	mux.Handle("DELETE /api/v1/subscriptions/{id}", chain(http.HandlerFunc(h.DeleteSubscription)))
	mux.Handle("POST /api/v1/subscriptions/{id}/rotate", chain(http.HandlerFunc(h.RotateSubscriptionSecret)))
	mux.Handle("POST /api/v1/subscriptions/{id}/verify", chain(http.HandlerFunc(h.VerifySignature)))
	mux.Handle("POST /api/v1/subscriptions/{id}/test", chain(http.HandlerFunc(h.TestSubscription)))
	mux.Handle("GET /api/v1/subscriptions/{id}/deliveries", chain(http.HandlerFunc(h.ListSubscriptionDeliveries)))

	// Deliveries
	mux.Handle("GET /api/v1/deliveries", chain(http.HandlerFunc(h.ListDeliveries)))
	mux.Handle("GET /api/v1/deliveries/{id}", chain(http.HandlerFunc(h.GetDelivery)))
	mux.Handle("POST /api/v1/deliveries/{id}/redeliver", chain(http.HandlerFunc(h.RedeliverDelivery)))

	// Events
	mux.Handle("POST /api/v1/events", chain(http.HandlerFunc(h.PublishEvent)))

	// Event types (справочник для UI и CLI)
	mux.Handle("GET /api/v1/event-types", chain(http.HandlerFunc(h.ListEventTypes)))
}
