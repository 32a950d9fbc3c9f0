package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/scroungers/courier/internal/domain"
	"github.com/scroungers/courier/internal/repo"
)

// parseDeliveryFilter разбирает общие query-параметры журнала доставок.
// При ошибке пишет ответ 400 и возвращает ok=false.
func parseDeliveryFilter(w http.ResponseWriter, r *http.Request) (repo.DeliveryFilter, bool) {
	filter := repo.DeliveryFilter{Limit: 50}

	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.DeliveryStatus(v)
		switch status {
		case domain.DeliveryStatusPending, domain.DeliveryStatusSuccess, domain.DeliveryStatusFailed:
			filter.Status = status
		default:
			BadRequest(w, "invalid status (supported: pending, success, failed)")
			return filter, false
		}
	}
	if v := r.URL.Query().Get("event_type"); v != "" {
		eventType := domain.EventType(v)
		if !eventType.IsValid() {
			BadRequest(w, "unknown event type")
			return filter, false
		}
		filter.EventType = eventType
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			BadRequest(w, "invalid limit")
			return filter, false
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			BadRequest(w, "invalid offset")
			return filter, false
		}
		filter.Offset = offset
	}

	return filter, true
}

// ListDeliveries возвращает журнал доставок.
// GET /api/v1/deliveries
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseDeliveryFilter(w, r)
	if !ok {
		return
	}

	if v := r.URL.Query().Get("subscription_id"); v != "" {
		subID, err := uuid.Parse(v)
		if err != nil {
			BadRequest(w, "invalid subscription_id")
			return
		}
		filter.SubscriptionID = &subID
	}

	deliveries, err := h.deliveryRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DeliveryResponse, len(deliveries))
	for i, d := range deliveries {
		result[i] = DeliveryFromDomain(d)
	}

	List(w, result, len(result))
}

// ListSubscriptionDeliveries возвращает журнал доставок одной подписки.
// GET /api/v1/subscriptions/{id}/deliveries
func (h *Handler) ListSubscriptionDeliveries(w http.ResponseWriter, r *http.Request) {
	subID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid subscription id")
		return
	}

	// Подписка должна существовать: пустой журнал и чужой ID различимы.
	if _, err := h.subscriptionRepo.GetByID(r.Context(), subID); HandleRepoError(w, h.logger, err, "subscription not found") {
		return
	}

	filter, ok := parseDeliveryFilter(w, r)
	if !ok {
		return
	}
	filter.SubscriptionID = &subID

	deliveries, err := h.deliveryRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DeliveryResponse, len(deliveries))
	for i, d := range deliveries {
		result[i] = DeliveryFromDomain(d)
	}

	List(w, result, len(result))
}

// GetDelivery возвращает запись доставки по ID.
// GET /api/v1/deliveries/{id}
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid delivery id")
		return
	}

	delivery, err := h.deliveryRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "delivery not found") {
		return
	}

	Success(w, DeliveryFromDomain(*delivery))
}

// RedeliverDelivery возвращает доставку в оборот с чистым бюджетом retry.
// POST /api/v1/deliveries/{id}/redeliver
//
// Счётчик попыток сбрасывается, next_retry_at ставится в now — ближайший
// sweep Retry Scheduler'а выполнит попытку с исходным payload. Работает
// и для терминально failed, и для уже доставленных записей.
func (h *Handler) RedeliverDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid delivery id")
		return
	}

	delivery, err := h.deliveryRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "delivery not found") {
		return
	}

	if delivery.Status == domain.DeliveryStatusPending {
		InvalidState(w, "delivery attempt is still in progress")
		return
	}

	now := time.Now()
	delivery.Status = domain.DeliveryStatusFailed
	delivery.AttemptCount = 0
	delivery.ErrorMessage = "redelivery requested"
	delivery.NextRetryAt = &now
	delivery.DeliveredAt = nil
	delivery.UpdatedAt = now

	if err := h.deliveryRepo.Update(r.Context(), delivery); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("redelivery scheduled", "delivery_id", id)

	JSON(w, http.StatusAccepted, DataResponse{Data: DeliveryFromDomain(*delivery)})
}
