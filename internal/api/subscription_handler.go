package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/scroungers/courier/internal/domain"
	"github.com/scroungers/courier/internal/repo"
	"github.com/scroungers/courier/internal/signature"
)

// ListSubscriptions возвращает список подписок.
// GET /api/v1/subscriptions
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	filter := repo.SubscriptionFilter{Limit: 50}

	if v := r.URL.Query().Get("account_id"); v != "" {
		accountID, err := uuid.Parse(v)
		if err != nil {
			BadRequest(w, "invalid account_id")
			return
		}
		filter.AccountID = &accountID
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "invalid active flag")
			return
		}
		filter.Active = &active
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			BadRequest(w, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	subs, err := h.subscriptionRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]SubscriptionResponse, len(subs))
	for i, s := range subs {
		result[i] = SubscriptionFromDomain(s)
	}

	List(w, result, len(result))
}

// CreateSubscription регистрирует нового подписчика.
// POST /api/v1/subscriptions
//
// Секрет генерируется на сервере и возвращается открытым текстом ровно
// один раз — в ответе этого запроса.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.AccountID == uuid.Nil {
		BadRequest(w, "account_id is required")
		return
	}
	if err := domain.ValidateTargetURL(req.URL); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if err := domain.ValidateEventFilter(req.Events); err != nil {
		BadRequest(w, err.Error())
		return
	}

	secret, err := signature.GenerateSecret()
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	now := time.Now()
	sub := &domain.Subscription{
		ID:        uuid.New(),
		AccountID: req.AccountID,
		URL:       req.URL,
		Secret:    secret,
		Events:    req.Events,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.subscriptionRepo.Create(r.Context(), sub); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("subscription created",
		"subscription_id", sub.ID,
		"account_id", sub.AccountID,
		"url", sub.URL,
		"events", len(sub.Events),
	)

	Created(w, SecretResponse{
		Subscription: SubscriptionFromDomain(*sub),
		Secret:       secret,
	})
}

// GetSubscription возвращает подписку по ID.
// GET /api/v1/subscriptions/{id}
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid subscription id")
		return
	}

	sub, err := h.subscriptionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "subscription not found") {
		return
	}

	Success(w, SubscriptionFromDomain(*sub))
}

// UpdateSubscription обновляет подписку.
// PUT /api/v1/subscriptions/{id}
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid subscription id")
		return
	}

	var req UpdateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	sub, err := h.subscriptionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "subscription not found") {
		return
	}

	if req.URL != nil {
		if err := domain.ValidateTargetURL(*req.URL); err != nil {
			BadRequest(w, err.Error())
			return
		}
		sub.URL = *req.URL
	}
	if req.Events != nil {
		if err := domain.ValidateEventFilter(*req.Events); err != nil {
			BadRequest(w, err.Error())
			return
		}
		sub.Events = *req.Events
	}
	if req.Active != nil {
		sub.Active = *req.Active
	}
	sub.UpdatedAt = time.Now()

	if err := h.subscriptionRepo.Update(r.Context(), sub); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, SubscriptionFromDomain(*sub))
}

// DeleteSubscription удаляет подписку.
// DELETE /api/v1/subscriptions/{id}
//
// Накопленные по подписке failed-доставки терминально завершит
// Retry Scheduler при следующем sweep.
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid subscription id")
		return
	}

	if err := h.subscriptionRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "subscription not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("subscription deleted", "subscription_id", id)

	NoContent(w)
}

// RotateSubscriptionSecret заменяет секрет подписки.
// POST /api/v1/subscriptions/{id}/rotate
//
// Старый секрет перестаёт действовать немедленно. Новый возвращается
// открытым текстом ровно один раз.
func (h *Handler) RotateSubscriptionSecret(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid subscription id")
		return
	}

	sub, err := h.subscriptionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "subscription not found") {
		return
	}

	secret, err := signature.GenerateSecret()
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	sub.RotateSecret(secret)

	if err := h.subscriptionRepo.Update(r.Context(), sub); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("subscription secret rotated", "subscription_id", id)

	Success(w, SecretResponse{
		Subscription: SubscriptionFromDomain(*sub),
		Secret:       secret,
	})
}

// VerifySignature проверяет подпись от имени подписки.
// POST /api/v1/subscriptions/{id}/verify
//
// Инструмент отладки для интеграторов: позволяет проверить свою
// реализацию верификации против той же схемы, которой подписывает Sender.
func (h *Handler) VerifySignature(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid subscription id")
		return
	}

	var req VerifySignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(req.Payload) == 0 || req.Signature == "" || req.Timestamp == 0 {
		BadRequest(w, "payload, signature and timestamp are required")
		return
	}

	sub, err := h.subscriptionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "subscription not found") {
		return
	}

	valid, reason := signature.Check(req.Payload, req.Signature, sub.Secret, req.Timestamp, signature.DefaultTolerance)

	Success(w, VerifySignatureResponse{Valid: valid, Reason: reason})
}

// TestSubscription выполняет тестовую доставку на подписку.
// POST /api/v1/subscriptions/{id}/test
//
// Тип события по умолчанию — первый из фильтра подписки. Попытка
// выполняется синхронно, результат (включая запись Delivery) — в ответе.
func (h *Handler) TestSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid subscription id")
		return
	}

	var req TestSubscriptionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	sub, err := h.subscriptionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "subscription not found") {
		return
	}

	eventType := req.Event
	if eventType == "" {
		eventType = sub.Events[0]
	}
	if !eventType.IsValid() {
		BadRequest(w, "unknown event type")
		return
	}

	data := req.Data
	if data == nil {
		data = map[string]any{"test": true}
	}

	delivery, err := h.dispatcher.DeliverTo(r.Context(), sub, eventType, data)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, DeliveryFromDomain(*delivery))
}

// ListEventTypes возвращает справочник поддерживаемых типов событий.
// GET /api/v1/event-types
func (h *Handler) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	types := domain.AllEventTypes()
	List(w, types, len(types))
}
