package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/scroungers/courier/internal/domain"
	"github.com/scroungers/courier/internal/signature"
)

// Subscription DTOs

// CreateSubscriptionRequest — запрос на создание подписки.
type CreateSubscriptionRequest struct {
	AccountID uuid.UUID          `json:"account_id"`
	URL       string             `json:"url"`
	Events    []domain.EventType `json:"events"`
}

// UpdateSubscriptionRequest — запрос на обновление подписки.
type UpdateSubscriptionRequest struct {
	URL    *string             `json:"url,omitempty"`
	Events *[]domain.EventType `json:"events,omitempty"`
	Active *bool               `json:"active,omitempty"`
}

// SubscriptionResponse — ответ с подпиской. Секрет наружу не отдаётся,
// только маска и признак наличия.
type SubscriptionResponse struct {
	ID           uuid.UUID          `json:"id"`
	AccountID    uuid.UUID          `json:"account_id"`
	URL          string             `json:"url"`
	Events       []domain.EventType `json:"events"`
	Active       bool               `json:"active"`
	MaskedSecret string             `json:"masked_secret,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// SubscriptionFromDomain конвертирует domain.Subscription в SubscriptionResponse.
func SubscriptionFromDomain(s domain.Subscription) SubscriptionResponse {
	resp := SubscriptionResponse{
		ID:        s.ID,
		AccountID: s.AccountID,
		URL:       s.URL,
		Events:    s.Events,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.HasSecret() {
		resp.MaskedSecret = signature.MaskSecret(s.Secret)
	}
	return resp
}

// SecretResponse — ответ с только что созданным или ротированным секретом.
// Единственное место, где секрет возвращается открытым текстом.
type SecretResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	Secret       string               `json:"secret"`
}

// VerifySignatureRequest — запрос на проверку подписи.
type VerifySignatureRequest struct {
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
	Timestamp int64           `json:"timestamp"`
}

// VerifySignatureResponse — результат проверки подписи.
type VerifySignatureResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// TestSubscriptionRequest — запрос на тестовую доставку.
type TestSubscriptionRequest struct {
	Event domain.EventType `json:"event,omitempty"`
	Data  map[string]any   `json:"data,omitempty"`
}

// Delivery DTOs

// DeliveryResponse — ответ с записью доставки.
type DeliveryResponse struct {
	ID             uuid.UUID        `json:"id"`
	SubscriptionID uuid.UUID        `json:"subscription_id"`
	EventType      domain.EventType `json:"event_type"`
	Payload        json.RawMessage  `json:"payload,omitempty"`
	Status         string           `json:"status"`
	AttemptCount   int              `json:"attempt_count"`
	StatusCode     *int             `json:"status_code,omitempty"`
	ResponseBody   string           `json:"response_body,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	NextRetryAt    *time.Time       `json:"next_retry_at,omitempty"`
	DeliveredAt    *time.Time       `json:"delivered_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// DeliveryFromDomain конвертирует domain.Delivery в DeliveryResponse.
func DeliveryFromDomain(d domain.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:             d.ID,
		SubscriptionID: d.SubscriptionID,
		EventType:      d.EventType,
		Payload:        d.Payload,
		Status:         string(d.Status),
		AttemptCount:   d.AttemptCount,
		StatusCode:     d.StatusCode,
		ResponseBody:   d.ResponseBody,
		ErrorMessage:   d.ErrorMessage,
		NextRetryAt:    d.NextRetryAt,
		DeliveredAt:    d.DeliveredAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// Event DTOs

// PublishEventRequest — запрос на приём доменного события.
type PublishEventRequest struct {
	Event     domain.EventType `json:"event"`
	Data      map[string]any   `json:"data,omitempty"`
	AccountID *uuid.UUID       `json:"account_id,omitempty"`
}

// PublishEventResponse — подтверждение приёма события.
type PublishEventResponse struct {
	Accepted bool             `json:"accepted"`
	Event    domain.EventType `json:"event"`
}
