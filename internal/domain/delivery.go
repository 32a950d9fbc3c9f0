package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MaxRetries — максимальное число попыток доставки (включая первую).
const MaxRetries = 5

// RetryDelays — расписание backoff между попытками: 1m, 5m, 15m, 1h, 2h.
// Задержка после n-й неудачной попытки — RetryDelays[n-1]; индекс
// ограничивается последним элементом, если попыток больше длины таблицы.
var RetryDelays = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	900 * time.Second,
	3600 * time.Second,
	7200 * time.Second,
}

// NextRetryDelay возвращает задержку перед следующей попыткой после
// attemptCount неудачных попыток.
func NextRetryDelay(attemptCount int) time.Duration {
	idx := attemptCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(RetryDelays) {
		idx = len(RetryDelays) - 1
	}
	return RetryDelays[idx]
}

// Delivery — запись о доставке одного события одному подписчику.
//
// Delivery создаётся Dispatcher'ом (status=pending), обновляется после
// каждой попытки и является журналом всей истории попыток: кому, что,
// сколько раз и с каким исходом отправлялось.
//
// Payload — копия байтов конверта, снятая в момент dispatch. Она не
// отслеживает изменения исходной доменной сущности и переиспользуется
// при retry без изменений.
type Delivery struct {
	// ID — уникальный идентификатор доставки.
	ID uuid.UUID `json:"id"`

	// SubscriptionID — ссылка на подписку-получателя.
	SubscriptionID uuid.UUID `json:"subscription_id"`

	// EventType — тип доставляемого события.
	EventType EventType `json:"event_type"`

	// Payload — байты конверта события (для аудита и retry).
	Payload json.RawMessage `json:"payload"`

	// Status — текущий статус доставки.
	Status DeliveryStatus `json:"status"`

	// AttemptCount — число выполненных попыток (включая первую).
	// Инвариант: AttemptCount <= MaxRetries.
	AttemptCount int `json:"attempt_count"`

	// StatusCode — HTTP-код последнего ответа, если ответ был получен.
	StatusCode *int `json:"status_code,omitempty"`

	// ResponseBody — усечённое тело последнего ответа.
	ResponseBody string `json:"response_body,omitempty"`

	// ErrorMessage — текст ошибки, если попытка не дошла до ответа.
	ErrorMessage string `json:"error_message,omitempty"`

	// NextRetryAt — время следующей попытки.
	// Nil при success и при исчерпании retry (терминальное состояние).
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`

	// DeliveredAt — время успешной доставки.
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDelivery создаёт pending-запись для подписки и конверта.
func NewDelivery(subscriptionID uuid.UUID, eventType EventType, payload []byte, now time.Time) *Delivery {
	return &Delivery{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		Payload:        payload,
		Status:         DeliveryStatusPending,
		AttemptCount:   0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsTerminal возвращает true, если по записи больше не будет попыток.
func (d *Delivery) IsTerminal() bool {
	if d.Status == DeliveryStatusSuccess {
		return true
	}
	return d.Status == DeliveryStatusFailed && d.NextRetryAt == nil
}

// CanRetry проверяет, остались ли попытки.
func (d *Delivery) CanRetry() bool {
	return d.AttemptCount < MaxRetries
}

// MarkSucceeded фиксирует успешную попытку (HTTP 2xx).
// Увеличивает счётчик попыток, обнуляет расписание retry.
func (d *Delivery) MarkSucceeded(statusCode int, responseBody string, now time.Time) {
	d.AttemptCount++
	d.Status = DeliveryStatusSuccess
	d.StatusCode = &statusCode
	d.ResponseBody = responseBody
	d.ErrorMessage = ""
	d.NextRetryAt = nil
	d.DeliveredAt = &now
	d.UpdatedAt = now
}

// MarkFailed фиксирует неудачную попытку.
//
// Увеличивает счётчик попыток. Если попытки остались — назначает
// NextRetryAt по расписанию backoff; если attemptCount достиг MaxRetries —
// NextRetryAt остаётся nil и запись терминальна.
func (d *Delivery) MarkFailed(statusCode *int, responseBody, errMsg string, now time.Time) {
	d.AttemptCount++
	d.Status = DeliveryStatusFailed
	d.StatusCode = statusCode
	d.ResponseBody = responseBody
	d.ErrorMessage = errMsg
	d.UpdatedAt = now

	if d.CanRetry() {
		next := now.Add(NextRetryDelay(d.AttemptCount))
		d.NextRetryAt = &next
	} else {
		d.NextRetryAt = nil
	}
}

// MarkAbandoned терминально завершает доставку без выполнения попытки.
// Используется, когда подписка отключена или удалена: это постоянное,
// а не переходное состояние, HTTP-вызов не имеет смысла.
func (d *Delivery) MarkAbandoned(reason string, now time.Time) {
	d.Status = DeliveryStatusFailed
	d.ErrorMessage = reason
	d.NextRetryAt = nil
	d.UpdatedAt = now
}
