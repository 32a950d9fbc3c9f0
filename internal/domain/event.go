package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType — тип доменного события платформы.
//
// Закрытое перечисление: события жизненного цикла постов, комментариев,
// пользователей и заявок контрибьюторов. Подписчик указывает в фильтре,
// какие типы он хочет получать.
type EventType string

// Типы событий.
const (
	EventPostCreated EventType = "post.created"
	EventPostUpdated EventType = "post.updated"

	// EventPostPublished — пост прошёл модерацию и опубликован.
	EventPostPublished EventType = "post.published"

	EventPostDeleted EventType = "post.deleted"

	EventCommentCreated EventType = "comment.created"
	EventCommentDeleted EventType = "comment.deleted"

	EventUserRegistered EventType = "user.registered"
	EventUserDeleted    EventType = "user.deleted"

	// События заявок контрибьюторов.
	EventApplicationSubmitted EventType = "application.submitted"
	EventApplicationApproved  EventType = "application.approved"
	EventApplicationRejected  EventType = "application.rejected"
)

// AllEventTypes возвращает полный список поддерживаемых типов событий.
func AllEventTypes() []EventType {
	return []EventType{
		EventPostCreated,
		EventPostUpdated,
		EventPostPublished,
		EventPostDeleted,
		EventCommentCreated,
		EventCommentDeleted,
		EventUserRegistered,
		EventUserDeleted,
		EventApplicationSubmitted,
		EventApplicationApproved,
		EventApplicationRejected,
	}
}

// IsValid проверяет, входит ли тип события в перечисление.
func (t EventType) IsValid() bool {
	for _, known := range AllEventTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// String возвращает строковое представление EventType.
func (t EventType) String() string {
	return string(t)
}

// Envelope — неизменяемый конверт события, отправляемый подписчикам.
//
// Конверт строится один раз при dispatch и разделяется всеми подписчиками.
// Его байты сохраняются в Delivery и переиспользуются при retry без
// изменений: тело повторной доставки байт-в-байт совпадает с первой
// (меняются только заголовки signature/timestamp).
type Envelope struct {
	// Event — тип события.
	Event EventType `json:"event"`

	// Timestamp — время создания конверта в формате ISO-8601.
	// Не путать со временем попытки доставки.
	Timestamp string `json:"timestamp"`

	// Data — полезная нагрузка события.
	// Dispatcher и Signer не интерпретируют её содержимое.
	Data map[string]any `json:"data"`
}

// NewEnvelope создаёт конверт для события.
func NewEnvelope(eventType EventType, data map[string]any, now time.Time) Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return Envelope{
		Event:     eventType,
		Timestamp: now.UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// Bytes сериализует конверт в JSON.
//
// encoding/json сортирует ключи map, поэтому для одного конверта
// результат детерминирован.
func (e Envelope) Bytes() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return b, nil
}
