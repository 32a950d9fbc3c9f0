package domain

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Subscription — регистрация webhook-подписчика.
//
// Подписчик — внешний HTTP endpoint, который хочет получать доменные
// события платформы. Каждая подписка принадлежит аккаунту и имеет свой
// подписной секрет для HMAC-подписи доставок.
type Subscription struct {
	// ID — уникальный идентификатор подписки.
	ID uuid.UUID `json:"id"`

	// AccountID — аккаунт-владелец подписки.
	AccountID uuid.UUID `json:"account_id"`

	// URL — адрес доставки. Только http/https, проверяется при регистрации.
	URL string `json:"url"`

	// Secret — ключ HMAC-подписи. Генерируется при создании подписки,
	// наружу не возвращается повторно (только has_secret). Не мутируется —
	// поддерживается только ротация (полная замена).
	Secret string `json:"-"`

	// Events — фильтр типов событий, на которые подписан endpoint.
	Events []EventType `json:"events"`

	// Active — флаг активности. Неактивные подписки пропускаются
	// Dispatcher'ом, а Retry Scheduler считает их терминальной ошибкой.
	Active bool `json:"active"`

	// CreatedAt — время создания подписки.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// Matches проверяет, входит ли тип события в фильтр подписки.
func (s *Subscription) Matches(eventType EventType) bool {
	for _, e := range s.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// HasSecret возвращает true, если у подписки задан секрет.
// Единственное, что о секрете видят внешние вызыватели.
func (s *Subscription) HasSecret() bool {
	return s.Secret != ""
}

// RotateSecret заменяет секрет целиком. Старый секрет инвалидируется.
func (s *Subscription) RotateSecret(newSecret string) {
	s.Secret = newSecret
	s.UpdatedAt = time.Now()
}

// ValidateTargetURL проверяет URL доставки при регистрации.
//
// Допустимы только абсолютные http/https URL с непустым хостом.
// Некорректный URL отклоняется на этапе регистрации и никогда
// не доходит до Dispatcher.
func ValidateTargetURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q (supported: http, https)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("url host is required")
	}

	return nil
}

// ValidateEventFilter проверяет фильтр событий при регистрации.
func ValidateEventFilter(events []EventType) error {
	if len(events) == 0 {
		return fmt.Errorf("at least one event type is required")
	}

	for _, e := range events {
		if !e.IsValid() {
			return fmt.Errorf("unknown event type %q", e)
		}
	}

	return nil
}
