package sender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/scroungers/courier/internal/domain"
	"github.com/scroungers/courier/internal/signature"
)

// Заголовки исходящей доставки. Контракт фиксирован: внешние подписчики
// проверяют подпись по этим именам.
const (
	HeaderSignature  = "X-Webhook-Signature"
	HeaderTimestamp  = "X-Webhook-Timestamp"
	HeaderEvent      = "X-Webhook-Event"
	HeaderDeliveryID = "X-Webhook-Delivery-Id"
)

const (
	// defaultTimeout — жёсткий таймаут одной попытки.
	defaultTimeout = 30 * time.Second

	// responseBodyLimit — сколько байт тела ответа сохраняется в Delivery.
	responseBodyLimit = 1000

	userAgent = "courier/1.0"
)

// Result — структурированный исход одной попытки доставки.
type Result struct {
	// Success — true при HTTP-статусе из [200, 299].
	Success bool

	// StatusCode — код ответа. Nil, если ответ не был получен
	// (таймаут, DNS, connection refused, TLS).
	StatusCode *int

	// ResponseBody — тело ответа, усечённое до responseBodyLimit байт.
	ResponseBody string

	// ErrorMessage — описание ошибки при неуспехе.
	ErrorMessage string

	// Duration — длительность попытки.
	Duration time.Duration
}

// Sender выполняет единичные HTTP-попытки доставки.
// Безопасен для конкурентного использования.
type Sender struct {
	client  *http.Client
	timeout time.Duration
}

// Option — функциональная опция Sender.
type Option func(*Sender)

// WithTimeout задаёт таймаут одной попытки (default: 30s).
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		s.timeout = d
	}
}

// WithClient подменяет HTTP-клиент (для тестов).
func WithClient(client *http.Client) Option {
	return func(s *Sender) {
		s.client = client
	}
}

// New создаёт Sender.
func New(opts ...Option) *Sender {
	s := &Sender{
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	return s
}

// Deliver выполняет ровно одну попытку доставки payload подписчику.
//
// Подписывает payload текущим timestamp, выполняет POST на url с
// заголовками подписи и корреляции, читает до responseBodyLimit байт
// ответа. Retry здесь нет — это зона ответственности Retry Scheduler.
func (s *Sender) Deliver(ctx context.Context, url, secret string, eventType domain.EventType, deliveryID uuid.UUID, payload []byte) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{
			ErrorMessage: fmt.Sprintf("create request: %v", err),
			Duration:     time.Since(start),
		}
	}

	ts := start.Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderSignature, signature.Sign(payload, secret, ts))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderEvent, eventType.String())
	req.Header.Set(HeaderDeliveryID, deliveryID.String())

	resp, err := s.client.Do(req)
	if err != nil {
		result := Result{Duration: time.Since(start)}
		if errors.Is(err, context.DeadlineExceeded) {
			result.ErrorMessage = "Request timed out"
		} else {
			// Сетевая ошибка до получения ответа: DNS, refused, TLS.
			// Секрет в тексте ошибки не фигурирует — только URL и причина.
			result.ErrorMessage = fmt.Sprintf("request failed: %v", err)
		}
		return result
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if readErr != nil {
		// Ответ получен, но дочитать не удалось — статус всё равно фиксируем
		body = append(body, []byte("...[read error]")...)
	}

	code := resp.StatusCode
	result := Result{
		StatusCode:   &code,
		ResponseBody: string(body),
		Success:      code >= 200 && code < 300,
		Duration:     time.Since(start),
	}

	if !result.Success {
		result.ErrorMessage = fmt.Sprintf("unexpected status: %d %s", code, http.StatusText(code))
	}

	return result
}
