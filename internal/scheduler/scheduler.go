package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/scroungers/courier/internal/domain"
	"github.com/scroungers/courier/internal/repo"
	"github.com/scroungers/courier/internal/sender"
	"github.com/scroungers/courier/internal/telemetry"
)

// Default configuration values.
const (
	defaultBatchSize  = 100
	defaultClaimLease = 5 * time.Minute
	defaultStallAfter = 10 * time.Minute
)

// DeliveryStore — доступ к записям доставок, нужный scheduler'у.
type DeliveryStore interface {
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.Delivery, error)
	Update(ctx context.Context, d *domain.Delivery) error
	ListStalledPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Delivery, error)
}

// SubscriptionStore — доступ к подпискам, нужный scheduler'у.
type SubscriptionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)
}

// Sender выполняет одну HTTP-попытку доставки.
type Sender interface {
	Deliver(ctx context.Context, url, secret string, eventType domain.EventType, deliveryID uuid.UUID, payload []byte) sender.Result
}

// Scheduler — планировщик повторных доставок.
type Scheduler struct {
	deliveries    DeliveryStore
	subscriptions SubscriptionStore
	sender        Sender
	logger        *slog.Logger

	batchSize  int
	claimLease time.Duration
	stallAfter time.Duration
}

// Config — конфигурация Scheduler.
type Config struct {
	Deliveries    DeliveryStore
	Subscriptions SubscriptionStore
	Sender        Sender
	Logger        *slog.Logger

	// BatchSize — количество доставок за один тик (default: 100).
	BatchSize int

	// ClaimLease — на сколько сдвигается next_retry_at при claim.
	// Должен превышать худшее время обработки порции (default: 5m).
	ClaimLease time.Duration

	// StallAfter — возраст pending-записи, после которого она считается
	// зависшей и возвращается в оборот (default: 10m).
	StallAfter time.Duration
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	claimLease := cfg.ClaimLease
	if claimLease <= 0 {
		claimLease = defaultClaimLease
	}

	stallAfter := cfg.StallAfter
	if stallAfter <= 0 {
		stallAfter = defaultStallAfter
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		deliveries:    cfg.Deliveries,
		subscriptions: cfg.Subscriptions,
		sender:        cfg.Sender,
		logger:        logger,
		batchSize:     batchSize,
		claimLease:    claimLease,
		stallAfter:    stallAfter,
	}
}

// Tick выполняет один sweep по due-доставкам.
//
// 1. Забирает порцию failed-доставок с next_retry_at <= now
// 2. Для каждой повторяет попытку с сохранённым payload
// 3. Фиксирует исход в записи Delivery
//
// Ошибки одной доставки не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	due, err := s.deliveries.ClaimDue(ctx, now, s.batchSize, s.claimLease)
	if err != nil {
		return fmt.Errorf("claim due deliveries: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	s.logger.Debug("claimed due deliveries", "count", len(due))

	var succeeded, failed, abandoned, skipped int
	for i := range due {
		switch s.retry(ctx, &due[i]) {
		case outcomeSucceeded:
			succeeded++
		case outcomeFailed:
			failed++
		case outcomeAbandoned:
			abandoned++
		case outcomeSkipped:
			skipped++
		}
	}

	s.logger.Info("retry sweep completed",
		"due", len(due),
		"succeeded", succeeded,
		"failed", failed,
		"abandoned", abandoned,
		"skipped", skipped,
	)

	return nil
}

// tickOutcome — итог обработки одной доставки в рамках sweep.
type tickOutcome int

const (
	outcomeSucceeded tickOutcome = iota
	outcomeFailed
	outcomeAbandoned
	// outcomeSkipped — попытка не выполнялась из-за ошибки хранилища;
	// запись остаётся арендованной до следующего sweep.
	outcomeSkipped
)

// retry выполняет повторную попытку для одной доставки.
func (s *Scheduler) retry(ctx context.Context, d *domain.Delivery) tickOutcome {
	logger := telemetry.WithDeliveryID(s.logger, d.ID.String())
	logger = telemetry.WithSubscriptionID(logger, d.SubscriptionID.String())

	sub, err := s.subscriptions.GetByID(ctx, d.SubscriptionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Подписка удалена — состояние постоянное, HTTP-вызов не нужен
			return s.abandon(ctx, d, "subscription deleted", logger)
		}
		logger.Error("failed to load subscription", "error", err)
		// Запись остаётся арендованной, следующий sweep подберёт её
		return outcomeSkipped
	}

	if !sub.Active {
		return s.abandon(ctx, d, "subscription disabled", logger)
	}

	// Повторная попытка с сохранённым payload: тело байт-в-байт совпадает
	// с первой доставкой
	result := s.sender.Deliver(ctx, sub.URL, sub.Secret, d.EventType, d.ID, d.Payload)
	telemetry.DeliveryDuration.Observe(result.Duration.Seconds())

	now := time.Now()
	if result.Success {
		d.MarkSucceeded(*result.StatusCode, result.ResponseBody, now)
		telemetry.DeliveryAttempts.WithLabelValues(telemetry.OutcomeSuccess).Inc()

		logger.Info("retry succeeded",
			"attempt", d.AttemptCount,
			"status_code", *result.StatusCode,
		)
	} else {
		d.MarkFailed(result.StatusCode, result.ResponseBody, result.ErrorMessage, now)
		telemetry.DeliveryAttempts.WithLabelValues(telemetry.OutcomeFailed).Inc()

		if d.NextRetryAt == nil {
			telemetry.DeliveriesExhausted.Inc()
			logger.Error("delivery permanently failed",
				"attempt", d.AttemptCount,
				"error", result.ErrorMessage,
			)
		} else {
			telemetry.RetriesScheduled.Inc()
			logger.Warn("retry failed",
				"attempt", d.AttemptCount,
				"error", result.ErrorMessage,
				"next_retry_at", d.NextRetryAt,
			)
		}
	}

	if err := s.deliveries.Update(ctx, d); err != nil {
		logger.Error("failed to update delivery record", "error", err)
	}

	if d.Status == domain.DeliveryStatusSuccess {
		return outcomeSucceeded
	}
	return outcomeFailed
}

// abandon терминально завершает доставку без выполнения попытки.
func (s *Scheduler) abandon(ctx context.Context, d *domain.Delivery, reason string, logger *slog.Logger) tickOutcome {
	d.MarkAbandoned(reason, time.Now())
	telemetry.DeliveryAttempts.WithLabelValues(telemetry.OutcomeAbandoned).Inc()

	logger.Info("delivery abandoned", "reason", reason)

	if err := s.deliveries.Update(ctx, d); err != nil {
		logger.Error("failed to update delivery record", "error", err)
	}

	// Abandoned хранится как терминальный failed, но в статистику тика
	// идёт отдельной строкой
	return outcomeAbandoned
}

// RecoverStalled возвращает в оборот pending-доставки, зависшие дольше
// stallAfter: dispatcher упал между созданием записи и фиксацией исхода.
// Исход той попытки неизвестен, поэтому запись получает неудачную
// попытку и ближайший retry по расписанию backoff.
func (s *Scheduler) RecoverStalled(ctx context.Context) error {
	now := time.Now()

	stalled, err := s.deliveries.ListStalledPending(ctx, now.Add(-s.stallAfter), s.batchSize)
	if err != nil {
		return fmt.Errorf("list stalled deliveries: %w", err)
	}

	if len(stalled) == 0 {
		return nil
	}

	s.logger.Warn("recovering stalled deliveries", "count", len(stalled))

	for i := range stalled {
		d := &stalled[i]
		d.MarkFailed(nil, "", "attempt outcome lost", now)

		if err := s.deliveries.Update(ctx, d); err != nil {
			s.logger.Error("failed to recover stalled delivery",
				"delivery_id", d.ID,
				"error", err,
			)
			continue
		}

		if d.NextRetryAt != nil {
			telemetry.RetriesScheduled.Inc()
		}
	}

	return nil
}
