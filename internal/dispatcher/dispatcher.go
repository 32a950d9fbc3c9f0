package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scroungers/courier/internal/domain"
	"github.com/scroungers/courier/internal/mq"
	"github.com/scroungers/courier/internal/sender"
	"github.com/scroungers/courier/internal/telemetry"
)

// SubscriptionStore — доступ к подпискам, нужный dispatcher'у.
type SubscriptionStore interface {
	// ListForEvent возвращает активные подписки, фильтр которых включает
	// eventType. accountID != nil ограничивает выборку одним аккаунтом.
	ListForEvent(ctx context.Context, eventType domain.EventType, accountID *uuid.UUID) ([]domain.Subscription, error)
}

// DeliveryStore — доступ к записям доставок, нужный dispatcher'у.
type DeliveryStore interface {
	Create(ctx context.Context, d *domain.Delivery) error
	Update(ctx context.Context, d *domain.Delivery) error
}

// Sender выполняет одну HTTP-попытку доставки.
type Sender interface {
	Deliver(ctx context.Context, url, secret string, eventType domain.EventType, deliveryID uuid.UUID, payload []byte) sender.Result
}

// Dispatcher разворачивает событие в параллельные доставки по подпискам.
type Dispatcher struct {
	subscriptions SubscriptionStore
	deliveries    DeliveryStore
	sender        Sender

	// MQ
	conn     *mq.Connection
	consumer *mq.Consumer

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Dispatcher.
type Config struct {
	Subscriptions SubscriptionStore
	Deliveries    DeliveryStore
	Sender        Sender

	// Conn — соединение с RabbitMQ. Nil, если dispatcher используется
	// только напрямую (inline-рассылка без очереди).
	Conn *mq.Connection

	Logger *slog.Logger
}

// New создаёт новый Dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		subscriptions: cfg.Subscriptions,
		deliveries:    cfg.Deliveries,
		sender:        cfg.Sender,
		conn:          cfg.Conn,
		logger:        logger,
	}
}

// Start запускает consumer очереди events.dispatch.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancelFunc = cancel

	d.consumer = mq.NewConsumer(d.conn, d.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueEventsDispatch),
		Handler:  d.handleEventReceived,
		Prefetch: 10,
	})

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("event consumer error", "error", err)
		}
	}()

	d.logger.Info("dispatcher started")
	return nil
}

// Stop останавливает Dispatcher.
func (d *Dispatcher) Stop() {
	d.logger.Info("stopping dispatcher...")

	if d.cancelFunc != nil {
		d.cancelFunc()
	}
	if d.consumer != nil {
		d.consumer.Stop()
	}

	d.wg.Wait()

	d.logger.Info("dispatcher stopped")
}

// Dispatch разворачивает событие в доставки по всем подходящим подпискам.
//
// Конверт строится ровно один раз; все подписчики одного события получают
// байт-в-байт одинаковое тело. Попытки выполняются параллельно, каждая со
// своей записью Delivery: медленный или упавший подписчик не задерживает
// остальных и не влияет на их исход.
//
// Возвращает ошибку только если событие невалидно или не удалось получить
// список подписок. Ошибки отдельных доставок фиксируются в их записях.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType domain.EventType, data map[string]any, accountID *uuid.UUID) error {
	if !eventType.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	subs, err := d.subscriptions.ListForEvent(ctx, eventType, accountID)
	if err != nil {
		return fmt.Errorf("list subscriptions for %s: %w", eventType, err)
	}

	telemetry.EventsReceived.WithLabelValues(eventType.String()).Inc()

	// Ноль подписчиков — событие молча пропускается, конверт не строится
	if len(subs) == 0 {
		d.logger.Debug("no subscriptions for event", "event_type", eventType)
		return nil
	}

	envelope := domain.NewEnvelope(eventType, data, time.Now())
	payload, err := envelope.Bytes()
	if err != nil {
		return err
	}

	telemetry.WithEventType(d.logger, eventType.String()).Info("dispatching event",
		"subscriptions", len(subs),
	)

	var wg sync.WaitGroup
	for i := range subs {
		sub := subs[i]

		wg.Add(1)
		go func() {
			defer wg.Done()
			// Ошибка создания записи уже залогирована и изолирована
			_, _ = d.attempt(ctx, &sub, eventType, payload)
		}()
	}
	wg.Wait()

	return nil
}

// DeliverTo выполняет одиночную доставку события одной подписке, минуя
// фильтр событий. Используется API для тестовых доставок.
func (d *Dispatcher) DeliverTo(ctx context.Context, sub *domain.Subscription, eventType domain.EventType, data map[string]any) (*domain.Delivery, error) {
	if !eventType.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	envelope := domain.NewEnvelope(eventType, data, time.Now())
	payload, err := envelope.Bytes()
	if err != nil {
		return nil, err
	}

	return d.attempt(ctx, sub, eventType, payload)
}

// attempt создаёт запись Delivery и выполняет первую попытку доставки
// для одной подписки.
func (d *Dispatcher) attempt(ctx context.Context, sub *domain.Subscription, eventType domain.EventType, payload []byte) (*domain.Delivery, error) {
	now := time.Now()
	delivery := domain.NewDelivery(sub.ID, eventType, payload, now)

	logger := telemetry.WithDeliveryID(d.logger, delivery.ID.String())
	logger = telemetry.WithSubscriptionID(logger, sub.ID.String())

	if err := d.deliveries.Create(ctx, delivery); err != nil {
		// Изоляция: неудача с одной записью не трогает остальные доставки
		logger.Error("failed to create delivery record",
			"event_type", eventType,
			"error", err,
		)
		return nil, fmt.Errorf("create delivery record: %w", err)
	}

	result := d.sender.Deliver(ctx, sub.URL, sub.Secret, eventType, delivery.ID, payload)
	telemetry.DeliveryDuration.Observe(result.Duration.Seconds())

	now = time.Now()
	if result.Success {
		delivery.MarkSucceeded(*result.StatusCode, result.ResponseBody, now)
		telemetry.DeliveryAttempts.WithLabelValues(telemetry.OutcomeSuccess).Inc()

		logger.Info("delivery succeeded",
			"status_code", *result.StatusCode,
			"duration", result.Duration,
		)
	} else {
		delivery.MarkFailed(result.StatusCode, result.ResponseBody, result.ErrorMessage, now)
		telemetry.DeliveryAttempts.WithLabelValues(telemetry.OutcomeFailed).Inc()
		if delivery.NextRetryAt != nil {
			telemetry.RetriesScheduled.Inc()
		}

		logger.Warn("delivery failed",
			"attempt", delivery.AttemptCount,
			"error", result.ErrorMessage,
			"next_retry_at", delivery.NextRetryAt,
		)
	}

	if err := d.deliveries.Update(ctx, delivery); err != nil {
		logger.Error("failed to update delivery record", "error", err)
	}

	return delivery, nil
}
