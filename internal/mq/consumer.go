package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно входящее сообщение.
// Ненулевая ошибка приводит к nack с возвратом в очередь.
type Handler func(ctx context.Context, msg *Inbound) error

// Inbound — входящее сообщение брокера. Название намеренно не Delivery:
// в courier "delivery" — это запись о доставке webhook, а не AMQP-кадр.
type Inbound struct {
	// Message — разобранный конверт сообщения.
	Message Message

	// Raw — исходный AMQP-кадр, нужен для ack/nack.
	Raw amqp.Delivery
}

// Ack подтверждает обработку.
func (m *Inbound) Ack() error {
	return m.Raw.Ack(false)
}

// Nack отклоняет сообщение: requeue=true возвращает его в очередь,
// false отправляет в courier.dlq.
func (m *Inbound) Nack(requeue bool) error {
	return m.Raw.Nack(false, requeue)
}

// Consumer читает доменные события из очереди и передаёт их handler'у.
// Переживает разрывы соединения: после reconnect подписка на очередь
// восстанавливается.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — параметры Consumer.
type ConsumerConfig struct {
	// Queue — очередь, из которой читаем (например, events.dispatch).
	Queue string

	// Handler — обработчик событий.
	Handler Handler

	// Prefetch ограничивает число неподтверждённых сообщений на consumer.
	// Для dispatcher'а это верхняя граница параллельных фан-аутов.
	Prefetch int
}

// NewConsumer создаёт Consumer поверх готового соединения.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start запускает цикл чтения. Блокируется до отмены контекста.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	return c.consume(ctx)
}

// consume переподписывается на очередь после каждого разрыва.
func (c *Consumer) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		inbound, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe to queue", "queue", c.queue, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				c.logger.Info("broker reconnected, resubscribing", "queue", c.queue)
				continue
			}
		}

		c.logger.Info("event consumer started", "queue", c.queue, "prefetch", c.prefetch)

		if err := c.drain(ctx, inbound); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("event stream closed, waiting for reconnect", "queue", c.queue)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}
	}
}

// subscribe устанавливает prefetch и начинает чтение очереди.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	inbound, err := ch.Consume(
		c.queue,
		"",    // consumer tag генерирует брокер
		false, // ack вручную, после обработки
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}

	return inbound, nil
}

// drain обрабатывает сообщения, пока канал открыт.
func (c *Consumer) drain(ctx context.Context, inbound <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-inbound:
			if !ok {
				return fmt.Errorf("event stream closed")
			}

			c.handle(ctx, raw)
		}
	}
}

// handle разбирает конверт и вызывает обработчик события.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed event message",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		// Повторная обработка не поможет — сразу в courier.dlq
		raw.Nack(false, false)
		return
	}

	c.logger.Debug("event message received",
		"queue", c.queue,
		"message_id", msg.ID,
		"type", msg.Type,
	)

	if err := c.handler(ctx, &Inbound{Message: msg, Raw: raw}); err != nil {
		c.logger.Error("event handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		// Requeue: DLQ сработает на уровне очереди, когда requeue исчерпан
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// Stop останавливает цикл чтения.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload приводит payload конверта к конкретному типу сообщения.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// После json.Unmarshal конверта payload лежит как map[string]any,
	// поэтому перегоняем через повторный marshal
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
