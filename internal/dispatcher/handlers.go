package dispatcher

import (
	"context"
	"errors"

	"github.com/scroungers/courier/internal/mq"
)

// handleEventReceived обрабатывает сообщение event.received из очереди.
func (d *Dispatcher) handleEventReceived(ctx context.Context, msg *mq.Inbound) error {
	payload, err := mq.ParsePayload[mq.EventReceivedPayload](&msg.Message)
	if err != nil {
		d.logger.Error("failed to parse event.received payload", "error", err)
		return err
	}

	d.logger.Debug("received event.received message",
		"message_id", msg.Message.ID,
		"event_type", payload.EventType,
	)

	if err := d.Dispatch(ctx, payload.EventType, payload.Data, payload.AccountID); err != nil {
		// Невалидный тип события не станет валидным от requeue — ack
		if errors.Is(err, ErrUnknownEventType) {
			d.logger.Warn("dropping event with unknown type",
				"message_id", msg.Message.ID,
				"event_type", payload.EventType,
			)
			return nil
		}
		return err
	}

	return nil
}
