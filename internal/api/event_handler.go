package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/scroungers/courier/internal/mq"
)

// PublishEvent принимает доменное событие для рассылки подписчикам.
// POST /api/v1/events
//
// Приём — fire-and-forget: событие валидируется, ставится в очередь и
// подтверждается кодом 202. Источник не ждёт исхода доставок и не
// узнаёт о них из этого запроса — журнал доставок доступен отдельно.
//
// Основной путь — публикация в RabbitMQ (рассылку выполняет отдельный
// сервис dispatcher). Если брокер недоступен, рассылка выполняется
// inline в фоновой горутине.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var req PublishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if !req.Event.IsValid() {
		BadRequest(w, "unknown event type")
		return
	}

	if h.publisher != nil {
		err := h.publisher.PublishEventReceived(r.Context(), mq.EventReceivedPayload{
			EventType: req.Event,
			Data:      req.Data,
			AccountID: req.AccountID,
		})
		if err == nil {
			JSON(w, http.StatusAccepted, DataResponse{Data: PublishEventResponse{
				Accepted: true,
				Event:    req.Event,
			}})
			return
		}

		h.logger.Warn("failed to publish event to broker, dispatching inline",
			"event_type", req.Event,
			"error", err,
		)
	}

	// Inline-рассылка не привязана к времени жизни HTTP-запроса
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := h.dispatcher.Dispatch(ctx, req.Event, req.Data, req.AccountID); err != nil {
			h.logger.Error("inline dispatch failed",
				"event_type", req.Event,
				"error", err,
			)
		}
	}()

	JSON(w, http.StatusAccepted, DataResponse{Data: PublishEventResponse{
		Accepted: true,
		Event:    req.Event,
	}})
}
