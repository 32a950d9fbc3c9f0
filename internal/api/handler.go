package api

import (
	"log/slog"

	"github.com/scroungers/courier/internal/dispatcher"
	"github.com/scroungers/courier/internal/mq"
	"github.com/scroungers/courier/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	subscriptionRepo *repo.SubscriptionRepo
	deliveryRepo     *repo.DeliveryRepo
	publisher        *mq.Publisher
	dispatcher       *dispatcher.Dispatcher
	logger           *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	SubscriptionRepo *repo.SubscriptionRepo
	DeliveryRepo     *repo.DeliveryRepo

	// Publisher — публикация событий в RabbitMQ. Nil, если брокер
	// недоступен: события рассылаются inline через Dispatcher.
	Publisher *mq.Publisher

	// Dispatcher — inline-рассылка (fallback без брокера и тестовые доставки).
	Dispatcher *dispatcher.Dispatcher

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		subscriptionRepo: cfg.SubscriptionRepo,
		deliveryRepo:     cfg.DeliveryRepo,
		publisher:        cfg.Publisher,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}
}
