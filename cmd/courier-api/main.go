// Courier API — HTTP-сервер управления подписками и приёма событий.
//
// API:
//   - Регистрация и управление webhook-подписками
//   - Ротация подписных секретов
//   - Приём доменных событий (fire-and-forget, 202)
//   - Журнал доставок и redelivery
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scroungers/courier/internal/api"
	"github.com/scroungers/courier/internal/dispatcher"
	"github.com/scroungers/courier/internal/mq"
	"github.com/scroungers/courier/internal/repo"
	"github.com/scroungers/courier/internal/sender"
	"github.com/scroungers/courier/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_api_http_requests_total",
		Help: "Total HTTP requests handled by courier_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting courier-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	subscriptionRepo := repo.NewSubscriptionRepo(pool)
	deliveryRepo := repo.NewDeliveryRepo(pool)

	// RabbitMQ: основной путь доставки событий. Без брокера API
	// работает в режиме inline-рассылки.
	var publisher *mq.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, events will be dispatched inline", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Dispatcher для inline-рассылки и тестовых доставок
	disp := dispatcher.New(dispatcher.Config{
		Subscriptions: subscriptionRepo,
		Deliveries:    deliveryRepo,
		Sender:        sender.New(),
		Logger:        logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		SubscriptionRepo: subscriptionRepo,
		DeliveryRepo:     deliveryRepo,
		Publisher:        publisher,
		Dispatcher:       disp,
		Logger:           logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
