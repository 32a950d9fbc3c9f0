// Courier Dispatcher — фан-аут событий по webhook-подпискам.
//
// Dispatcher:
//   - Получает принятые события из RabbitMQ
//   - Находит подписки с подходящим фильтром
//   - Создаёт записи Delivery и выполняет первые попытки параллельно
//   - Фиксирует исходы; retry выполняет courier-retrier
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scroungers/courier/internal/dispatcher"
	"github.com/scroungers/courier/internal/mq"
	"github.com/scroungers/courier/internal/repo"
	"github.com/scroungers/courier/internal/sender"
	"github.com/scroungers/courier/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting courier-dispatcher")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	subscriptionRepo := repo.NewSubscriptionRepo(pool)
	deliveryRepo := repo.NewDeliveryRepo(pool)

	// RabbitMQ — источник событий, без него dispatcher бесполезен
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	// Создаём dispatcher
	disp := dispatcher.New(dispatcher.Config{
		Subscriptions: subscriptionRepo,
		Deliveries:    deliveryRepo,
		Sender:        sender.New(),
		Conn:          mqConn,
		Logger:        logger,
	})

	// Запускаем dispatcher
	if err := disp.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("broker disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("DISPATCHER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем dispatcher
	disp.Stop()
	logger.Info("courier-dispatcher stopped")
}
