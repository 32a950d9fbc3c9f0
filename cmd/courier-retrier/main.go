// Courier Retrier — периодический sweep по неудачным доставкам.
//
// Retrier:
//   - По cron-расписанию забирает failed-доставки с подошедшим retry
//   - Повторяет попытки с сохранённым payload
//   - Возвращает в оборот зависшие pending-записи
//
// Несколько экземпляров могут работать одновременно: лидер выбирается
// через pg advisory lock, claim записей дополнительно защищён
// FOR UPDATE SKIP LOCKED.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/scroungers/courier/internal/repo"
	"github.com/scroungers/courier/internal/scheduler"
	"github.com/scroungers/courier/internal/sender"
	"github.com/scroungers/courier/internal/telemetry"
)

const retrierLockKey int64 = 727272

const defaultSweepSpec = "@every 30s"

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting courier-retrier")

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

	sched := scheduler.New(scheduler.Config{
		Deliveries:    repo.NewDeliveryRepo(pool),
		Subscriptions: repo.NewSubscriptionRepo(pool),
		Sender:        sender.New(),
		Logger:        logger,
	})

	// Лидерство через advisory lock: sweep выполняет один экземпляр,
	// остальные ждут освобождения лока
	var mu sync.Mutex
	var hasLock bool
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		if hasLock {
			_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", retrierLockKey)
		}
	}()

	isLeader := func() bool {
		mu.Lock()
		defer mu.Unlock()

		if hasLock {
			return true
		}

		var ok bool
		if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", retrierLockKey).Scan(&ok); err != nil {
			logger.Error("advisory lock failed", "error", err)
			return false
		}
		hasLock = ok
		if ok {
			logger.Info("became sweep leader")
		}
		return ok
	}

	sweepSpec := os.Getenv("RETRY_SWEEP_CRON")
	if sweepSpec == "" {
		sweepSpec = defaultSweepSpec
	}

	// cron-расписание sweep'ов
	c := cron.New()

	_, err = c.AddFunc(sweepSpec, func() {
		if !isLeader() {
			return
		}
		if err := sched.Tick(ctx); err != nil {
			logger.Error("retry sweep failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("invalid RETRY_SWEEP_CRON", "spec", sweepSpec, "error", err)
		os.Exit(1)
	}

	// Восстановление зависших pending — реже, чем основной sweep
	_, err = c.AddFunc("@every 5m", func() {
		if !isLeader() {
			return
		}
		if err := sched.RecoverStalled(ctx); err != nil {
			logger.Error("stalled recovery failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("failed to register recovery job", "error", err)
		os.Exit(1)
	}

	c.Start()
	defer c.Stop()
	logger.Info("sweep schedule registered", "spec", sweepSpec)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("RETRIER_PORT"); v != "" {
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
	logger.Info("courier-retrier stopped")
}
