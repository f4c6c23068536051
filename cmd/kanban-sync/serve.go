package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/internal/config"
	"github.com/BuzzLyutic/kanban-sync/internal/connectivity"
	"github.com/BuzzLyutic/kanban-sync/internal/handler"
	"github.com/BuzzLyutic/kanban-sync/internal/metrics"
	"github.com/BuzzLyutic/kanban-sync/internal/realtime"
	"github.com/BuzzLyutic/kanban-sync/internal/seed"
	"github.com/BuzzLyutic/kanban-sync/internal/service"
	"github.com/BuzzLyutic/kanban-sync/internal/store"
)

func serve() error {
	// Подключаем логгер
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	sample, err := seed.Default()
	if err != nil {
		return fmt.Errorf("load seed data: %w", err)
	}

	m := metrics.New()
	st := store.New(b.gateway, logger, store.Options{
		RemoteTimeout: cfg.RemoteTimeout,
		MaxAttempts:   cfg.MaxSyncAttempts,
		Users:         sample.Users(),
		Seed:          sample.Func(time.Now),
		Recorder:      m,
	})
	defer st.Close()

	if b.feed != nil {
		rec := realtime.NewReconciler(st, b.feed, logger, m)
		// без realtime доска продолжает работать, подписка повторяется в фоне
		recCtx, recCancel := context.WithCancel(ctx)
		started := make(chan struct{})
		go func() {
			defer close(started)
			if err := rec.StartRetrying(recCtx, realtimeBackOff()); err != nil {
				logger.Warn("realtime disabled", zap.Error(err))
			}
		}()
		defer func() {
			recCancel()
			<-started
			_ = rec.Stop()
		}()
	}

	mon := connectivity.New(st, b.prober, logger, connectivity.Options{Interval: cfg.ProbeInterval})
	go mon.Run(ctx)

	h := handler.NewBoardHandler(service.NewBoardService(st, logger), logger)
	srv := http.Server{ // Создаем сервер
		Addr:         ":" + cfg.Port,
		Handler:      handler.NewRouter(h, m.Handler()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10*time.Second + cfg.RemoteTimeout,
	}

	errCh := make(chan error, 1)
	go func() { // Запуск сервера и обработка ошибок
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if n := len(st.Pending()); n > 0 {
		logger.Warn("exiting with unsynced changes", zap.Int("pending", n))
	}
	logger.Info("Server stopped successfully!")
	return nil
}

func realtimeBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

func relay() error {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.GatewayDriver != config.DriverPostgres {
		return fmt.Errorf("%w: relay needs gateway_driver %q", config.ErrInvalid, config.DriverPostgres)
	}
	// источник всегда LISTEN, NATS только как приемник
	cfg.RealtimeDriver = config.DriverNone

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	conn, err := connectNATS(cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info("relaying database changes", zap.String("nats", cfg.NATSURL))
	return realtime.NewRelay(b.source, realtime.NewPublisher(conn), logger).Run(ctx)
}
