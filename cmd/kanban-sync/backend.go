package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/internal/config"
	"github.com/BuzzLyutic/kanban-sync/internal/connectivity"
	"github.com/BuzzLyutic/kanban-sync/internal/realtime"
	"github.com/BuzzLyutic/kanban-sync/internal/repo"
)

// backend bundles the gateway with the feeds that observe it.
type backend struct {
	gateway repo.Gateway
	prober  connectivity.Prober
	// source watches the database directly; feed is what the reconciler
	// consumes and may be NATS instead. feed is nil when realtime is off.
	source  repo.ChangeFeed
	feed    repo.ChangeFeed
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	b := &backend{}

	switch cfg.GatewayDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL) // Создаем пул соединений к БД
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		b.closers = append(b.closers, pool.Close)

		pg := repo.NewPgGateway(pool, logger)
		b.gateway, b.prober, b.source = pg, pg, pg

		// Бэкенд может быть недоступен при старте: работаем офлайн, монитор переподключит.
		// Миграции тогда применятся при следующем запуске.
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database unreachable at startup", zap.Error(err))
			break
		}
		if err := pg.Migrate(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("Successfully connected to the Database!")

	case config.DriverSQLite:
		gw, err := repo.OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { gw.Close() })
		b.gateway, b.prober, b.source = gw, gw, gw
		logger.Info("using sqlite backend", zap.String("path", cfg.SQLitePath))
	}

	switch cfg.RealtimeDriver {
	case config.DriverNATS:
		conn, err := connectNATS(cfg, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, conn.Close)
		b.feed = realtime.NewNATSFeed(conn, logger)
	case config.DriverPostgres:
		b.feed = b.source
	case config.DriverNone:
		// SQLite publishes in-process, so its feed is always available
		if cfg.GatewayDriver == config.DriverSQLite {
			b.feed = b.source
		}
	}

	return b, nil
}

func connectNATS(cfg config.Config, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("kanban-sync"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.NATSURL, err)
	}
	return conn, nil
}
