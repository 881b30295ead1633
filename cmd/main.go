package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staffing/common/cache"
	cachememory "staffing/common/cache/memory"
	cacheredis "staffing/common/cache/redis"
	"staffing/common/database"
	"staffing/common/database/schema"
	"staffing/common/database/schema/migrations"
	"staffing/common/postgres"
	"staffing/common/telemetry"
	"staffing/internal/analytics"
	"staffing/internal/api"
	"staffing/internal/bootstrap"
	"staffing/internal/config"
	"staffing/internal/events"
	"staffing/internal/hired"
	"staffing/internal/jobs"
	"staffing/internal/ledger"
	"staffing/internal/metrics"
	"staffing/internal/profiles"
	"staffing/internal/provisioning"
	"staffing/internal/reconcile"
	"staffing/internal/registry"
	"staffing/internal/store"
	pgstore "staffing/internal/store/postgres"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	serviceName    = "staffing"
	serviceVersion = "0.1.0"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.LogLevel == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newPostgresPool(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.New(ctx, postgres.Options{
		DSN:      cfg.PostgresDSN,
		MaxConns: cfg.PostgresMaxConns,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := schema.NewMigrator(postgres.MigrationConn(pool), schema.Postgres, logger)
	if _, err := migrator.Run(ctx, pgstore.Migrations); err != nil {
		pool.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func newStore(pool *pgxpool.Pool) store.Store {
	return pgstore.New(pool)
}

func newCache(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) cache.Cache {
	opts := cache.Options{
		RedisURL:      cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		DefaultTTL:    cfg.CacheTTL,
	}

	var c cache.Cache
	if cfg.RedisAddr == "" {
		logger.Info("no redis address configured, using in-process cache")
		c = cachememory.New(opts)
	} else {
		rc := cacheredis.New(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unreachable at startup, commands will retry", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		c = rc
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
	return c
}

func newNATSConnection(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	nc, err := events.NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return nc.Drain()
		},
	})
	return nc, nil
}

func newJobRegistry(cfg *config.Config, logger *zap.Logger, pool *pgxpool.Pool, c cache.Cache) jobs.Registry {
	local := jobs.NewPostgresRegistry(pool)
	if cfg.JobsAPIURL == "" {
		return local
	}
	remote := jobs.NewHTTPRegistry(logger, cfg.JobsAPIURL, cfg.JobsAPITimeout, c, cfg.CacheTTL)
	return jobs.WithFallback(remote, local, logger)
}

func newAnalyticsSink(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (analytics.Sink, error) {
	if !cfg.AnalyticsEnabled {
		return analytics.Nop(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, database.Options{
		DSN:             cfg.ClickHouseDSN,
		MaxOpenConns:    cfg.ClickHouseMaxOpenConns,
		MaxIdleConns:    cfg.ClickHouseMaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouseConnMaxLife,
		Username:        cfg.ClickHouseUsername,
		Password:        cfg.ClickHousePassword,
		Database:        cfg.ClickHouseDatabase,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := schema.NewMigrator(db.MigrationConn(), schema.ClickHouse, logger)
	if _, err := migrator.Run(ctx, migrations.ClickHouse); err != nil {
		_ = db.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
	return analytics.NewClickHouseSink(logger, db.Conn()), nil
}

func newHiredView(cfg *config.Config, logger *zap.Logger, st store.Store, ps profiles.Store, c cache.Cache) *hired.View {
	return hired.New(logger, st, ps, c, cfg.CacheTTL)
}

func newRegistry(
	logger *zap.Logger,
	st store.Store,
	jobRegistry jobs.Registry,
	prov *provisioning.Service,
	pub events.Publisher,
	view *hired.View,
	m *metrics.Metrics,
) *registry.Service {
	return registry.New(logger, st, jobRegistry, prov, pub, view, m)
}

func newLedger(
	logger *zap.Logger,
	st store.Store,
	sink analytics.Sink,
	pub events.Publisher,
	view *hired.View,
	m *metrics.Metrics,
) *ledger.Service {
	return ledger.New(logger, st, sink, pub, view, m)
}

func newEventHandler(logger *zap.Logger, nc *nats.Conn, prov *provisioning.Service) *events.Handler {
	return events.NewHandler(logger, nc, prov)
}

func newReconciler(cfg *config.Config, logger *zap.Logger, st store.Store, led *ledger.Service, prov *provisioning.Service, m *metrics.Metrics) *reconcile.Reconciler {
	return reconcile.New(logger, st, led, prov, m, cfg.ReconcileSchedule, cfg.ReconcileWorkers)
}

func newServer(cfg *config.Config, logger *zap.Logger, reg *registry.Service, led *ledger.Service, view *hired.View, m *metrics.Metrics) *api.Server {
	return api.NewServer(logger, reg, led, view, m, api.Options{RequestTimeout: cfg.RequestTimeout})
}

func initTracer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) error {
	if cfg.OTELCollectorURL == "" {
		return nil
	}
	shutdown, err := telemetry.InitTracer(context.Background(), serviceName, serviceVersion, cfg.OTELCollectorURL, logger)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			shutdown(ctx)
			return nil
		},
	})
	return nil
}

func ensureAdmin(cfg *config.Config, st store.Store, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := bootstrap.EnsureAdmin(ctx, st, bootstrap.AdminOptions{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
	}, logger)
	return err
}

func startServer(lc fx.Lifecycle, cfg *config.Config, server *api.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.Listen(cfg.HTTPAddr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

func startReconciler(lc fx.Lifecycle, r *reconcile.Reconciler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.Start()
		},
		OnStop: func(ctx context.Context) error {
			return r.Stop(ctx)
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			newLogger,
			metrics.New,
			newPostgresPool,
			newStore,
			newCache,
			newNATSConnection,
			events.NewPublisher,
			newJobRegistry,
			profiles.NewPostgresStore,
			newAnalyticsSink,
			newHiredView,
			provisioning.New,
			newRegistry,
			newLedger,
			newEventHandler,
			newReconciler,
			newServer,
		),
		fx.Invoke(
			initTracer,
			ensureAdmin,
			func(handler *events.Handler, lc fx.Lifecycle) error {
				return handler.RegisterSubscriptions(lc)
			},
			startServer,
			startReconciler,
		),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		log.Fatal(err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Fatal(err)
	}
}
