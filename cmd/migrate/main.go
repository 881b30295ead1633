package main

import (
	"context"
	"flag"
	"log"
	"time"

	"staffing/common/database"
	"staffing/common/database/schema"
	"staffing/common/database/schema/migrations"
	"staffing/common/postgres"
	"staffing/internal/config"
	pgstore "staffing/internal/store/postgres"

	"go.uber.org/zap"
)

func main() {
	target := flag.String("target", "postgres", "schema to migrate: postgres, clickhouse or all")
	rollback := flag.Int("rollback", 0, "roll back this migration version instead of applying pending ones")
	flag.Parse()
	rollbackVersion = *rollback

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch *target {
	case "postgres":
		migratePostgres(ctx, cfg, logger)
	case "clickhouse":
		migrateClickHouse(ctx, cfg, logger)
	case "all":
		migratePostgres(ctx, cfg, logger)
		migrateClickHouse(ctx, cfg, logger)
	default:
		logger.Fatal("Unknown migration target", zap.String("target", *target))
	}

	logger.Info("All migrations completed successfully")
}

func migratePostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	pool, err := postgres.New(ctx, postgres.Options{DSN: cfg.PostgresDSN, MaxConns: 2}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()

	run(ctx, schema.NewMigrator(postgres.MigrationConn(pool), schema.Postgres, logger), pgstore.Migrations, logger)
}

func migrateClickHouse(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
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
		logger.Fatal("Failed to connect to ClickHouse", zap.Error(err))
	}
	defer db.Close()

	run(ctx, schema.NewMigrator(db.MigrationConn(), schema.ClickHouse, logger), migrations.ClickHouse, logger)
}

var rollbackVersion int

func run(ctx context.Context, migrator *schema.Migrator, set []schema.Migration, logger *zap.Logger) {
	if rollbackVersion > 0 {
		for _, migration := range set {
			if migration.Version != rollbackVersion {
				continue
			}
			if err := migrator.RollbackMigration(ctx, migration); err != nil {
				logger.Fatal("Failed to roll back migration", zap.Int("version", migration.Version), zap.Error(err))
			}
			logger.Info("Rolled back migration",
				zap.Int("version", migration.Version),
				zap.String("description", migration.Description))
			return
		}
		logger.Fatal("Unknown migration version", zap.Int("version", rollbackVersion))
	}

	applied, err := migrator.Run(ctx, set)
	if err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	logger.Info("Migrations applied", zap.Int("count", applied))
}
