package postgres

import (
	"context"
	"fmt"

	"staffing/common/database/schema"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

type Options struct {
	DSN      string
	MaxConns int
}

func New(ctx context.Context, opts Options, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}

	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("connected to postgres",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
		zap.Int32("max_conns", cfg.MaxConns))
	return pool, nil
}

// MigrationConn adapts a pool to the schema.Conn used by the migrator.
func MigrationConn(pool *pgxpool.Pool) schema.Conn {
	return &migrationConn{pool: pool}
}

type migrationConn struct {
	pool *pgxpool.Pool
}

func (c *migrationConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.pool.Exec(ctx, query, args...)
	return err
}

func (c *migrationConn) Query(ctx context.Context, query string, args ...any) (schema.Rows, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &migrationRows{rows: rows}, nil
}

type migrationRows struct {
	rows pgx.Rows
}

func (r *migrationRows) Next() bool             { return r.rows.Next() }
func (r *migrationRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *migrationRows) Err() error             { return r.rows.Err() }
func (r *migrationRows) Close() error {
	r.rows.Close()
	return nil
}
