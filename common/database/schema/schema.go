package schema

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// Conn is the slice of a database driver the migrator needs.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Dialect holds the bookkeeping statements for one database engine.
type Dialect struct {
	Name                  string
	CreateMigrationsTable string
	InsertMigration       string
	DeleteMigration       string
}

var ClickHouse = Dialect{
	Name: "clickhouse",
	CreateMigrationsTable: `
		CREATE TABLE IF NOT EXISTS migrations (
			version Int32,
			description String,
			applied_at DateTime,
			PRIMARY KEY (version)
		) ENGINE = MergeTree()
	`,
	InsertMigration: `
		INSERT INTO migrations (version, description, applied_at)
		VALUES (?, ?, now())
	`,
	DeleteMigration: "DELETE FROM migrations WHERE version = ?",
}

var Postgres = Dialect{
	Name: "postgres",
	CreateMigrationsTable: `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`,
	InsertMigration: `
		INSERT INTO migrations (version, description, applied_at)
		VALUES ($1, $2, now())
	`,
	DeleteMigration: "DELETE FROM migrations WHERE version = $1",
}

type Migrator struct {
	conn    Conn
	dialect Dialect
	logger  *zap.Logger
}

func NewMigrator(conn Conn, dialect Dialect, logger *zap.Logger) *Migrator {
	return &Migrator{
		conn:    conn,
		dialect: dialect,
		logger:  logger,
	}
}

func (m *Migrator) CreateMigrationsTable(ctx context.Context) error {
	if err := m.conn.Exec(ctx, m.dialect.CreateMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := "SELECT version, applied_at FROM migrations ORDER BY version"

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int32
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[int(version)] = appliedAt
	}

	return applied, rows.Err()
}

func (m *Migrator) ApplyMigration(ctx context.Context, migration Migration) error {
	if err := m.conn.Exec(ctx, migration.Up); err != nil {
		return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
	}

	if err := m.conn.Exec(ctx, m.dialect.InsertMigration, int32(migration.Version), migration.Description); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	return nil
}

func (m *Migrator) RollbackMigration(ctx context.Context, migration Migration) error {
	if err := m.conn.Exec(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %d: %w", migration.Version, err)
	}

	if err := m.conn.Exec(ctx, m.dialect.DeleteMigration, int32(migration.Version)); err != nil {
		return fmt.Errorf("failed to remove migration record %d: %w", migration.Version, err)
	}

	return nil
}

// Run applies every pending migration in version order and returns how many
// were applied.
func (m *Migrator) Run(ctx context.Context, migrations []Migration) (int, error) {
	if err := m.CreateMigrationsTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	pending := make([]Migration, len(migrations))
	copy(pending, migrations)
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	count := 0
	for _, migration := range pending {
		if _, ok := applied[migration.Version]; ok {
			m.logger.Debug("migration already applied",
				zap.String("dialect", m.dialect.Name),
				zap.Int("version", migration.Version),
				zap.String("description", migration.Description))
			continue
		}

		m.logger.Info("applying migration",
			zap.String("dialect", m.dialect.Name),
			zap.Int("version", migration.Version),
			zap.String("description", migration.Description))

		if err := m.ApplyMigration(ctx, migration); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}
