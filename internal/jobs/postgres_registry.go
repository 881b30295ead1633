package jobs

import (
	"context"
	stderrors "errors"
	"fmt"

	"staffing/internal/errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

type postgresRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistry reads job status from the local jobs table.
func NewPostgresRegistry(pool *pgxpool.Pool) Registry {
	return &postgresRegistry{pool: pool}
}

func (r *postgresRegistry) JobStatus(ctx context.Context, jobID string) (string, error) {
	ctx, span := tracer.Start(ctx, "postgresRegistry.JobStatus")
	defer span.End()

	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, jobID).Scan(&status)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return "", errors.NotFound(fmt.Sprintf("job %s not found", jobID), nil)
	}
	if err != nil {
		span.RecordError(err)
		return "", errors.Storage("querying job status", err)
	}
	return status, nil
}

type fallbackRegistry struct {
	primary  Registry
	fallback Registry
	logger   *zap.Logger
}

// WithFallback consults fallback whenever primary fails for any reason other
// than not knowing the job.
func WithFallback(primary, fallback Registry, logger *zap.Logger) Registry {
	return &fallbackRegistry{primary: primary, fallback: fallback, logger: logger}
}

func (r *fallbackRegistry) JobStatus(ctx context.Context, jobID string) (string, error) {
	status, err := r.primary.JobStatus(ctx, jobID)
	if err == nil || errors.IsType(err, errors.ErrTypeNotFound) {
		return status, err
	}
	r.logger.Warn("job registry unavailable, using fallback",
		zap.String("job_id", jobID),
		zap.Error(err))
	return r.fallback.JobStatus(ctx, jobID)
}
