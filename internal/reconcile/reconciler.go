// Package reconcile periodically repairs state that a crash between two
// independent steps can leave behind: payment aggregates that drifted from
// the ledger and hired employees that were never provisioned.
package reconcile

import (
	"context"
	"sync"
	"time"

	"staffing/common/telemetry"
	"staffing/internal/errors"
	"staffing/internal/metrics"
	"staffing/internal/models"
	"staffing/internal/store"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("staffing/reconcile")

type Recomputer interface {
	Recompute(ctx context.Context, candidateID string, taskStatus *string) (models.Aggregate, error)
}

type Provisioner interface {
	ProvisionByID(ctx context.Context, applicationID string) (bool, error)
}

type Reconciler struct {
	logger      *zap.Logger
	store       store.ApplicationStore
	ledger      Recomputer
	provisioner Provisioner
	metrics     *metrics.Metrics
	schedule    string
	workers     *workerPool

	cron     *cron.Cron
	mutex    sync.Mutex
	isActive bool
}

func New(
	logger *zap.Logger,
	st store.ApplicationStore,
	ledger Recomputer,
	provisioner Provisioner,
	m *metrics.Metrics,
	schedule string,
	workers int,
) *Reconciler {
	r := &Reconciler{
		logger:      logger,
		store:       st,
		ledger:      ledger,
		provisioner: provisioner,
		metrics:     m,
		schedule:    schedule,
		cron:        cron.New(),
	}
	r.workers = newWorkerPool(r, logger, workers)
	return r
}

// Start registers the repair run on the cron schedule and starts the cron
// runner in its own goroutine.
func (r *Reconciler) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.logger.Error("reconcile run failed", zap.Error(err))
		}
	}); err != nil {
		return errors.Validation("invalid reconcile schedule "+r.schedule, err)
	}
	r.cron.Start()
	r.logger.Info("reconcile scheduled", zap.String("schedule", r.schedule))
	return nil
}

// Stop waits for a running repair to finish or ctx to expire.
func (r *Reconciler) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Stats struct {
	Scanned     int
	Recomputed  int
	Provisioned int
	Failed      int
}

// RunOnce performs one repair pass. A pass that starts while another is
// running returns immediately with empty stats.
func (r *Reconciler) RunOnce(ctx context.Context) (Stats, error) {
	ctx, span := tracer.Start(ctx, "Reconciler.RunOnce")
	defer span.End()

	r.mutex.Lock()
	if r.isActive {
		r.mutex.Unlock()
		r.logger.Debug("reconcile already running, skipping")
		return Stats{}, nil
	}
	r.isActive = true
	r.mutex.Unlock()
	defer func() {
		r.mutex.Lock()
		r.isActive = false
		r.mutex.Unlock()
	}()

	start := time.Now()
	defer func() { r.metrics.ReconcileRun(time.Since(start)) }()

	apps, err := r.store.ListApplicationsByStatus(ctx, models.StatusHired, models.StatusCompleted, models.StatusResigned)
	if err != nil {
		span.RecordError(err)
		return Stats{}, store.Translate(err, "applications")
	}

	stats := r.workers.run(ctx, apps)

	span.SetAttributes(
		telemetry.Int("applications.scanned", stats.Scanned),
		telemetry.Int("aggregates.recomputed", stats.Recomputed),
		telemetry.Int("employees.provisioned", stats.Provisioned),
		telemetry.Int("tasks.failed", stats.Failed),
	)
	r.logger.Info("reconcile run complete",
		zap.Int("scanned", stats.Scanned),
		zap.Int("recomputed", stats.Recomputed),
		zap.Int("provisioned", stats.Provisioned),
		zap.Int("failed", stats.Failed),
		zap.Duration("duration", time.Since(start)))

	return stats, ctx.Err()
}

func (r *Reconciler) repair(ctx context.Context, app *models.Application, stats *runStats) {
	if _, err := r.ledger.Recompute(ctx, app.ID, nil); err != nil {
		stats.fail()
		r.metrics.Reconciled("aggregate", "failed")
		r.logger.Error("failed to recompute aggregate",
			zap.String("application_id", app.ID),
			zap.Error(err))
	} else {
		stats.recomputed()
		r.metrics.Reconciled("aggregate", "ok")
	}

	if app.Status != models.StatusHired || app.ProvisionedAt != nil {
		return
	}
	written, err := r.provisioner.ProvisionByID(ctx, app.ID)
	if err != nil {
		stats.fail()
		r.metrics.Reconciled("provisioning", "failed")
		r.logger.Error("failed to provision hired employee",
			zap.String("application_id", app.ID),
			zap.Error(err))
		return
	}
	if !written {
		r.metrics.Reconciled("provisioning", "skipped")
		return
	}
	stats.provisioned()
	r.metrics.Reconciled("provisioning", "ok")
}
