// Package hired composes the read-only hired candidate view of a job from
// applications, profiles and the payment ledger.
package hired

import (
	"context"
	"encoding/json"
	"time"

	"staffing/common/cache"
	"staffing/common/telemetry"
	"staffing/internal/errors"
	"staffing/internal/ledger"
	"staffing/internal/models"
	"staffing/internal/profiles"
	"staffing/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = telemetry.GetTracer("staffing/hired")

const maxConcurrentRows = 8

type Row struct {
	ApplicationID string           `json:"applicationId"`
	Candidate     models.Candidate `json:"candidate"`
	JobID         string           `json:"jobId"`
	JobStatus     models.JobStatus `json:"jobStatus"`
	TaskStatus    string           `json:"taskStatus,omitempty"`
	Department    string           `json:"department,omitempty"`
	OfferedSalary *decimal.Decimal `json:"offeredSalary,omitempty"`
	StartDate     *time.Time       `json:"startDate,omitempty"`
	HiredAt       *time.Time       `json:"hiredAt,omitempty"`

	Location   string   `json:"location"`
	Skills     []string `json:"skills"`
	Experience string   `json:"experience"`

	TotalPayments   decimal.Decimal      `json:"totalPayments"`
	PaymentStatus   models.PaymentStatus `json:"paymentStatus"`
	LastPaymentDate *time.Time           `json:"lastPaymentDate"`
	Payments        []*models.Payment    `json:"payments"`
}

type View struct {
	logger   *zap.Logger
	store    store.Store
	profiles profiles.Store
	cache    cache.Cache
	ttl      time.Duration
}

func New(logger *zap.Logger, st store.Store, ps profiles.Store, c cache.Cache, ttl time.Duration) *View {
	return &View{
		logger:   logger,
		store:    st,
		profiles: ps,
		cache:    c,
		ttl:      ttl,
	}
}

// Cached rows live under a key that carries the job's generation. Invalidate
// moves the generation on, so rows composed before an invalidation can never
// be read after it, even when their write lands late.
const initialGeneration = "0"

func generationKey(jobID string) string {
	return "hired:job:" + jobID + ":gen"
}

func rowsKey(jobID, generation string) string {
	return "hired:job:" + jobID + ":rows:" + generation
}

// generationTTL outlives every rows entry, so an expired generation cannot
// resurrect rows written under the initial one.
func (v *View) generationTTL() time.Duration {
	if ttl := 2 * v.ttl; ttl > 24*time.Hour {
		return ttl
	}
	return 24 * time.Hour
}

// ListHired returns one row per application of jobID in status hired. Payment
// figures come from the ledger, not from the fields cached on the
// application.
func (v *View) ListHired(ctx context.Context, jobID string) ([]Row, error) {
	ctx, span := tracer.Start(ctx, "ListHired")
	defer span.End()
	span.SetAttributes(telemetry.String("job.id", jobID))

	if jobID == "" {
		return nil, errors.Validation("jobId is required", nil).WithCode(errors.CodeMissingFields)
	}

	generation := v.generation(ctx, jobID)
	if rows, ok := v.cached(ctx, jobID, generation); ok {
		span.SetAttributes(telemetry.String("cache.result", "hit"))
		return rows, nil
	}
	span.SetAttributes(telemetry.String("cache.result", "miss"))

	apps, err := v.store.ListApplicationsByJobAndStatus(ctx, jobID, models.StatusHired)
	if err != nil {
		span.RecordError(err)
		return nil, store.Translate(err, "applications")
	}

	rows := make([]Row, len(apps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRows)
	for i, app := range apps {
		i, app := i, app
		g.Go(func() error {
			row, err := v.compose(gctx, app)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(telemetry.Int("rows.count", len(rows)))

	if current := v.generation(ctx, jobID); current != generation {
		v.logger.Debug("hired view invalidated while composing, not caching",
			zap.String("job_id", jobID))
		return rows, nil
	}
	v.save(ctx, jobID, generation, rows)
	return rows, nil
}

func (v *View) compose(ctx context.Context, app *models.Application) (Row, error) {
	profile, err := v.profiles.GetProfile(ctx, app.Candidate.Email)
	if err != nil {
		return Row{}, store.Translate(err, "profile")
	}
	p := profiles.WithDefaults(profile, app.Candidate.Email)

	payments, err := v.store.ListPayments(ctx, models.PaymentFilter{CandidateID: app.ID})
	if err != nil {
		return Row{}, store.Translate(err, "payments")
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	agg := ledger.Aggregate(payments)

	return Row{
		ApplicationID:   app.ID,
		Candidate:       app.Candidate,
		JobID:           app.JobID,
		JobStatus:       app.JobStatus,
		TaskStatus:      app.TaskStatus,
		Department:      app.Department,
		OfferedSalary:   app.OfferedSalary,
		StartDate:       app.StartDate,
		HiredAt:         app.HiredAt,
		Location:        p.Location,
		Skills:          p.Skills,
		Experience:      p.Experience,
		TotalPayments:   agg.TotalPayments,
		PaymentStatus:   agg.PaymentStatus,
		LastPaymentDate: agg.LastPaymentDate,
		Payments:        payments,
	}, nil
}

func (v *View) generation(ctx context.Context, jobID string) string {
	var generation string
	if err := v.cache.Get(ctx, generationKey(jobID), &generation); err != nil {
		if err != cache.ErrNotFound {
			v.logger.Warn("cache error", zap.String("job_id", jobID), zap.Error(err))
		}
		return initialGeneration
	}
	return generation
}

func (v *View) cached(ctx context.Context, jobID, generation string) ([]Row, bool) {
	var raw string
	err := v.cache.Get(ctx, rowsKey(jobID, generation), &raw)
	if err != nil {
		if err != cache.ErrNotFound {
			v.logger.Warn("cache error", zap.String("job_id", jobID), zap.Error(err))
		}
		return nil, false
	}

	var rows []Row
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		v.logger.Warn("discarding undecodable hired view", zap.String("job_id", jobID), zap.Error(err))
		return nil, false
	}
	return rows, true
}

func (v *View) save(ctx context.Context, jobID, generation string, rows []Row) {
	data, err := json.Marshal(rows)
	if err != nil {
		v.logger.Warn("failed to encode hired view", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if err := v.cache.Set(ctx, rowsKey(jobID, generation), data, v.ttl); err != nil {
		v.logger.Warn("failed to cache hired view", zap.String("job_id", jobID), zap.Error(err))
	}
}

// Invalidate starts a new generation for jobID and drops the rows of the old
// one. Failures are logged; the entry then expires on its own.
func (v *View) Invalidate(ctx context.Context, jobID string) {
	previous := v.generation(ctx, jobID)
	if err := v.cache.Set(ctx, generationKey(jobID), uuid.NewString(), v.generationTTL()); err != nil {
		v.logger.Warn("failed to invalidate hired view", zap.String("job_id", jobID), zap.Error(err))
	}
	if err := v.cache.Delete(ctx, rowsKey(jobID, previous)); err != nil {
		v.logger.Warn("failed to drop hired view", zap.String("job_id", jobID), zap.Error(err))
	}
}
