package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"staffing/internal/analytics"
	"staffing/internal/errors"
	"staffing/internal/events"
	"staffing/internal/models"
	"staffing/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type nopViews struct{}

func (nopViews) Invalidate(ctx context.Context, jobID string) {}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type fixture struct {
	svc       *Service
	store     *memory.Store
	publisher *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	st := memory.New()
	pub := events.NewRecorder()
	svc := New(zaptest.NewLogger(t), st, analytics.Nop(), pub, nopViews{}, nil)
	c := &clock{t: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	svc.now = c.now
	return &fixture{svc: svc, store: st, publisher: pub}
}

func (f *fixture) application(t *testing.T, id string, status models.Status) *models.Application {
	app := &models.Application{
		ID:            id,
		Candidate:     models.Candidate{Name: "Ada", Email: id + "@example.com"},
		JobID:         "job-1",
		Status:        status,
		PaymentStatus: models.PaymentStatusPending,
		TotalPayments: decimal.Zero,
	}
	require.NoError(t, f.store.CreateApplication(context.Background(), app))
	return app
}

func payment(candidateID, amount string) RecordRequest {
	return RecordRequest{
		CandidateID: candidateID,
		JobID:       "job-1",
		Amount:      amount,
		Description: "milestone",
		Method:      "bank-transfer",
		ClientEmail: "client@corp.test",
	}
}

func TestRecordPaymentScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.application(t, "app-a", models.StatusHired)

	first, err := f.svc.RecordPayment(ctx, payment(app.ID, "500"))
	require.NoError(t, err)
	second, err := f.svc.RecordPayment(ctx, payment(app.ID, "300"))
	require.NoError(t, err)
	assert.NotEqual(t, first.TransactionID, second.TransactionID)

	report, err := f.svc.QueryPayments(ctx, models.PaymentFilter{CandidateID: app.ID})
	require.NoError(t, err)
	assert.Equal(t, "800", report.Summary.TotalAmount.String())
	assert.Equal(t, 2, report.Summary.TotalCount)
	assert.Equal(t, 2, report.Summary.CompletedCount)
	assert.Zero(t, report.Summary.PendingCount)
	require.Len(t, report.Payments, 2)
	assert.Equal(t, second.ID, report.Payments[0].ID)

	stored, err := f.store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "800", stored.TotalPayments.String())
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	require.NotNil(t, stored.LastPaymentDate)
	assert.True(t, stored.LastPaymentDate.Equal(second.CreatedAt))
	assert.Equal(t, models.StatusHired, stored.Status)

	assert.Len(t, f.publisher.PaymentEvents(), 2)
}

func TestRecordPaymentStoresTaskStatus(t *testing.T) {
	f := newFixture(t)
	app := f.application(t, "app-a", models.StatusHired)
	task := "milestone-2"

	req := payment(app.ID, "120.50")
	req.TaskStatus = &task
	_, err := f.svc.RecordPayment(context.Background(), req)
	require.NoError(t, err)

	stored, err := f.store.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, "milestone-2", stored.TaskStatus)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t)
	f.application(t, "app-a", models.StatusHired)

	tests := []struct {
		name string
		mod  func(r *RecordRequest)
		code errors.Code
	}{
		{"missing client", func(r *RecordRequest) { r.ClientEmail = "" }, errors.CodeMissingFields},
		{"missing job", func(r *RecordRequest) { r.JobID = "" }, errors.CodeMissingFields},
		{"missing amount", func(r *RecordRequest) { r.Amount = "" }, errors.CodeMissingFields},
		{"non numeric", func(r *RecordRequest) { r.Amount = "lots" }, errors.CodeInvalidAmount},
		{"zero", func(r *RecordRequest) { r.Amount = "0" }, errors.CodeInvalidAmount},
		{"negative", func(r *RecordRequest) { r.Amount = "-5" }, errors.CodeInvalidAmount},
		{"sub-cent", func(r *RecordRequest) { r.Amount = "0.001" }, errors.CodeInvalidAmount},
		{"three decimal places", func(r *RecordRequest) { r.Amount = "10.005" }, errors.CodeInvalidAmount},
		{"too large", func(r *RecordRequest) { r.Amount = "1000000000000" }, errors.CodeInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := payment("app-a", "10")
			tt.mod(&req)
			_, err := f.svc.RecordPayment(context.Background(), req)
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}

	payments, err := f.store.ListPayments(context.Background(), models.PaymentFilter{CandidateID: "app-a"})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestRecordPaymentKeepsExactCents(t *testing.T) {
	f := newFixture(t)
	f.application(t, "app-a", models.StatusHired)

	for _, amount := range []string{"10.5", "10.50", "10.500", "0.01"} {
		p, err := f.svc.RecordPayment(context.Background(), payment("app-a", amount))
		require.NoError(t, err, amount)
		assert.True(t, p.Amount.Equal(p.Amount.Truncate(2)), amount)
	}
}

func TestRecordPaymentCandidateNotHired(t *testing.T) {
	f := newFixture(t)
	f.application(t, "app-applied", models.StatusApproved)
	f.application(t, "app-hired", models.StatusHired)

	tests := []struct {
		name string
		req  RecordRequest
	}{
		{"unknown application", payment("ghost", "10")},
		{"not hired yet", payment("app-applied", "10")},
		{"job mismatch", func() RecordRequest { r := payment("app-hired", "10"); r.JobID = "job-9"; return r }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordPayment(context.Background(), tt.req)
			assert.True(t, errors.IsType(err, errors.ErrTypePrecondition))
			assert.True(t, errors.IsCode(err, errors.CodeCandidateNotHired))
		})
	}
}

func TestRecordPaymentAfterCompletion(t *testing.T) {
	f := newFixture(t)
	app := f.application(t, "app-done", models.StatusCompleted)

	_, err := f.svc.RecordPayment(context.Background(), payment(app.ID, "75"))
	require.NoError(t, err)
}

func TestPendingPaymentsLeaveStatusPending(t *testing.T) {
	f := newFixture(t)
	app := f.application(t, "app-a", models.StatusHired)

	req := payment(app.ID, "40")
	req.Status = models.TransactionPending
	_, err := f.svc.RecordPayment(context.Background(), req)
	require.NoError(t, err)

	stored, err := f.store.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, "40", stored.TotalPayments.String())

	report, err := f.svc.QueryPayments(context.Background(), models.PaymentFilter{CandidateID: app.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.PendingCount)
	assert.Equal(t, "40", report.Summary.PendingAmount.String())
}

func TestRecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.application(t, "app-a", models.StatusHired)
	_, err := f.svc.RecordPayment(ctx, payment(app.ID, "19.99"))
	require.NoError(t, err)

	// A row written behind the ledger's back leaves the cached fields behind.
	require.NoError(t, f.store.AppendPayment(ctx, &models.Payment{
		ID:            "p-direct",
		CandidateID:   app.ID,
		JobID:         app.JobID,
		Amount:        decimal.RequireFromString("5.01"),
		Status:        models.TransactionPending,
		TransactionID: "t-direct",
		ClientEmail:   "client@corp.test",
		CreatedAt:     time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}))
	stale, err := f.store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "19.99", stale.TotalPayments.String())

	first, err := f.svc.Recompute(ctx, app.ID, nil)
	require.NoError(t, err)
	second, err := f.svc.Recompute(ctx, app.ID, nil)
	require.NoError(t, err)

	assert.True(t, first.TotalPayments.Equal(second.TotalPayments))
	assert.Equal(t, "25", second.TotalPayments.String())
	assert.Equal(t, models.PaymentStatusPaid, second.PaymentStatus)
	require.NotNil(t, second.LastPaymentDate)
	assert.True(t, second.LastPaymentDate.Equal(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)))

	stored, err := f.store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, second.TotalPayments.Equal(stored.TotalPayments))

	_, err = f.svc.Recompute(ctx, "ghost", nil)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestConcurrentPaymentsConverge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.application(t, "app-a", models.StatusHired)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.RecordPayment(ctx, payment(app.ID, fmt.Sprintf("%d.25", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	_, err := f.svc.Recompute(ctx, app.ID, nil)
	require.NoError(t, err)

	stored, err := f.store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	// 1+2+...+20 = 210, plus 20 * 0.25
	assert.Equal(t, "215", stored.TotalPayments.String())
}

func TestQueryPaymentsRequiresFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.QueryPayments(context.Background(), models.PaymentFilter{ClientEmail: "  "})
	assert.True(t, errors.IsCode(err, errors.CodeMissingFilter))
}

func TestQueryPaymentsByClientAndJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.application(t, "app-a", models.StatusHired)
	b := f.application(t, "app-b", models.StatusHired)

	_, err := f.svc.RecordPayment(ctx, payment(a.ID, "10"))
	require.NoError(t, err)
	other := payment(b.ID, "20")
	other.ClientEmail = "other@corp.test"
	_, err = f.svc.RecordPayment(ctx, other)
	require.NoError(t, err)

	byClient, err := f.svc.QueryPayments(ctx, models.PaymentFilter{ClientEmail: "CLIENT@corp.test"})
	require.NoError(t, err)
	assert.Equal(t, 1, byClient.Summary.TotalCount)

	byJob, err := f.svc.QueryPayments(ctx, models.PaymentFilter{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, "30", byJob.Summary.TotalAmount.String())

	none, err := f.svc.QueryPayments(ctx, models.PaymentFilter{JobID: "job-none"})
	require.NoError(t, err)
	assert.NotNil(t, none.Payments)
	assert.Zero(t, none.Summary.TotalCount)
	assert.True(t, none.Summary.TotalAmount.IsZero())
}

func TestAggregate(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	empty := Aggregate(nil)
	assert.True(t, empty.TotalPayments.IsZero())
	assert.Equal(t, models.PaymentStatusPending, empty.PaymentStatus)
	assert.Nil(t, empty.LastPaymentDate)

	agg := Aggregate([]*models.Payment{
		{Amount: decimal.RequireFromString("0.10"), Status: models.TransactionCompleted, CreatedAt: t0.Add(time.Hour)},
		{Amount: decimal.RequireFromString("0.20"), Status: models.TransactionPending, CreatedAt: t0.Add(3 * time.Hour)},
		{Amount: decimal.RequireFromString("0.30"), Status: models.TransactionCompleted, CreatedAt: t0},
	})
	assert.Equal(t, "0.6", agg.TotalPayments.String())
	assert.Equal(t, models.PaymentStatusPaid, agg.PaymentStatus)
	require.NotNil(t, agg.LastPaymentDate)
	assert.True(t, agg.LastPaymentDate.Equal(t0.Add(3*time.Hour)))
}
