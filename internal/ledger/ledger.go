// Package ledger records payments against hired applications and keeps the
// derived payment fields on each application in step with the ledger.
package ledger

import (
	"context"
	"strings"
	"time"

	"staffing/common/telemetry"
	"staffing/internal/analytics"
	"staffing/internal/errors"
	"staffing/internal/events"
	"staffing/internal/metrics"
	"staffing/internal/models"
	"staffing/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("staffing/ledger")

// Amounts are stored as NUMERIC(14, 2).
const amountPlaces = 2

var maxAmount = decimal.New(1, 12)

type RecordRequest struct {
	CandidateID string                   `json:"candidateId"`
	JobID       string                   `json:"jobId"`
	Amount      string                   `json:"amount"`
	Description string                   `json:"description"`
	Method      string                   `json:"method"`
	ClientEmail string                   `json:"clientEmail"`
	Status      models.TransactionStatus `json:"status,omitempty"`
	TaskStatus  *string                  `json:"taskStatus,omitempty"`
}

type Report struct {
	Payments []*models.Payment `json:"payments"`
	Summary  Summary           `json:"summary"`
}

// ViewInvalidator drops cached read models derived from a job's applications.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, jobID string)
}

type Service struct {
	logger    *zap.Logger
	store     store.Store
	sink      analytics.Sink
	publisher events.Publisher
	views     ViewInvalidator
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(
	logger *zap.Logger,
	st store.Store,
	sink analytics.Sink,
	publisher events.Publisher,
	views ViewInvalidator,
	m *metrics.Metrics,
) *Service {
	return &Service{
		logger:    logger,
		store:     st,
		sink:      sink,
		publisher: publisher,
		views:     views,
		metrics:   m,
		now:       time.Now,
	}
}

// payable reports whether payments may be recorded for an application in
// status s. Settlement stays open after the task has ended.
func payable(s models.Status) bool {
	switch s {
	case models.StatusHired, models.StatusCompleted, models.StatusResigned:
		return true
	}
	return false
}

func validate(req RecordRequest) (decimal.Decimal, models.TransactionStatus, error) {
	var missing []string
	if strings.TrimSpace(req.CandidateID) == "" {
		missing = append(missing, "candidateId")
	}
	if strings.TrimSpace(req.JobID) == "" {
		missing = append(missing, "jobId")
	}
	if strings.TrimSpace(req.ClientEmail) == "" {
		missing = append(missing, "clientEmail")
	}
	if strings.TrimSpace(req.Amount) == "" {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return decimal.Zero, "", errors.Validation("missing required fields: "+strings.Join(missing, ", "), nil).
			WithCode(errors.CodeMissingFields)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return decimal.Zero, "", errors.Validation("amount must be numeric", err).WithCode(errors.CodeInvalidAmount)
	}
	if !amount.IsPositive() {
		return decimal.Zero, "", errors.Validation("amount must be greater than zero", nil).WithCode(errors.CodeInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(amountPlaces)) {
		return decimal.Zero, "", errors.Validation("amount must have at most two decimal places", nil).WithCode(errors.CodeInvalidAmount)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, "", errors.Validation("amount is too large", nil).WithCode(errors.CodeInvalidAmount)
	}

	status := req.Status
	switch status {
	case "":
		status = models.TransactionCompleted
	case models.TransactionCompleted, models.TransactionPending:
	default:
		return decimal.Zero, "", errors.Validation("payment status must be completed or pending", nil)
	}
	return amount, status, nil
}

// RecordPayment appends a payment and then recomputes the application's
// aggregate from the full ledger. If the recompute fails the payment stays
// recorded and the error is returned; Recompute repairs the aggregate.
func (s *Service) RecordPayment(ctx context.Context, req RecordRequest) (*models.Payment, error) {
	ctx, span := tracer.Start(ctx, "RecordPayment")
	defer span.End()
	span.SetAttributes(
		telemetry.String("candidate.id", req.CandidateID),
		telemetry.String("job.id", req.JobID),
	)

	amount, status, err := validate(req)
	if err != nil {
		s.metrics.Payment("rejected", 0)
		return nil, err
	}

	app, err := s.store.GetApplication(ctx, req.CandidateID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		span.RecordError(err)
		return nil, store.Translate(err, "application")
	}
	if app == nil || app.JobID != req.JobID || !payable(app.Status) {
		s.metrics.Payment("rejected", 0)
		return nil, errors.Precondition("no hired application matches candidate "+req.CandidateID+" and job "+req.JobID, nil).
			WithCode(errors.CodeCandidateNotHired)
	}

	payment := &models.Payment{
		ID:             uuid.NewString(),
		CandidateID:    app.ID,
		CandidateEmail: app.Candidate.Email,
		JobID:          app.JobID,
		Amount:         amount,
		Description:    strings.TrimSpace(req.Description),
		Method:         strings.TrimSpace(req.Method),
		Status:         status,
		TransactionID:  uuid.NewString(),
		ClientEmail:    models.NormalizeEmail(req.ClientEmail),
		CreatedAt:      s.now().UTC(),
	}

	if err := s.store.AppendPayment(ctx, payment); err != nil {
		span.RecordError(err)
		s.metrics.Payment("failed", 0)
		return nil, store.Translate(err, "payment")
	}
	s.metrics.Payment("recorded", amount.InexactFloat64())

	s.logger.Info("payment recorded",
		zap.String("transaction_id", payment.TransactionID),
		zap.String("candidate_id", payment.CandidateID),
		zap.String("amount", payment.Amount.String()))

	if err := s.sink.RecordPayment(ctx, payment); err != nil {
		s.logger.Warn("failed to export payment event",
			zap.String("transaction_id", payment.TransactionID),
			zap.Error(err))
	}
	if err := s.publisher.PublishPaymentRecorded(ctx, payment); err != nil {
		s.logger.Warn("failed to publish payment event",
			zap.String("transaction_id", payment.TransactionID),
			zap.Error(err))
	}

	if _, err := s.recompute(ctx, app, req.TaskStatus); err != nil {
		span.RecordError(err)
		s.views.Invalidate(ctx, app.JobID)
		s.logger.Error("payment recorded but aggregate recompute failed",
			zap.String("transaction_id", payment.TransactionID),
			zap.Error(err))
		return payment, err
	}

	return payment, nil
}

// Recompute rewrites the aggregate of one application from its ledger. It is
// safe to run any number of times.
func (s *Service) Recompute(ctx context.Context, candidateID string, taskStatus *string) (models.Aggregate, error) {
	ctx, span := tracer.Start(ctx, "Recompute")
	defer span.End()
	span.SetAttributes(telemetry.String("candidate.id", candidateID))

	app, err := s.store.GetApplication(ctx, candidateID)
	if err != nil {
		span.RecordError(err)
		return models.Aggregate{}, store.Translate(err, "application "+candidateID)
	}
	return s.recompute(ctx, app, taskStatus)
}

func (s *Service) recompute(ctx context.Context, app *models.Application, taskStatus *string) (models.Aggregate, error) {
	agg, err := s.store.RecomputePaymentAggregate(ctx, app.ID, taskStatus)
	if err != nil {
		return models.Aggregate{}, store.Translate(err, "application "+app.ID)
	}
	s.views.Invalidate(ctx, app.JobID)
	return agg, nil
}

// QueryPayments lists matching payments newest first with a summary. At least
// one filter field is required.
func (s *Service) QueryPayments(ctx context.Context, filter models.PaymentFilter) (*Report, error) {
	ctx, span := tracer.Start(ctx, "QueryPayments")
	defer span.End()

	filter.CandidateID = strings.TrimSpace(filter.CandidateID)
	filter.JobID = strings.TrimSpace(filter.JobID)
	filter.ClientEmail = models.NormalizeEmail(filter.ClientEmail)
	if filter.Empty() {
		return nil, errors.Validation("one of candidateId, jobId or clientEmail is required", nil).
			WithCode(errors.CodeMissingFilter)
	}

	payments, err := s.store.ListPayments(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, store.Translate(err, "payments")
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	span.SetAttributes(telemetry.Int("payments.count", len(payments)))

	return &Report{Payments: payments, Summary: Summarize(payments)}, nil
}
