// Package registry owns the Application entity: submission, lifecycle
// transitions, categorization and administrative removal.
package registry

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"staffing/common/telemetry"
	"staffing/internal/errors"
	"staffing/internal/events"
	"staffing/internal/jobs"
	"staffing/internal/metrics"
	"staffing/internal/models"
	"staffing/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("staffing/registry")

// Actor is the caller identity supplied by the surrounding session layer.
type Actor struct {
	Email string
	Role  string
}

type SubmitRequest struct {
	Candidate   models.Candidate `json:"candidate"`
	JobID       string           `json:"jobId"`
	ResumeRef   string           `json:"resumeRef"`
	CoverLetter string           `json:"coverLetter"`
}

// Payload carries the data a transition stores on the application. Only the
// fields relevant to the target state are read.
type Payload struct {
	Interview     *models.InterviewSchedule `json:"interviewSchedule,omitempty"`
	Notes         string                    `json:"notes,omitempty"`
	Reason        string                    `json:"reason,omitempty"`
	OfferedSalary *decimal.Decimal          `json:"offeredSalary,omitempty"`
	Department    string                    `json:"department,omitempty"`
	StartDate     *time.Time                `json:"startDate,omitempty"`
}

type TransitionRequest struct {
	ApplicationID string
	Actor         Actor
	Target        models.Status
	Payload       Payload
}

// Provisioner runs employee provisioning for a freshly hired application.
type Provisioner interface {
	ProvisionHired(ctx context.Context, app *models.Application) (bool, error)
}

// ViewInvalidator drops cached read models derived from a job's applications.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, jobID string)
}

type Service struct {
	logger      *zap.Logger
	store       store.Store
	jobs        jobs.Registry
	provisioner Provisioner
	publisher   events.Publisher
	views       ViewInvalidator
	metrics     *metrics.Metrics
	now         func() time.Time
}

func New(
	logger *zap.Logger,
	st store.Store,
	jobRegistry jobs.Registry,
	provisioner Provisioner,
	publisher events.Publisher,
	views ViewInvalidator,
	m *metrics.Metrics,
) *Service {
	return &Service{
		logger:      logger,
		store:       st,
		jobs:        jobRegistry,
		provisioner: provisioner,
		publisher:   publisher,
		views:       views,
		metrics:     m,
		now:         time.Now,
	}
}

func validateCandidate(c models.Candidate) error {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "candidate.name")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "candidate.email")
	}
	if len(missing) > 0 {
		return errors.Validation("missing required fields: "+strings.Join(missing, ", "), nil).WithCode(errors.CodeMissingFields)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return errors.Validation("candidate email is malformed", err)
	}
	return nil
}

// Submit creates an application in state applied. The uniqueness check on
// (candidate email, job) is performed by the store in the same step as the
// insert.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Application, error) {
	ctx, span := tracer.Start(ctx, "Submit")
	defer span.End()
	span.SetAttributes(telemetry.String("job.id", req.JobID))

	if err := validateCandidate(req.Candidate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.JobID) == "" {
		return nil, errors.Validation("missing required fields: jobId", nil).WithCode(errors.CodeMissingFields)
	}

	if err := s.checkJobOpen(ctx, req.JobID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := s.now().UTC()
	app := &models.Application{
		ID: uuid.NewString(),
		Candidate: models.Candidate{
			Name:  strings.TrimSpace(req.Candidate.Name),
			Email: models.NormalizeEmail(req.Candidate.Email),
			Phone: strings.TrimSpace(req.Candidate.Phone),
		},
		JobID:         req.JobID,
		ResumeRef:     req.ResumeRef,
		CoverLetter:   req.CoverLetter,
		SubmittedAt:   now,
		Status:        models.StatusApplied,
		PaymentStatus: models.PaymentStatusPending,
		TotalPayments: decimal.Zero,
		UpdatedAt:     now,
	}

	if err := s.store.CreateApplication(ctx, app); err != nil {
		span.RecordError(err)
		return nil, store.Translate(err, "application")
	}

	s.logger.Info("application submitted",
		zap.String("application_id", app.ID),
		zap.String("job_id", app.JobID))
	return app, nil
}

func (s *Service) checkJobOpen(ctx context.Context, jobID string) error {
	status, err := s.jobs.JobStatus(ctx, jobID)
	if errors.IsType(err, errors.ErrTypeNotFound) {
		s.logger.Warn("job unknown to registry, accepting application", zap.String("job_id", jobID))
		return nil
	}
	if err != nil {
		return errors.Unavailable("checking job status", err)
	}
	if jobs.IsClosed(status) {
		return errors.Precondition(fmt.Sprintf("job %s is %s and closed to applications", jobID, status), nil).
			WithCode(errors.CodeJobClosed)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Application, error) {
	ctx, span := tracer.Start(ctx, "Get")
	defer span.End()

	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, store.Translate(err, "application "+id)
	}
	return app, nil
}

func (s *Service) authorize(actor Actor, app *models.Application, target models.Status) error {
	if !RoleAllows(actor.Role, target) {
		return errors.Unauthorized(fmt.Sprintf("role %q may not move applications to %s", actor.Role, target), nil)
	}
	if actor.Role == models.RoleCandidate && models.NormalizeEmail(actor.Email) != models.NormalizeEmail(app.Candidate.Email) {
		return errors.Unauthorized("candidates may only act on their own applications", nil)
	}
	return nil
}

func applyPayload(next *models.Application, p Payload, now time.Time) error {
	switch next.Status {
	case models.StatusInterviewScheduled:
		iv := p.Interview
		if iv == nil || strings.TrimSpace(iv.Date) == "" || strings.TrimSpace(iv.Time) == "" || strings.TrimSpace(iv.Interviewer) == "" {
			return errors.Validation("interview schedule requires date, time and interviewer", nil).WithCode(errors.CodeMissingPayload)
		}
		schedule := *iv
		next.Interview = &schedule
	case models.StatusApproved:
		next.ApprovalNotes = p.Notes
	case models.StatusRejected, models.StatusWithdrawn, models.StatusResigned:
		next.DecisionReason = p.Reason
	case models.StatusHired:
		if p.OfferedSalary != nil {
			if p.OfferedSalary.IsNegative() {
				return errors.Validation("offered salary must not be negative", nil).WithCode(errors.CodeInvalidAmount)
			}
			salary := *p.OfferedSalary
			next.OfferedSalary = &salary
		}
		if p.Department != "" {
			next.Department = p.Department
		}
		next.StartDate = p.StartDate
		hiredAt := now
		next.HiredAt = &hiredAt
	}
	return nil
}

// Transition validates and applies a lifecycle change. The write only lands if
// the stored status still equals the status the edge was validated against.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*models.Application, error) {
	ctx, span := tracer.Start(ctx, "Transition")
	defer span.End()
	span.SetAttributes(
		telemetry.String("application.id", req.ApplicationID),
		telemetry.String("transition.target", string(req.Target)),
		telemetry.String("actor.role", req.Actor.Role),
	)

	if !Known(req.Target) {
		return nil, errors.Validation(fmt.Sprintf("unknown target status %q", req.Target), nil)
	}

	app, err := s.store.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		span.RecordError(err)
		return nil, store.Translate(err, "application "+req.ApplicationID)
	}
	from := app.Status

	if err := s.authorize(req.Actor, app, req.Target); err != nil {
		s.metrics.Transition(string(from), string(req.Target), "forbidden")
		return nil, err
	}

	if !CanTransition(from, req.Target) {
		s.metrics.Transition(string(from), string(req.Target), "invalid")
		return nil, errors.Conflict(fmt.Sprintf("cannot move application from %s to %s", from, req.Target), nil).
			WithCode(errors.CodeInvalidTransition)
	}

	now := s.now().UTC()
	next := *app
	next.Status = req.Target
	next.JobStatus = JobStatusFor(req.Target)
	next.UpdatedAt = now
	if err := applyPayload(&next, req.Payload, now); err != nil {
		s.metrics.Transition(string(from), string(req.Target), "invalid")
		return nil, err
	}
	if err := ValidateState(next.Status, next.JobStatus); err != nil {
		return nil, errors.Internal("inconsistent application state", err)
	}

	if err := s.store.UpdateApplicationTransition(ctx, &next, from); err != nil {
		span.RecordError(err)
		s.metrics.Transition(string(from), string(req.Target), "conflict")
		return nil, store.Translate(err, "application "+req.ApplicationID)
	}
	s.metrics.Transition(string(from), string(req.Target), "applied")

	s.logger.Info("application transitioned",
		zap.String("application_id", next.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next.Status)),
		zap.String("actor_role", req.Actor.Role))

	if next.Status == models.StatusHired {
		s.provision(ctx, &next)
	}

	event := events.TransitionEvent{
		ApplicationID:  next.ID,
		CandidateEmail: next.Candidate.Email,
		JobID:          next.JobID,
		From:           from,
		To:             next.Status,
		JobStatus:      next.JobStatus,
		ActorRole:      req.Actor.Role,
		At:             now,
	}
	if err := s.publisher.PublishTransition(ctx, event); err != nil {
		s.logger.Warn("failed to publish transition event",
			zap.String("application_id", next.ID),
			zap.Error(err))
	}
	s.views.Invalidate(ctx, next.JobID)

	return &next, nil
}

// provision never fails the hire: the hired application is the durable record
// of intent and a queued request lets a worker retry from it.
func (s *Service) provision(ctx context.Context, app *models.Application) {
	_, err := s.provisioner.ProvisionHired(ctx, app)
	if err == nil {
		return
	}

	s.logger.Error("employee provisioning failed after hire, queueing retry",
		zap.String("application_id", app.ID),
		zap.Error(err))

	req := events.ProvisionRequest{
		ApplicationID: app.ID,
		Reason:        err.Error(),
		RequestedAt:   s.now().UTC(),
	}
	if perr := s.publisher.RequestProvisioning(ctx, req); perr != nil {
		s.logger.Error("failed to queue provisioning retry, reconcile will pick it up",
			zap.String("application_id", app.ID),
			zap.Error(perr))
	}
}

// Categorize buckets all applications of a candidate, newest first.
func (s *Service) Categorize(ctx context.Context, email string) (Categories, error) {
	ctx, span := tracer.Start(ctx, "Categorize")
	defer span.End()

	if strings.TrimSpace(email) == "" {
		return Categories{}, errors.Validation("candidate email is required", nil).WithCode(errors.CodeMissingFields)
	}

	apps, err := s.store.ListApplicationsByCandidate(ctx, email)
	if err != nil {
		span.RecordError(err)
		return Categories{}, store.Translate(err, "applications")
	}
	span.SetAttributes(telemetry.Int("applications.count", len(apps)))
	return Categorize(apps), nil
}

// Remove deletes an application and its payments. Payments go first so a
// failure part way leaves the application in place for a rerun.
func (s *Service) Remove(ctx context.Context, id string, actor Actor) error {
	ctx, span := tracer.Start(ctx, "Remove")
	defer span.End()
	span.SetAttributes(telemetry.String("application.id", id))

	if actor.Role != models.RoleAdmin {
		return errors.Unauthorized("only admins may remove applications", nil)
	}

	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return store.Translate(err, "application "+id)
	}

	removed, err := s.store.DeletePaymentsByCandidate(ctx, id)
	if err != nil {
		span.RecordError(err)
		return store.Translate(err, "payments")
	}
	if err := s.store.DeleteApplication(ctx, id); err != nil {
		span.RecordError(err)
		return store.Translate(err, "application "+id)
	}
	s.views.Invalidate(ctx, app.JobID)

	s.logger.Info("application removed",
		zap.String("application_id", id),
		zap.Int("payments_removed", removed),
		zap.String("actor", actor.Email))
	return nil
}
