// Package provisioning materializes the internal employee record of a hired
// candidate. Every entry point is an idempotent upsert keyed by email, so a
// request can be replayed from the durable hired Application at any time.
package provisioning

import (
	"context"
	"time"

	"staffing/common/telemetry"
	"staffing/internal/errors"
	"staffing/internal/metrics"
	"staffing/internal/models"
	"staffing/internal/profiles"
	"staffing/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("staffing/provisioning")

const (
	DefaultDepartment = "Not assigned"
	DefaultPosition   = "Not assigned"
	DefaultStatus     = "Active"
)

var employeeNamespace = uuid.MustParse("5b1c7f0e-3a52-4c2e-9a0e-6f3e2d8c4b17")

// EmployeeID derives the employee id from the email so concurrent inserts
// for one person collide on the same key.
func EmployeeID(email string) string {
	return uuid.NewSHA1(employeeNamespace, []byte(models.NormalizeEmail(email))).String()
}

type Service struct {
	logger   *zap.Logger
	store    store.Store
	profiles profiles.Store
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(logger *zap.Logger, st store.Store, ps profiles.Store, m *metrics.Metrics) *Service {
	return &Service{
		logger:   logger,
		store:    st,
		profiles: ps,
		metrics:  m,
		now:      time.Now,
	}
}

// Provision upserts the employee record for app. A new record starts from
// defaults overlaid with the hire fields; an existing one only receives the
// hire fields.
func (s *Service) Provision(ctx context.Context, app *models.Application) (*models.EmployeeRecord, error) {
	ctx, span := tracer.Start(ctx, "Provision")
	defer span.End()

	if app == nil || app.Candidate.Email == "" {
		return nil, errors.Validation("application with candidate email is required", nil).WithCode(errors.CodeMissingFields)
	}
	span.SetAttributes(
		telemetry.String("application.id", app.ID),
		telemetry.String("candidate.email", app.Candidate.Email),
	)

	profile, err := s.profiles.GetProfile(ctx, app.Candidate.Email)
	if err != nil {
		span.RecordError(err)
		s.metrics.Provisioning("failed")
		return nil, store.Translate(err, "profile")
	}

	result := "merged"
	if _, err := s.store.GetEmployeeByEmail(ctx, app.Candidate.Email); errors.Is(err, store.ErrNotFound) {
		result = "created"
	}

	now := s.now().UTC()
	update := updateFrom(app)
	create := newRecord(app, profile, update, now)

	rec, err := s.store.UpsertEmployee(ctx, create, update)
	if err != nil {
		span.RecordError(err)
		s.metrics.Provisioning("failed")
		return nil, store.Translate(err, "employee record")
	}

	s.metrics.Provisioning(result)
	span.SetAttributes(telemetry.String("provisioning.result", result))

	s.logger.Info("provisioned employee record",
		zap.String("employee_id", rec.ID),
		zap.String("application_id", app.ID),
		zap.String("result", result))

	return rec, nil
}

func updateFrom(app *models.Application) models.EmployeeUpdate {
	update := models.EmployeeUpdate{
		ApplicationID: app.ID,
		JobID:         app.JobID,
		HiredAt:       app.HiredAt,
		Salary:        app.OfferedSalary,
	}
	if app.Department != "" {
		dept := app.Department
		update.Department = &dept
	}
	return update
}

func newRecord(app *models.Application, profile *models.Profile, update models.EmployeeUpdate, now time.Time) *models.EmployeeRecord {
	name := app.Candidate.Name
	if name == "" && profile != nil {
		name = profile.Name
	}

	rec := &models.EmployeeRecord{
		ID:            EmployeeID(app.Candidate.Email),
		Email:         models.NormalizeEmail(app.Candidate.Email),
		Name:          name,
		Phone:         app.Candidate.Phone,
		Department:    DefaultDepartment,
		Position:      DefaultPosition,
		Status:        DefaultStatus,
		JoinDate:      time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Salary:        decimal.Zero,
		ApplicationID: update.ApplicationID,
		JobID:         update.JobID,
		HiredAt:       update.HiredAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if update.Department != nil {
		rec.Department = *update.Department
	}
	if update.Salary != nil {
		rec.Salary = *update.Salary
	}
	return rec
}

// Eligible reports whether the candidate behind app is an internal employee.
func (s *Service) Eligible(ctx context.Context, app *models.Application) (bool, error) {
	userType, err := profiles.UserType(ctx, s.profiles, app.Candidate.Email)
	if err != nil {
		return false, store.Translate(err, "profile")
	}
	return userType == models.UserTypeEmployee, nil
}

// ProvisionHired provisions app when its candidate is an employee and records
// the success on the application. It reports whether a record was written.
func (s *Service) ProvisionHired(ctx context.Context, app *models.Application) (bool, error) {
	eligible, err := s.Eligible(ctx, app)
	if err != nil {
		return false, err
	}
	if !eligible {
		s.logger.Debug("skipping provisioning for non-employee candidate",
			zap.String("application_id", app.ID))
		return false, nil
	}

	if _, err := s.Provision(ctx, app); err != nil {
		return false, err
	}

	at := s.now().UTC()
	if err := s.store.MarkProvisioned(ctx, app.ID, at); err != nil {
		return true, store.Translate(err, "application")
	}
	app.ProvisionedAt = &at
	return true, nil
}

// ProvisionByID replays provisioning from a stored application and reports
// whether an employee record was written. Applications already provisioned
// and candidates who are not employees are left alone.
func (s *Service) ProvisionByID(ctx context.Context, applicationID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "ProvisionByID")
	defer span.End()
	span.SetAttributes(telemetry.String("application.id", applicationID))

	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		span.RecordError(err)
		return false, store.Translate(err, "application")
	}
	if !app.WasHired() {
		return false, errors.Precondition("application "+applicationID+" was never hired", nil).WithCode(errors.CodeCandidateNotHired)
	}
	if app.ProvisionedAt != nil {
		return false, nil
	}

	written, err := s.ProvisionHired(ctx, app)
	if err != nil {
		span.RecordError(err)
	}
	return written, err
}
