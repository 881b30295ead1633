// Package store declares the Record Store contract shared by the Postgres
// implementation and the in-memory one used in tests and local runs.
//
// Implementations guarantee per-record atomicity only. Cross-record
// consistency is restored by re-running the idempotent steps built on top.
package store

import (
	"context"
	"errors"
	"time"

	domainerrors "staffing/internal/errors"
	"staffing/internal/models"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("active application already exists for candidate and job")
	ErrStaleStatus = errors.New("application status changed concurrently")
)

type ApplicationStore interface {
	// CreateApplication inserts app unless another active application for the
	// same (candidate email, job) exists, in which case ErrDuplicate is
	// returned. The check and the insert are one atomic step.
	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	ListApplicationsByCandidate(ctx context.Context, email string) ([]*models.Application, error)
	ListApplicationsByJobAndStatus(ctx context.Context, jobID string, status models.Status) ([]*models.Application, error)
	ListApplicationsByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Application, error)

	// UpdateApplicationTransition persists the lifecycle fields of app only if
	// the stored status still equals expected; otherwise ErrStaleStatus.
	UpdateApplicationTransition(ctx context.Context, app *models.Application, expected models.Status) error

	// RecomputePaymentAggregate derives the payment fields of application id
	// from its stored payments and writes them, and the task status when
	// taskStatus is non-nil, in one atomic step. The status column is never
	// touched. Concurrent calls serialise on the application, so the last
	// write always reflects every payment committed before it.
	RecomputePaymentAggregate(ctx context.Context, id string, taskStatus *string) (models.Aggregate, error)
	MarkProvisioned(ctx context.Context, id string, at time.Time) error
	DeleteApplication(ctx context.Context, id string) error
}

type PaymentStore interface {
	AppendPayment(ctx context.Context, p *models.Payment) error
	// ListPayments returns matching rows newest first.
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error)
	DeletePaymentsByCandidate(ctx context.Context, candidateID string) (int, error)
}

type EmployeeStore interface {
	// UpsertEmployee inserts create when no record exists for its email,
	// otherwise merges update into the existing record.
	UpsertEmployee(ctx context.Context, create *models.EmployeeRecord, update models.EmployeeUpdate) (*models.EmployeeRecord, error)
	GetEmployeeByEmail(ctx context.Context, email string) (*models.EmployeeRecord, error)
}

type UserStore interface {
	// EnsureUser inserts u if no user with that email exists and reports
	// whether it did.
	EnsureUser(ctx context.Context, u *models.User) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type Store interface {
	ApplicationStore
	PaymentStore
	EmployeeStore
	UserStore
}

// Translate turns a store error into the DomainError callers see. what names
// the record for NOT_FOUND messages.
func Translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return domainerrors.NotFound(what+" not found", err)
	case errors.Is(err, ErrDuplicate):
		return domainerrors.Conflict("active application already exists", err).WithCode(domainerrors.CodeDuplicateApplication)
	case errors.Is(err, ErrStaleStatus):
		return domainerrors.Conflict("application status changed concurrently", err).WithCode(domainerrors.CodeInvalidTransition)
	case domainerrors.As(err, new(*domainerrors.DomainError)):
		return err
	default:
		return domainerrors.Storage("record store failure", err)
	}
}
