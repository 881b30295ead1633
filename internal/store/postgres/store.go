// Package postgres implements the Record Store on PostgreSQL through pgx.
//
// The (candidate, job) uniqueness invariant is a partial unique index, and
// transitions use UPDATE ... WHERE status = expected, so both races are
// settled by the database rather than by read-then-write in Go.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staffing/internal/models"
	"staffing/internal/store"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const applicationColumns = `
	id, candidate_name, candidate_email, candidate_phone, job_id, resume_ref, cover_letter,
	submitted_at, status, job_status, interview_date, interview_time, interview_location,
	interviewer, approval_notes, decision_reason, offered_salary::text, department, start_date,
	hired_at, provisioned_at, task_status, payment_status, total_payments::text,
	last_payment_date, updated_at`

func scanApplication(row pgx.Row) (*models.Application, error) {
	var (
		app                                       models.Application
		ivDate, ivTime, ivLocation, ivInterviewer *string
		offeredSalary                             *string
		totalPayments                             string
	)
	err := row.Scan(
		&app.ID, &app.Candidate.Name, &app.Candidate.Email, &app.Candidate.Phone, &app.JobID,
		&app.ResumeRef, &app.CoverLetter, &app.SubmittedAt, &app.Status, &app.JobStatus,
		&ivDate, &ivTime, &ivLocation, &ivInterviewer, &app.ApprovalNotes, &app.DecisionReason,
		&offeredSalary, &app.Department, &app.StartDate, &app.HiredAt, &app.ProvisionedAt,
		&app.TaskStatus, &app.PaymentStatus, &totalPayments, &app.LastPaymentDate, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ivDate != nil || ivTime != nil || ivInterviewer != nil {
		app.Interview = &models.InterviewSchedule{
			Date:        deref(ivDate),
			Time:        deref(ivTime),
			Location:    deref(ivLocation),
			Interviewer: deref(ivInterviewer),
		}
	}
	if offeredSalary != nil {
		d, err := decimal.NewFromString(*offeredSalary)
		if err != nil {
			return nil, fmt.Errorf("parse offered_salary: %w", err)
		}
		app.OfferedSalary = &d
	}
	app.TotalPayments, err = decimal.NewFromString(totalPayments)
	if err != nil {
		return nil, fmt.Errorf("parse total_payments: %w", err)
	}
	return &app, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func interviewArgs(iv *models.InterviewSchedule) (date, tm, location, interviewer *string) {
	if iv == nil {
		return nil, nil, nil, nil
	}
	return &iv.Date, &iv.Time, &iv.Location, &iv.Interviewer
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func (s *Store) CreateApplication(ctx context.Context, app *models.Application) error {
	ivDate, ivTime, ivLocation, ivInterviewer := interviewArgs(app.Interview)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO applications (
			id, candidate_name, candidate_email, candidate_phone, job_id, resume_ref, cover_letter,
			submitted_at, status, job_status, interview_date, interview_time, interview_location,
			interviewer, payment_status, total_payments, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16::numeric, $17)`,
		app.ID, app.Candidate.Name, app.Candidate.Email, app.Candidate.Phone, app.JobID,
		app.ResumeRef, app.CoverLetter, app.SubmittedAt, app.Status, app.JobStatus,
		ivDate, ivTime, ivLocation, ivInterviewer,
		app.PaymentStatus, app.TotalPayments.StringFixed(2), app.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "applications_active_candidate_job" {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select application: %w", err)
	}
	return app, nil
}

func (s *Store) queryApplications(ctx context.Context, where string, args ...any) ([]*models.Application, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+applicationColumns+` FROM applications WHERE `+where+` ORDER BY submitted_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func (s *Store) ListApplicationsByCandidate(ctx context.Context, email string) ([]*models.Application, error) {
	return s.queryApplications(ctx, `lower(candidate_email) = $1`, models.NormalizeEmail(email))
}

func (s *Store) ListApplicationsByJobAndStatus(ctx context.Context, jobID string, status models.Status) ([]*models.Application, error) {
	return s.queryApplications(ctx, `job_id = $1 AND status = $2`, jobID, status)
}

func (s *Store) ListApplicationsByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Application, error) {
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}
	return s.queryApplications(ctx, `status = ANY($1)`, values)
}

func (s *Store) UpdateApplicationTransition(ctx context.Context, app *models.Application, expected models.Status) error {
	ivDate, ivTime, ivLocation, ivInterviewer := interviewArgs(app.Interview)
	tag, err := s.pool.Exec(ctx, `
		UPDATE applications SET
			status = $3, job_status = $4,
			interview_date = $5, interview_time = $6, interview_location = $7, interviewer = $8,
			approval_notes = $9, decision_reason = $10, offered_salary = $11::numeric,
			department = $12, start_date = $13, hired_at = $14, updated_at = $15
		WHERE id = $1 AND status = $2`,
		app.ID, expected, app.Status, app.JobStatus,
		ivDate, ivTime, ivLocation, ivInterviewer,
		app.ApprovalNotes, app.DecisionReason, decimalArg(app.OfferedSalary),
		app.Department, app.StartDate, app.HiredAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return s.missingOrStale(ctx, app.ID)
}

func (s *Store) missingOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check application: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrStaleStatus
}

// RecomputePaymentAggregate locks the application row first. The UPDATE that
// follows takes its own snapshot, so it sums every payment committed before
// the lock was granted.
func (s *Store) RecomputePaymentAggregate(ctx context.Context, id string, taskStatus *string) (models.Aggregate, error) {
	var agg models.Aggregate
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var locked int
		err := tx.QueryRow(ctx, `SELECT 1 FROM applications WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock application: %w", err)
		}

		var total string
		err = tx.QueryRow(ctx, `
			UPDATE applications SET
				total_payments = (SELECT COALESCE(SUM(amount), 0) FROM payments WHERE candidate_id = $1),
				payment_status = CASE
					WHEN EXISTS (SELECT 1 FROM payments WHERE candidate_id = $1 AND status = $3) THEN $4
					ELSE $5
				END,
				last_payment_date = (SELECT MAX(created_at) FROM payments WHERE candidate_id = $1),
				task_status = COALESCE($2::text, task_status)
			WHERE id = $1
			RETURNING total_payments::text, payment_status, last_payment_date`,
			id, taskStatus, models.TransactionCompleted, models.PaymentStatusPaid, models.PaymentStatusPending,
		).Scan(&total, &agg.PaymentStatus, &agg.LastPaymentDate)
		if err != nil {
			return fmt.Errorf("update payment aggregate: %w", err)
		}
		if agg.TotalPayments, err = decimal.NewFromString(total); err != nil {
			return fmt.Errorf("parse total_payments: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Aggregate{}, err
	}
	return agg, nil
}

func (s *Store) MarkProvisioned(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE applications SET provisioned_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark provisioned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.Store = (*Store)(nil)
