package postgres

import (
	"context"
	"errors"
	"fmt"

	"staffing/internal/models"
	"staffing/internal/store"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
)

const employeeColumns = `
	id, email, name, phone, department, position, status, join_date, salary::text,
	application_id, job_id, hired_at, created_at, updated_at`

func scanEmployee(row pgx.Row) (*models.EmployeeRecord, error) {
	var (
		rec    models.EmployeeRecord
		salary string
	)
	if err := row.Scan(&rec.ID, &rec.Email, &rec.Name, &rec.Phone, &rec.Department, &rec.Position,
		&rec.Status, &rec.JoinDate, &salary, &rec.ApplicationID, &rec.JobID, &rec.HiredAt,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if rec.Salary, err = decimal.NewFromString(salary); err != nil {
		return nil, fmt.Errorf("parse salary: %w", err)
	}
	return &rec, nil
}

// UpsertEmployee relies on the unique email column: a concurrent second
// insert for the same person turns into the merge branch instead of a duplicate.
func (s *Store) UpsertEmployee(ctx context.Context, create *models.EmployeeRecord, update models.EmployeeUpdate) (*models.EmployeeRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO employee_records (
			id, email, name, phone, department, position, status, join_date, salary,
			application_id, job_id, hired_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12, $13, $14)
		ON CONFLICT (email) DO UPDATE SET
			application_id = COALESCE(NULLIF($15::text, ''), employee_records.application_id),
			job_id = COALESCE(NULLIF($16::text, ''), employee_records.job_id),
			hired_at = COALESCE($17::timestamptz, employee_records.hired_at),
			department = COALESCE($18::text, employee_records.department),
			salary = COALESCE($19::numeric, employee_records.salary),
			updated_at = EXCLUDED.updated_at
		RETURNING `+employeeColumns,
		create.ID, models.NormalizeEmail(create.Email), create.Name, create.Phone, create.Department,
		create.Position, create.Status, create.JoinDate, create.Salary.StringFixed(2),
		create.ApplicationID, create.JobID, create.HiredAt, create.CreatedAt, create.UpdatedAt,
		update.ApplicationID, update.JobID, update.HiredAt, update.Department, decimalArg(update.Salary),
	)
	rec, err := scanEmployee(row)
	if err != nil {
		return nil, fmt.Errorf("upsert employee: %w", err)
	}
	return rec, nil
}

func (s *Store) GetEmployeeByEmail(ctx context.Context, email string) (*models.EmployeeRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employee_records WHERE email = $1`, models.NormalizeEmail(email))
	rec, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select employee: %w", err)
	}
	return rec, nil
}

func (s *Store) EnsureUser(ctx context.Context, u *models.User) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, role, user_type, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO NOTHING`,
		u.ID, models.NormalizeEmail(u.Email), u.Name, u.Role, u.UserType, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, name, role, user_type, password_hash, created_at
		FROM users WHERE email = $1`, models.NormalizeEmail(email)).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.UserType, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}
