package postgres

import (
	"context"
	"fmt"
	"strings"

	"staffing/internal/models"

	"github.com/shopspring/decimal"
)

func (s *Store) AppendPayment(ctx context.Context, p *models.Payment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payments (
			id, candidate_id, candidate_email, job_id, amount, description, method,
			status, transaction_id, client_email, created_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.CandidateID, p.CandidateEmail, p.JobID, p.Amount.StringFixed(2), p.Description,
		p.Method, p.Status, p.TransactionID, p.ClientEmail, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	var (
		conds []string
		args  []any
	)
	if filter.CandidateID != "" {
		args = append(args, filter.CandidateID)
		conds = append(conds, fmt.Sprintf("candidate_id = $%d", len(args)))
	}
	if filter.JobID != "" {
		args = append(args, filter.JobID)
		conds = append(conds, fmt.Sprintf("job_id = $%d", len(args)))
	}
	if filter.ClientEmail != "" {
		args = append(args, models.NormalizeEmail(filter.ClientEmail))
		conds = append(conds, fmt.Sprintf("lower(client_email) = $%d", len(args)))
	}
	where := "TRUE"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, candidate_id, candidate_email, job_id, amount::text, description, method,
			status, transaction_id, client_email, created_at
		FROM payments WHERE `+where+`
		ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		var (
			p      models.Payment
			amount string
		)
		if err := rows.Scan(&p.ID, &p.CandidateID, &p.CandidateEmail, &p.JobID, &amount, &p.Description,
			&p.Method, &p.Status, &p.TransactionID, &p.ClientEmail, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse payment amount: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *Store) DeletePaymentsByCandidate(ctx context.Context, candidateID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM payments WHERE candidate_id = $1`, candidateID)
	if err != nil {
		return 0, fmt.Errorf("delete payments: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
