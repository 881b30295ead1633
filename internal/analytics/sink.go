// Package analytics exports ledger rows to ClickHouse for reporting. Export is
// best effort; the record store remains the source of truth.
package analytics

import (
	"context"
	"fmt"

	"staffing/common/telemetry"
	"staffing/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("staffing/analytics")

type Sink interface {
	RecordPayment(ctx context.Context, payment *models.Payment) error
}

type execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

type ClickHouseSink struct {
	logger *zap.Logger
	db     execer
}

func NewClickHouseSink(logger *zap.Logger, db clickhouse.Conn) *ClickHouseSink {
	return &ClickHouseSink{logger: logger, db: db}
}

const insertPaymentEvent = `
	INSERT INTO payment_events (
		id, transaction_id, candidate_id, candidate_email, job_id,
		client_email, amount, method, status, description, created_at
	) VALUES (
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
	)
`

func (s *ClickHouseSink) RecordPayment(ctx context.Context, p *models.Payment) error {
	ctx, span := tracer.Start(ctx, "RecordPayment")
	defer span.End()
	span.SetAttributes(telemetry.String("payment.transaction_id", p.TransactionID))

	if err := s.db.Exec(ctx, insertPaymentEvent,
		p.ID,
		p.TransactionID,
		p.CandidateID,
		p.CandidateEmail,
		p.JobID,
		p.ClientEmail,
		p.Amount,
		p.Method,
		string(p.Status),
		p.Description,
		p.CreatedAt,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert payment event: %w", err)
	}

	s.logger.Debug("exported payment event", zap.String("transaction_id", p.TransactionID))
	return nil
}

type nopSink struct{}

// Nop discards every event; used when analytics is disabled.
func Nop() Sink {
	return nopSink{}
}

func (nopSink) RecordPayment(ctx context.Context, p *models.Payment) error {
	return nil
}
