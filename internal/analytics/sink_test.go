package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"staffing/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingExecer struct {
	query string
	args  []any
	err   error
}

func (r *recordingExecer) Exec(ctx context.Context, query string, args ...any) error {
	r.query = query
	r.args = args
	return r.err
}

func TestClickHouseSinkRecordPayment(t *testing.T) {
	db := &recordingExecer{}
	sink := &ClickHouseSink{logger: zaptest.NewLogger(t), db: db}

	p := &models.Payment{
		ID:            "9f0c1c55-8d0d-4b55-a3f3-4fd1ae1d6c10",
		TransactionID: "txn-1",
		CandidateID:   "app-1",
		JobID:         "job-1",
		Amount:        decimal.RequireFromString("499.99"),
		Status:        models.TransactionCompleted,
		ClientEmail:   "client@corp.test",
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, sink.RecordPayment(context.Background(), p))

	assert.Contains(t, db.query, "INSERT INTO payment_events")
	require.Len(t, db.args, 11)
	assert.Equal(t, "txn-1", db.args[1])
	assert.True(t, p.Amount.Equal(db.args[6].(decimal.Decimal)))
	assert.Equal(t, "completed", db.args[8])
}

func TestClickHouseSinkWrapsErrors(t *testing.T) {
	db := &recordingExecer{err: errors.New("connection reset")}
	sink := &ClickHouseSink{logger: zaptest.NewLogger(t), db: db}

	err := sink.RecordPayment(context.Background(), &models.Payment{TransactionID: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert payment event")
}

func TestNopSink(t *testing.T) {
	assert.NoError(t, Nop().RecordPayment(context.Background(), &models.Payment{}))
}
