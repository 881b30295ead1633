package reconcile

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"staffing/internal/models"
	"staffing/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingLedger struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (l *recordingLedger) Recompute(ctx context.Context, candidateID string, taskStatus *string) (models.Aggregate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, candidateID)
	if l.fail[candidateID] {
		return models.Aggregate{}, stderrors.New("boom")
	}
	return models.Aggregate{}, nil
}

type recordingProvisioner struct {
	mu    sync.Mutex
	calls []string
	// skip lists applications whose candidate is not an employee.
	skip map[string]bool
}

func (p *recordingProvisioner) ProvisionByID(ctx context.Context, applicationID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, applicationID)
	return !p.skip[applicationID], nil
}

func seed(t *testing.T, st *memory.Store, id string, status models.Status, provisioned bool) {
	app := &models.Application{
		ID:        id,
		Candidate: models.Candidate{Email: id + "@example.com"},
		JobID:     "job-" + id,
		Status:    status,
	}
	if provisioned {
		at := time.Now()
		app.ProvisionedAt = &at
	}
	require.NoError(t, st.CreateApplication(context.Background(), app))
}

func TestRunOnceRepairsHiredApplications(t *testing.T) {
	st := memory.New()
	seed(t, st, "hired-new", models.StatusHired, false)
	seed(t, st, "hired-done", models.StatusHired, true)
	seed(t, st, "completed", models.StatusCompleted, false)
	seed(t, st, "resigned", models.StatusResigned, false)
	seed(t, st, "applied", models.StatusApplied, false)

	ledger := &recordingLedger{fail: map[string]bool{"resigned": true}}
	prov := &recordingProvisioner{}
	r := New(zaptest.NewLogger(t), st, ledger, prov, nil, "@every 1h", 2)

	stats, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Scanned)
	assert.Equal(t, 3, stats.Recomputed)
	assert.Equal(t, 1, stats.Provisioned)
	assert.Equal(t, 1, stats.Failed)
	assert.ElementsMatch(t, []string{"hired-new", "hired-done", "completed", "resigned"}, ledger.calls)
	assert.Equal(t, []string{"hired-new"}, prov.calls)
}

func TestRunOnceCountsOnlyWrittenRecords(t *testing.T) {
	st := memory.New()
	seed(t, st, "employee", models.StatusHired, false)
	seed(t, st, "vendor", models.StatusHired, false)

	prov := &recordingProvisioner{skip: map[string]bool{"vendor": true}}
	r := New(zaptest.NewLogger(t), st, &recordingLedger{}, prov, nil, "@every 1h", 2)

	for i := 0; i < 2; i++ {
		stats, err := r.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Provisioned)
		assert.Zero(t, stats.Failed)
	}
}

func TestRunOnceSkipsWhileActive(t *testing.T) {
	r := New(zaptest.NewLogger(t), memory.New(), &recordingLedger{}, &recordingProvisioner{}, nil, "@every 1h", 1)
	r.isActive = true

	stats, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	r := New(zaptest.NewLogger(t), memory.New(), &recordingLedger{}, &recordingProvisioner{}, nil, "every now and then", 1)
	assert.Error(t, r.Start())
}

func TestStartAndStop(t *testing.T) {
	r := New(zaptest.NewLogger(t), memory.New(), &recordingLedger{}, &recordingProvisioner{}, nil, "@every 1h", 1)
	require.NoError(t, r.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, r.Stop(ctx))
}
