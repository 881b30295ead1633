// Package storetest holds the behaviour checks every Record Store
// implementation has to pass.
package storetest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"staffing/internal/models"
	"staffing/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApplication(email, jobID string, submitted time.Time) *models.Application {
	return &models.Application{
		ID:            uuid.NewString(),
		Candidate:     models.Candidate{Name: "Ada", Email: email},
		JobID:         jobID,
		SubmittedAt:   submitted,
		Status:        models.StatusApplied,
		PaymentStatus: models.PaymentStatusPending,
		TotalPayments: decimal.Zero,
		UpdatedAt:     submitted,
	}
}

// Run exercises st. Each sub-test uses fresh job ids and emails so a shared
// database does not need truncating between runs.
func Run(t *testing.T, st store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("create and get", func(t *testing.T) {
		app := newApplication("get-"+uuid.NewString()+"@example.com", uuid.NewString(), now)
		require.NoError(t, st.CreateApplication(ctx, app))

		got, err := st.GetApplication(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, app.JobID, got.JobID)
		assert.Equal(t, models.StatusApplied, got.Status)
		assert.True(t, got.TotalPayments.IsZero())

		_, err = st.GetApplication(ctx, uuid.NewString())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate active application", func(t *testing.T) {
		email := "dup-" + uuid.NewString() + "@example.com"
		jobID := uuid.NewString()
		first := newApplication(email, jobID, now)
		require.NoError(t, st.CreateApplication(ctx, first))

		second := newApplication(strings.ToUpper(email), jobID, now)
		assert.ErrorIs(t, st.CreateApplication(ctx, second), store.ErrDuplicate)

		withdrawn := *first
		withdrawn.Status = models.StatusWithdrawn
		require.NoError(t, st.UpdateApplicationTransition(ctx, &withdrawn, models.StatusApplied))
		assert.NoError(t, st.CreateApplication(ctx, second))
	})

	t.Run("concurrent creates admit one", func(t *testing.T) {
		email := "race-" + uuid.NewString() + "@example.com"
		jobID := uuid.NewString()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := st.CreateApplication(ctx, newApplication(email, jobID, now)); err == nil {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, created)
	})

	t.Run("conditional transition", func(t *testing.T) {
		app := newApplication("cas-"+uuid.NewString()+"@example.com", uuid.NewString(), now)
		require.NoError(t, st.CreateApplication(ctx, app))

		next := *app
		next.Status = models.StatusInterviewScheduled
		next.Interview = &models.InterviewSchedule{Date: "2026-11-02", Time: "10:00", Interviewer: "Grace"}
		require.NoError(t, st.UpdateApplicationTransition(ctx, &next, models.StatusApplied))

		stale := *app
		stale.Status = models.StatusRejected
		assert.ErrorIs(t, st.UpdateApplicationTransition(ctx, &stale, models.StatusApplied), store.ErrStaleStatus)

		got, err := st.GetApplication(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInterviewScheduled, got.Status)
		require.NotNil(t, got.Interview)
		assert.Equal(t, "Grace", got.Interview.Interviewer)

		missing := newApplication("x@example.com", "j", now)
		assert.ErrorIs(t, st.UpdateApplicationTransition(ctx, missing, models.StatusApplied), store.ErrNotFound)
	})

	t.Run("payment aggregate recomputed from ledger", func(t *testing.T) {
		app := newApplication("agg-"+uuid.NewString()+"@example.com", uuid.NewString(), now)
		require.NoError(t, st.CreateApplication(ctx, app))

		empty, err := st.RecomputePaymentAggregate(ctx, app.ID, nil)
		require.NoError(t, err)
		assert.True(t, empty.TotalPayments.IsZero())
		assert.Equal(t, models.PaymentStatusPending, empty.PaymentStatus)
		assert.Nil(t, empty.LastPaymentDate)

		last := now.Add(time.Hour)
		for i, p := range []struct {
			amount string
			status models.TransactionStatus
			at     time.Time
		}{
			{"500", models.TransactionCompleted, now},
			{"300", models.TransactionPending, last},
		} {
			require.NoError(t, st.AppendPayment(ctx, &models.Payment{
				ID:            uuid.NewString(),
				CandidateID:   app.ID,
				JobID:         app.JobID,
				Amount:        decimal.RequireFromString(p.amount),
				Status:        p.status,
				TransactionID: uuid.NewString(),
				ClientEmail:   "client@example.com",
				CreatedAt:     p.at,
			}), i)
		}

		task := "in-progress"
		agg, err := st.RecomputePaymentAggregate(ctx, app.ID, &task)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("800").Equal(agg.TotalPayments))
		assert.Equal(t, models.PaymentStatusPaid, agg.PaymentStatus)
		require.NotNil(t, agg.LastPaymentDate)
		assert.True(t, last.Equal(*agg.LastPaymentDate))

		got, err := st.GetApplication(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApplied, got.Status)
		assert.True(t, agg.TotalPayments.Equal(got.TotalPayments))
		assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
		assert.Equal(t, "in-progress", got.TaskStatus)
		require.NotNil(t, got.LastPaymentDate)
		assert.True(t, last.Equal(*got.LastPaymentDate))

		_, err = st.RecomputePaymentAggregate(ctx, uuid.NewString(), nil)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("concurrent appends and recomputes converge", func(t *testing.T) {
		app := newApplication("conv-"+uuid.NewString()+"@example.com", uuid.NewString(), now)
		require.NoError(t, st.CreateApplication(ctx, app))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, st.AppendPayment(ctx, &models.Payment{
					ID:            uuid.NewString(),
					CandidateID:   app.ID,
					JobID:         app.JobID,
					Amount:        decimal.NewFromInt(int64(i + 1)),
					Status:        models.TransactionCompleted,
					TransactionID: uuid.NewString(),
					ClientEmail:   "client@example.com",
					CreatedAt:     now.Add(time.Duration(i) * time.Second),
				}))
				_, err := st.RecomputePaymentAggregate(ctx, app.ID, nil)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := st.GetApplication(ctx, app.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(55).Equal(got.TotalPayments), got.TotalPayments.String())
	})

	t.Run("payments newest first and filtered", func(t *testing.T) {
		candidateID := uuid.NewString()
		jobID := uuid.NewString()
		for i, amount := range []string{"500", "300"} {
			require.NoError(t, st.AppendPayment(ctx, &models.Payment{
				ID:            uuid.NewString(),
				CandidateID:   candidateID,
				JobID:         jobID,
				Amount:        decimal.RequireFromString(amount),
				Status:        models.TransactionCompleted,
				TransactionID: uuid.NewString(),
				ClientEmail:   "Client@Example.com",
				CreatedAt:     now.Add(time.Duration(i) * time.Minute),
			}))
		}

		got, err := st.ListPayments(ctx, models.PaymentFilter{CandidateID: candidateID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, decimal.RequireFromString("300").Equal(got[0].Amount))

		byJob, err := st.ListPayments(ctx, models.PaymentFilter{JobID: jobID, ClientEmail: "client@example.com"})
		require.NoError(t, err)
		assert.Len(t, byJob, 2)

		removed, err := st.DeletePaymentsByCandidate(ctx, candidateID)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		got, err = st.ListPayments(ctx, models.PaymentFilter{CandidateID: candidateID})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("employee upsert merges by email", func(t *testing.T) {
		email := "emp-" + uuid.NewString() + "@example.com"
		create := &models.EmployeeRecord{
			ID:         uuid.NewString(),
			Email:      email,
			Name:       "Ada",
			Department: "Not assigned",
			Position:   "Not assigned",
			Status:     "Active",
			JoinDate:   now.Truncate(24 * time.Hour),
			Salary:     decimal.Zero,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		rec, err := st.UpsertEmployee(ctx, create, models.EmployeeUpdate{})
		require.NoError(t, err)
		assert.Equal(t, "Not assigned", rec.Department)

		dept := "Engineering"
		salary := decimal.RequireFromString("90000")
		again := *create
		again.ID = uuid.NewString()
		rec, err = st.UpsertEmployee(ctx, &again, models.EmployeeUpdate{ApplicationID: "app-1", Department: &dept, Salary: &salary})
		require.NoError(t, err)
		assert.Equal(t, create.ID, rec.ID)
		assert.Equal(t, "Engineering", rec.Department)
		assert.Equal(t, "app-1", rec.ApplicationID)
		assert.True(t, salary.Equal(rec.Salary))

		got, err := st.GetEmployeeByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, create.ID, got.ID)

		_, err = st.GetEmployeeByEmail(ctx, "nobody-"+uuid.NewString()+"@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ensure user inserts once", func(t *testing.T) {
		u := &models.User{ID: uuid.NewString(), Email: "admin-" + uuid.NewString() + "@example.com", Name: "Admin", Role: models.RoleAdmin, PasswordHash: "x"}
		created, err := st.EnsureUser(ctx, u)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = st.EnsureUser(ctx, u)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("delete application", func(t *testing.T) {
		app := newApplication("del-"+uuid.NewString()+"@example.com", uuid.NewString(), now)
		require.NoError(t, st.CreateApplication(ctx, app))
		require.NoError(t, st.DeleteApplication(ctx, app.ID))
		assert.ErrorIs(t, st.DeleteApplication(ctx, app.ID), store.ErrNotFound)
	})
}
