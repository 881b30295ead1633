package registry

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"staffing/internal/errors"
	"staffing/internal/events"
	"staffing/internal/models"
	"staffing/internal/provisioning"
	"staffing/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	staff     = Actor{Email: "staff@agency.test", Role: models.RoleStaff}
	admin     = Actor{Email: "admin@agency.test", Role: models.RoleAdmin}
	client    = Actor{Email: "client@corp.test", Role: models.RoleClient}
	candidate = Actor{Email: "ada@example.com", Role: models.RoleCandidate}
)

type invalidations struct {
	mu   sync.Mutex
	jobs []string
}

func (i *invalidations) Invalidate(ctx context.Context, jobID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.jobs = append(i.jobs, jobID)
}

type failingProvisioner struct{}

func (failingProvisioner) ProvisionHired(ctx context.Context, app *models.Application) (bool, error) {
	return false, errors.Storage("employee store down", stderrors.New("connection refused"))
}

type fixture struct {
	svc       *Service
	store     *memory.Store
	publisher *events.Recorder
	views     *invalidations
}

func newFixture(t *testing.T) *fixture {
	st := memory.New()
	st.PutJob("job-1", "open")
	st.PutJob("job-closed", "completed")

	logger := zaptest.NewLogger(t)
	pub := events.NewRecorder()
	views := &invalidations{}
	prov := provisioning.New(logger, st, st, nil)

	svc := New(logger, st, st, prov, pub, views, nil)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, store: st, publisher: pub, views: views}
}

func (f *fixture) submit(t *testing.T, email, jobID string) *models.Application {
	t.Helper()
	app, err := f.svc.Submit(context.Background(), SubmitRequest{
		Candidate: models.Candidate{Name: "Ada Lovelace", Email: email},
		JobID:     jobID,
		ResumeRef: "resumes/ada.pdf",
	})
	require.NoError(t, err)
	return app
}

func (f *fixture) move(t *testing.T, id string, actor Actor, target models.Status, p Payload) *models.Application {
	t.Helper()
	app, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: id, Actor: actor, Target: target, Payload: p})
	require.NoError(t, err)
	return app
}

var interview = Payload{Interview: &models.InterviewSchedule{Date: "2026-05-04", Time: "10:00", Interviewer: "Grace"}}

func TestSubmit(t *testing.T) {
	f := newFixture(t)

	app := f.submit(t, "Ada@Example.com", "job-1")

	assert.NotEmpty(t, app.ID)
	assert.Equal(t, models.StatusApplied, app.Status)
	assert.Equal(t, models.PaymentStatusPending, app.PaymentStatus)
	assert.True(t, app.TotalPayments.IsZero())
	assert.Equal(t, "ada@example.com", app.Candidate.Email)

	stored, err := f.store.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, stored.ID)
}

func TestSubmitDuplicate(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "ada@example.com", "job-1")

	_, err := f.svc.Submit(context.Background(), SubmitRequest{
		Candidate: models.Candidate{Name: "Ada", Email: "ADA@example.com"},
		JobID:     "job-1",
	})

	assert.True(t, errors.IsCode(err, errors.CodeDuplicateApplication))
	assert.True(t, errors.IsType(err, errors.ErrTypeConflict))

	apps, err := f.store.ListApplicationsByCandidate(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestSubmitAfterWithdrawal(t *testing.T) {
	f := newFixture(t)
	first := f.submit(t, "ada@example.com", "job-1")
	f.move(t, first.ID, candidate, models.StatusWithdrawn, Payload{Reason: "changed my mind"})

	second := f.submit(t, "ada@example.com", "job-1")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSubmitConcurrentYieldsOneApplication(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Submit(context.Background(), SubmitRequest{
				Candidate: models.Candidate{Name: "Ada", Email: "ada@example.com"},
				JobID:     "job-1",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.IsCode(err, errors.CodeDuplicateApplication))
	}
	assert.Equal(t, 1, ok)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  SubmitRequest
		code errors.Code
		typ  errors.ErrorType
	}{
		{"missing email", SubmitRequest{Candidate: models.Candidate{Name: "Ada"}, JobID: "job-1"}, errors.CodeMissingFields, errors.ErrTypeValidation},
		{"missing job", SubmitRequest{Candidate: models.Candidate{Name: "Ada", Email: "a@b.co"}}, errors.CodeMissingFields, errors.ErrTypeValidation},
		{"malformed email", SubmitRequest{Candidate: models.Candidate{Name: "Ada", Email: "nope"}, JobID: "job-1"}, errors.CodeNone, errors.ErrTypeValidation},
		{"closed job", SubmitRequest{Candidate: models.Candidate{Name: "Ada", Email: "a@b.co"}, JobID: "job-closed"}, errors.CodeJobClosed, errors.ErrTypePrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.typ, errors.TypeOf(err))
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestSubmitUnknownJobIsAccepted(t *testing.T) {
	f := newFixture(t)
	app := f.submit(t, "ada@example.com", "job-elsewhere")
	assert.Equal(t, models.StatusApplied, app.Status)
}

func TestInterviewThenHireScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.submit(t, "ada@example.com", "job-1")

	scheduled := f.move(t, app.ID, client, models.StatusInterviewScheduled, interview)
	require.NotNil(t, scheduled.Interview)
	assert.Equal(t, "Grace", scheduled.Interview.Interviewer)

	stored, err := f.store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInterviewScheduled, stored.Status)
	assert.Equal(t, "2026-05-04", stored.Interview.Date)
	assert.Equal(t, "10:00", stored.Interview.Time)

	_, err = f.svc.Transition(ctx, TransitionRequest{ApplicationID: app.ID, Actor: staff, Target: models.StatusHired})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidTransition))

	stored, err = f.store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInterviewScheduled, stored.Status)
}

func TestAppliedToHiredIsInvalid(t *testing.T) {
	f := newFixture(t)
	app := f.submit(t, "ada@example.com", "job-1")

	_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Actor: staff, Target: models.StatusHired})

	assert.True(t, errors.IsCode(err, errors.CodeInvalidTransition))
	stored, err := f.store.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, stored.Status)
	assert.Empty(t, f.publisher.TransitionEvents())
}

func TestTransitionMissingInterviewPayload(t *testing.T) {
	f := newFixture(t)
	app := f.submit(t, "ada@example.com", "job-1")

	for _, p := range []Payload{
		{},
		{Interview: &models.InterviewSchedule{Date: "2026-05-04", Time: "10:00"}},
		{Interview: &models.InterviewSchedule{Date: "2026-05-04", Interviewer: "Grace"}},
	} {
		_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Actor: staff, Target: models.StatusInterviewScheduled, Payload: p})
		assert.True(t, errors.IsCode(err, errors.CodeMissingPayload))
	}

	stored, err := f.store.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, stored.Status)
}

func TestTransitionUnknownApplication(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: "nope", Actor: staff, Target: models.StatusApproved})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestTransitionRolePolicy(t *testing.T) {
	f := newFixture(t)
	app := f.submit(t, "ada@example.com", "job-1")

	tests := []struct {
		name   string
		actor  Actor
		target models.Status
	}{
		{"candidate cannot approve", candidate, models.StatusApproved},
		{"other candidate cannot withdraw", Actor{Email: "eve@example.com", Role: models.RoleCandidate}, models.StatusWithdrawn},
		{"client cannot withdraw", client, models.StatusWithdrawn},
		{"anonymous", Actor{}, models.StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Actor: tt.actor, Target: tt.target})
			assert.True(t, errors.IsType(err, errors.ErrTypeUnauthorized))
		})
	}
}

func TestTerminalStatesStayTerminal(t *testing.T) {
	f := newFixture(t)
	app := f.submit(t, "ada@example.com", "job-1")
	f.move(t, app.ID, client, models.StatusRejected, Payload{Reason: "not a fit"})

	for _, target := range allStatuses {
		_, err := f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Actor: admin, Target: target})
		assert.True(t, errors.IsCode(err, errors.CodeInvalidTransition), string(target))
	}
}

func TestHireSetsTaskProgressAndProvisionsEmployee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutProfile(&models.Profile{Email: "ada@example.com", UserType: models.UserTypeEmployee})

	app := f.submit(t, "ada@example.com", "job-1")
	f.move(t, app.ID, client, models.StatusApproved, Payload{Notes: "strong"})

	salary := decimal.RequireFromString("5000")
	hired := f.move(t, app.ID, staff, models.StatusHired, Payload{OfferedSalary: &salary, Department: "Engineering"})

	assert.Equal(t, models.StatusHired, hired.Status)
	assert.Equal(t, models.JobStatusInProgress, hired.JobStatus)
	require.NotNil(t, hired.HiredAt)
	require.NotNil(t, hired.ProvisionedAt)
	assert.Equal(t, "strong", hired.ApprovalNotes)

	rec, err := f.store.GetEmployeeByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Engineering", rec.Department)
	assert.True(t, salary.Equal(rec.Salary))

	done := f.move(t, app.ID, staff, models.StatusCompleted, Payload{})
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.Equal(t, models.JobStatusCompleted, done.JobStatus)

	evts := f.publisher.TransitionEvents()
	require.Len(t, evts, 3)
	assert.Equal(t, models.StatusHired, evts[1].To)
	assert.Equal(t, []string{"job-1", "job-1", "job-1"}, f.views.jobs)
}

func TestHireSkipsProvisioningForNonEmployees(t *testing.T) {
	f := newFixture(t)
	app := f.submit(t, "ada@example.com", "job-1")
	f.move(t, app.ID, staff, models.StatusApproved, Payload{})
	hired := f.move(t, app.ID, staff, models.StatusHired, Payload{})

	assert.Nil(t, hired.ProvisionedAt)
	assert.Zero(t, f.store.EmployeeCount())
	assert.Empty(t, f.publisher.ProvisionRequests())
}

func TestHireSucceedsWhenProvisioningFails(t *testing.T) {
	f := newFixture(t)
	f.svc.provisioner = failingProvisioner{}

	app := f.submit(t, "ada@example.com", "job-1")
	f.move(t, app.ID, staff, models.StatusApproved, Payload{})
	hired := f.move(t, app.ID, staff, models.StatusHired, Payload{})

	assert.Equal(t, models.StatusHired, hired.Status)
	reqs := f.publisher.ProvisionRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, app.ID, reqs[0].ApplicationID)
}

func TestTransitionPublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.publisher.Err = stderrors.New("nats down")
	app := f.submit(t, "ada@example.com", "job-1")

	moved := f.move(t, app.ID, staff, models.StatusApproved, Payload{})
	assert.Equal(t, models.StatusApproved, moved.Status)
}

func TestConcurrentDecisionsApplyOnce(t *testing.T) {
	f := newFixture(t)
	app := f.submit(t, "ada@example.com", "job-1")

	targets := []models.Status{models.StatusApproved, models.StatusRejected, models.StatusApproved, models.StatusRejected}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target models.Status) {
			defer wg.Done()
			_, errs[i] = f.svc.Transition(context.Background(), TransitionRequest{ApplicationID: app.ID, Actor: staff, Target: target})
		}(i, target)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.IsCode(err, errors.CodeInvalidTransition))
	}
	assert.Equal(t, 1, ok)
}

func TestCategorizeService(t *testing.T) {
	f := newFixture(t)
	f.store.PutJob("job-2", "open")
	a := f.submit(t, "ada@example.com", "job-1")
	b := f.submit(t, "ada@example.com", "job-2")
	f.move(t, b.ID, staff, models.StatusInterviewScheduled, interview)

	cats, err := f.svc.Categorize(context.Background(), "ADA@example.com")
	require.NoError(t, err)

	assert.Len(t, cats.Applied, 2)
	require.Len(t, cats.InterviewScheduled, 1)
	assert.Equal(t, b.ID, cats.InterviewScheduled[0].ID)
	require.Len(t, cats.PendingReview, 1)
	assert.Equal(t, a.ID, cats.PendingReview[0].ID)

	_, err = f.svc.Categorize(context.Background(), " ")
	assert.True(t, errors.IsCode(err, errors.CodeMissingFields))
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.submit(t, "ada@example.com", "job-1")
	require.NoError(t, f.store.AppendPayment(ctx, &models.Payment{
		ID: "p1", CandidateID: app.ID, JobID: "job-1", Amount: decimal.NewFromInt(10),
		Status: models.TransactionCompleted, TransactionID: "t1", CreatedAt: time.Now(),
	}))

	err := f.svc.Remove(ctx, app.ID, staff)
	assert.True(t, errors.IsType(err, errors.ErrTypeUnauthorized))

	require.NoError(t, f.svc.Remove(ctx, app.ID, admin))

	_, err = f.svc.Get(ctx, app.ID)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	payments, err := f.store.ListPayments(ctx, models.PaymentFilter{CandidateID: app.ID})
	require.NoError(t, err)
	assert.Empty(t, payments)

	err = f.svc.Remove(ctx, app.ID, admin)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}
