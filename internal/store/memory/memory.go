// Package memory is a mutex-guarded, map-backed Record Store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"staffing/internal/errors"
	"staffing/internal/models"
	"staffing/internal/store"

	"github.com/google/uuid"
)

type Store struct {
	mu           sync.RWMutex
	applications map[string]*models.Application
	payments     []*models.Payment
	employees    map[string]*models.EmployeeRecord
	users        map[string]*models.User
	profiles     map[string]*models.Profile
	jobs         map[string]string
}

func New() *Store {
	return &Store{
		applications: make(map[string]*models.Application),
		employees:    make(map[string]*models.EmployeeRecord),
		users:        make(map[string]*models.User),
		profiles:     make(map[string]*models.Profile),
		jobs:         make(map[string]string),
	}
}

func cloneApplication(a *models.Application) *models.Application {
	c := *a
	if a.Interview != nil {
		iv := *a.Interview
		c.Interview = &iv
	}
	return &c
}

func (s *Store) CreateApplication(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := models.NormalizeEmail(app.Candidate.Email)
	for _, existing := range s.applications {
		if existing.Active() && existing.JobID == app.JobID && models.NormalizeEmail(existing.Candidate.Email) == email {
			return store.ErrDuplicate
		}
	}
	s.applications[app.ID] = cloneApplication(app)
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.applications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneApplication(app), nil
}

func (s *Store) listApplications(match func(*models.Application) bool) []*models.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Application
	for _, app := range s.applications {
		if match(app) {
			out = append(out, cloneApplication(app))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}

func (s *Store) ListApplicationsByCandidate(ctx context.Context, email string) ([]*models.Application, error) {
	email = models.NormalizeEmail(email)
	return s.listApplications(func(a *models.Application) bool {
		return models.NormalizeEmail(a.Candidate.Email) == email
	}), nil
}

func (s *Store) ListApplicationsByJobAndStatus(ctx context.Context, jobID string, status models.Status) ([]*models.Application, error) {
	return s.listApplications(func(a *models.Application) bool {
		return a.JobID == jobID && a.Status == status
	}), nil
}

func (s *Store) ListApplicationsByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Application, error) {
	return s.listApplications(func(a *models.Application) bool {
		for _, st := range statuses {
			if a.Status == st {
				return true
			}
		}
		return false
	}), nil
}

func (s *Store) UpdateApplicationTransition(ctx context.Context, app *models.Application, expected models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.applications[app.ID]
	if !ok {
		return store.ErrNotFound
	}
	if current.Status != expected {
		return store.ErrStaleStatus
	}

	next := cloneApplication(current)
	next.Status = app.Status
	next.JobStatus = app.JobStatus
	next.Interview = nil
	if app.Interview != nil {
		iv := *app.Interview
		next.Interview = &iv
	}
	next.ApprovalNotes = app.ApprovalNotes
	next.DecisionReason = app.DecisionReason
	next.OfferedSalary = app.OfferedSalary
	next.Department = app.Department
	next.StartDate = app.StartDate
	next.HiredAt = app.HiredAt
	next.UpdatedAt = app.UpdatedAt
	s.applications[app.ID] = next
	return nil
}

func (s *Store) RecomputePaymentAggregate(ctx context.Context, id string, taskStatus *string) (models.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.applications[id]
	if !ok {
		return models.Aggregate{}, store.ErrNotFound
	}

	var payments []*models.Payment
	for _, p := range s.payments {
		if p.CandidateID == id {
			payments = append(payments, p)
		}
	}
	agg := models.AggregatePayments(payments)

	app.TotalPayments = agg.TotalPayments
	app.PaymentStatus = agg.PaymentStatus
	app.LastPaymentDate = agg.LastPaymentDate
	if taskStatus != nil {
		app.TaskStatus = *taskStatus
	}
	return agg, nil
}

func (s *Store) MarkProvisioned(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.applications[id]
	if !ok {
		return store.ErrNotFound
	}
	app.ProvisionedAt = &at
	return nil
}

func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.applications[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.applications, id)
	return nil
}

func (s *Store) AppendPayment(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *p
	s.payments = append(s.payments, &c)
	return nil
}

func (s *Store) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Payment
	for i := len(s.payments) - 1; i >= 0; i-- {
		p := s.payments[i]
		if filter.CandidateID != "" && p.CandidateID != filter.CandidateID {
			continue
		}
		if filter.JobID != "" && p.JobID != filter.JobID {
			continue
		}
		if filter.ClientEmail != "" && models.NormalizeEmail(p.ClientEmail) != models.NormalizeEmail(filter.ClientEmail) {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	// Equal timestamps keep reverse insertion order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeletePaymentsByCandidate(ctx context.Context, candidateID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.payments[:0]
	removed := 0
	for _, p := range s.payments {
		if p.CandidateID == candidateID {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.payments = kept
	return removed, nil
}

func (s *Store) UpsertEmployee(ctx context.Context, create *models.EmployeeRecord, update models.EmployeeUpdate) (*models.EmployeeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NormalizeEmail(create.Email)
	existing, ok := s.employees[key]
	if !ok {
		c := *create
		s.employees[key] = &c
		out := c
		return &out, nil
	}

	if update.ApplicationID != "" {
		existing.ApplicationID = update.ApplicationID
	}
	if update.JobID != "" {
		existing.JobID = update.JobID
	}
	if update.HiredAt != nil {
		existing.HiredAt = update.HiredAt
	}
	if update.Department != nil {
		existing.Department = *update.Department
	}
	if update.Salary != nil {
		existing.Salary = *update.Salary
	}
	existing.UpdatedAt = create.UpdatedAt
	out := *existing
	return &out, nil
}

func (s *Store) GetEmployeeByEmail(ctx context.Context, email string) (*models.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.employees[models.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *rec
	return &out, nil
}

// EmployeeCount returns the number of stored employee records.
func (s *Store) EmployeeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.employees)
}

func (s *Store) EnsureUser(ctx context.Context, u *models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NormalizeEmail(u.Email)
	if _, ok := s.users[key]; ok {
		return false, nil
	}
	c := *u
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.users[key] = &c
	return true, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[models.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *u
	return &out, nil
}

// PutProfile seeds the profile lookup served by GetProfile.
func (s *Store) PutProfile(p *models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.profiles[models.NormalizeEmail(p.Email)] = &c
}

// GetProfile returns nil, nil when no profile is stored for email.
func (s *Store) GetProfile(ctx context.Context, email string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[models.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

// PutJob seeds the job status served by JobStatus, which makes Store usable
// as a jobs.Registry.
func (s *Store) PutJob(jobID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = status
}

func (s *Store) JobStatus(ctx context.Context, jobID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.jobs[jobID]
	if !ok {
		return "", errors.NotFound("job "+jobID+" not found", nil)
	}
	return status, nil
}

var _ store.Store = (*Store)(nil)
