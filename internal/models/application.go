package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusApplied            Status = "applied"
	StatusInterviewScheduled Status = "interview-scheduled"
	StatusApproved           Status = "approved"
	StatusRejected           Status = "rejected"
	StatusHired              Status = "hired"
	StatusCompleted          Status = "completed"
	StatusResigned           Status = "resigned"
	StatusWithdrawn          Status = "withdrawn"
)

// JobStatus tracks task progress of a hired candidate. Empty until hire.
type JobStatus string

const (
	JobStatusNone       JobStatus = ""
	JobStatusInProgress JobStatus = "in-progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusResigned   JobStatus = "resigned"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type Candidate struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type InterviewSchedule struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location,omitempty"`
	Interviewer string `json:"interviewer"`
}

type Application struct {
	ID          string    `json:"id"`
	Candidate   Candidate `json:"candidate"`
	JobID       string    `json:"jobId"`
	ResumeRef   string    `json:"resumeRef,omitempty"`
	CoverLetter string    `json:"coverLetter,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`

	Status    Status    `json:"status"`
	JobStatus JobStatus `json:"jobStatus,omitempty"`

	Interview      *InterviewSchedule `json:"interviewSchedule,omitempty"`
	ApprovalNotes  string             `json:"approvalNotes,omitempty"`
	DecisionReason string             `json:"decisionReason,omitempty"`

	OfferedSalary *decimal.Decimal `json:"offeredSalary,omitempty"`
	Department    string           `json:"department,omitempty"`
	StartDate     *time.Time       `json:"startDate,omitempty"`
	HiredAt       *time.Time       `json:"hiredAt,omitempty"`
	ProvisionedAt *time.Time       `json:"provisionedAt,omitempty"`

	TaskStatus      string          `json:"taskStatus,omitempty"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	TotalPayments   decimal.Decimal `json:"totalPayments"`
	LastPaymentDate *time.Time      `json:"lastPaymentDate"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Active reports whether the application occupies the (candidate, job) slot.
func (a *Application) Active() bool {
	return a.Status != StatusWithdrawn
}

// WasHired reports whether the application ever reached hired.
func (a *Application) WasHired() bool {
	switch a.Status {
	case StatusHired, StatusCompleted, StatusResigned:
		return true
	}
	return false
}

// NormalizeEmail is the canonical form used for the uniqueness key and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
