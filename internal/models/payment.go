package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the state of a single ledger row.
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionPending   TransactionStatus = "pending"
)

// Payment is an append-only ledger entry. CandidateID is the Application id.
type Payment struct {
	ID             string            `json:"id"`
	CandidateID    string            `json:"candidateId"`
	CandidateEmail string            `json:"candidateEmail"`
	JobID          string            `json:"jobId"`
	Amount         decimal.Decimal   `json:"amount"`
	Description    string            `json:"description"`
	Method         string            `json:"method"`
	Status         TransactionStatus `json:"status"`
	TransactionID  string            `json:"transactionId"`
	ClientEmail    string            `json:"clientEmail"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// PaymentFilter selects ledger rows; empty fields are ignored.
type PaymentFilter struct {
	CandidateID string
	JobID       string
	ClientEmail string
}

func (f PaymentFilter) Empty() bool {
	return f.CandidateID == "" && f.JobID == "" && f.ClientEmail == ""
}

// Aggregate is the derived payment summary cached on an Application.
type Aggregate struct {
	TotalPayments   decimal.Decimal
	PaymentStatus   PaymentStatus
	LastPaymentDate *time.Time
}

// AggregatePayments derives the cached payment fields of an application from
// its full payment set. Every store computes the aggregate with it.
func AggregatePayments(payments []*Payment) Aggregate {
	agg := Aggregate{
		TotalPayments: decimal.Zero,
		PaymentStatus: PaymentStatusPending,
	}

	var last time.Time
	for _, p := range payments {
		agg.TotalPayments = agg.TotalPayments.Add(p.Amount)
		if p.Status == TransactionCompleted {
			agg.PaymentStatus = PaymentStatusPaid
		}
		if p.CreatedAt.After(last) {
			last = p.CreatedAt
		}
	}
	if !last.IsZero() {
		agg.LastPaymentDate = &last
	}
	return agg
}
