package ledger

import (
	"staffing/internal/models"

	"github.com/shopspring/decimal"
)

// Aggregate derives the cached payment fields of an application from its full
// payment set.
func Aggregate(payments []*models.Payment) models.Aggregate {
	return models.AggregatePayments(payments)
}

type Summary struct {
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	TotalCount      int             `json:"totalCount"`
	CompletedAmount decimal.Decimal `json:"completedAmount"`
	CompletedCount  int             `json:"completedCount"`
	PendingAmount   decimal.Decimal `json:"pendingAmount"`
	PendingCount    int             `json:"pendingCount"`
}

func Summarize(payments []*models.Payment) Summary {
	s := Summary{
		TotalAmount:     decimal.Zero,
		CompletedAmount: decimal.Zero,
		PendingAmount:   decimal.Zero,
	}
	for _, p := range payments {
		s.TotalAmount = s.TotalAmount.Add(p.Amount)
		s.TotalCount++
		switch p.Status {
		case models.TransactionCompleted:
			s.CompletedAmount = s.CompletedAmount.Add(p.Amount)
			s.CompletedCount++
		case models.TransactionPending:
			s.PendingAmount = s.PendingAmount.Add(p.Amount)
			s.PendingCount++
		}
	}
	return s
}
