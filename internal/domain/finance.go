package domain

import "time"

// TransactionKind separates money coming in from money going out.
type TransactionKind string

const (
	TransactionIncome  TransactionKind = "Income"
	TransactionExpense TransactionKind = "Expense"
)

// FinanceTransaction is a single booked finance movement. Amount is always
// positive; Kind carries the direction.
type FinanceTransaction struct {
	ID         string          `json:"id"`
	Kind       TransactionKind `json:"kind"`
	Category   string          `json:"category"`
	Amount     float64         `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}
