package models

import "time"

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Transaction is an immutable journal entry.
type Transaction struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"date"`
}
