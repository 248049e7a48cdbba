package events

import (
	"encoding/json"
	"time"

	"finance-tracker/internal/models"
)

// Routing keys.
const (
	KeyTransactionRecorded = "transaction.recorded"
	KeyBudgetSet           = "budget.set"
)

// TransactionRecorded is published after a journal entry and its ledger update commit.
type TransactionRecorded struct {
	Transaction models.Transaction `json:"transaction"`
	// CategoryBalance is the balance of the transaction's category after the update.
	CategoryBalance float64   `json:"categoryBalance"`
	Timestamp       time.Time `json:"timestamp"`
}

// BudgetSet is published after a category limit is overwritten.
type BudgetSet struct {
	Username  string    `json:"username"`
	Category  string    `json:"category"`
	Limit     float64   `json:"limit"`
	Timestamp time.Time `json:"timestamp"`
}

// RoutingKey implements Event.
func (TransactionRecorded) RoutingKey() string { return KeyTransactionRecorded }

// RoutingKey implements Event.
func (BudgetSet) RoutingKey() string { return KeyBudgetSet }

// Event is anything the publisher can route.
type Event interface {
	RoutingKey() string
}

func encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}
