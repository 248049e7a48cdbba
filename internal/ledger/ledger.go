// Package ledger holds the per-user running totals and category balances
// and the rules that gate expenses against them.
//
// A category balance means "budget limit" until the first transaction touches
// it and "remaining (or accrued) balance" afterwards. SetBudget replaces the
// value while transactions accumulate onto it. A category that has never been
// referenced is unconstrained.
package ledger

import (
	"errors"
	"fmt"
	"maps"
	"math"

	"finance-tracker/internal/models"
)

var (
	// ErrBudgetExceeded matches any *BudgetExceededError.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrOutOfRange means a transaction would push a total or balance past
	// the representable range.
	ErrOutOfRange = errors.New("amount out of range")
)

// BudgetExceededError reports an expense that would drive a category below zero.
type BudgetExceededError struct {
	Category string
	// Remaining is the category balance before the rejected expense.
	Remaining float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded for category %q: remaining %.2f", e.Category, e.Remaining)
}

func (e *BudgetExceededError) Unwrap() error {
	return ErrBudgetExceeded
}

// Ledger is the financial record of a single user.
type Ledger struct {
	Username     string             `json:"username"`
	TotalIncome  float64            `json:"totalIncome"`
	TotalExpense float64            `json:"totalExpense"`
	Categories   map[string]float64 `json:"categoryBalance"`
}

// New returns an empty ledger for username.
func New(username string) *Ledger {
	return &Ledger{
		Username:   username,
		Categories: make(map[string]float64),
	}
}

// Report is the aggregate view returned to callers.
type Report struct {
	TotalIncome     float64            `json:"totalIncome"`
	TotalExpense    float64            `json:"totalExpense"`
	NetBalance      float64            `json:"netBalance"`
	CategorySummary map[string]float64 `json:"categorySummary"`
}

// CheckExpense decides whether a transaction may be recorded. Only expenses
// against a category that already has a balance are constrained. It never
// mutates the ledger.
func (l *Ledger) CheckExpense(category string, typ models.TransactionType, amount float64) error {
	if typ != models.Expense {
		return nil
	}
	balance, ok := l.Categories[category]
	if !ok {
		return nil
	}
	if balance-amount < 0 {
		return &BudgetExceededError{Category: category, Remaining: balance}
	}
	return nil
}

// CheckRange reports ErrOutOfRange when applying the transaction would leave
// a total or the category balance non-finite.
func (l *Ledger) CheckRange(category string, typ models.TransactionType, amount float64) error {
	balance := l.Categories[category]
	var total float64
	switch typ {
	case models.Income:
		total = l.TotalIncome + amount
		balance += amount
	case models.Expense:
		total = l.TotalExpense + amount
		balance -= amount
	}
	if math.IsInf(total, 0) || math.IsNaN(total) || math.IsInf(balance, 0) || math.IsNaN(balance) {
		return fmt.Errorf("%w: %s %g in category %q", ErrOutOfRange, typ, amount, category)
	}
	return nil
}

// Apply folds an accepted transaction into the totals and its category.
func (l *Ledger) Apply(category string, typ models.TransactionType, amount float64) {
	if l.Categories == nil {
		l.Categories = make(map[string]float64)
	}
	switch typ {
	case models.Income:
		l.TotalIncome += amount
		l.Categories[category] += amount
	case models.Expense:
		l.TotalExpense += amount
		l.Categories[category] -= amount
	}
}

// SetBudget overwrites the category balance with limit.
func (l *Ledger) SetBudget(category string, limit float64) {
	if l.Categories == nil {
		l.Categories = make(map[string]float64)
	}
	l.Categories[category] = limit
}

// Budget returns a copy of the raw category balances.
func (l *Ledger) Budget() map[string]float64 {
	out := make(map[string]float64, len(l.Categories))
	maps.Copy(out, l.Categories)
	return out
}

// Report snapshots the ledger.
func (l *Ledger) Report() Report {
	return Report{
		TotalIncome:     l.TotalIncome,
		TotalExpense:    l.TotalExpense,
		NetBalance:      l.TotalIncome - l.TotalExpense,
		CategorySummary: l.Budget(),
	}
}
