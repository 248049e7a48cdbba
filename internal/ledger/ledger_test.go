package ledger

import (
	"errors"
	"math"
	"testing"

	"finance-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLedgerIsEmpty(t *testing.T) {
	l := New("alice")
	assert.Equal(t, "alice", l.Username)
	assert.Zero(t, l.TotalIncome)
	assert.Zero(t, l.TotalExpense)
	assert.Empty(t, l.Categories)
}

func TestCheckExpense(t *testing.T) {
	tests := []struct {
		name      string
		balances  map[string]float64
		typ       models.TransactionType
		amount    float64
		wantErr   bool
		remaining float64
	}{
		{name: "unknown category is unconstrained", balances: nil, typ: models.Expense, amount: 1e9},
		{name: "within budget", balances: map[string]float64{"food": 50}, typ: models.Expense, amount: 30},
		{name: "exactly the budget", balances: map[string]float64{"food": 50}, typ: models.Expense, amount: 50},
		{name: "over budget", balances: map[string]float64{"food": 20}, typ: models.Expense, amount: 25, wantErr: true, remaining: 20},
		{name: "zero budget", balances: map[string]float64{"food": 0}, typ: models.Expense, amount: 0.01, wantErr: true, remaining: 0},
		{name: "negative balance", balances: map[string]float64{"food": -5}, typ: models.Expense, amount: 1, wantErr: true, remaining: -5},
		{name: "income is never gated", balances: map[string]float64{"food": -5}, typ: models.Income, amount: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New("alice")
			for k, v := range tt.balances {
				l.SetBudget(k, v)
			}
			before := l.Budget()

			err := l.CheckExpense("food", tt.typ, tt.amount)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrBudgetExceeded))
				var be *BudgetExceededError
				require.ErrorAs(t, err, &be)
				assert.Equal(t, "food", be.Category)
				assert.Equal(t, tt.remaining, be.Remaining)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, before, l.Budget(), "check must not mutate the ledger")
		})
	}
}

func TestApply(t *testing.T) {
	l := New("alice")

	l.Apply("groceries", models.Expense, 12.5)
	assert.Equal(t, -12.5, l.Categories["groceries"])
	assert.Equal(t, 12.5, l.TotalExpense)

	l.Apply("pay", models.Income, 1000)
	assert.Equal(t, 1000.0, l.Categories["pay"])
	assert.Equal(t, 1000.0, l.TotalIncome)

	l.Apply("pay", models.Income, 250)
	assert.Equal(t, 1250.0, l.Categories["pay"])
}

func TestSetBudgetReplaces(t *testing.T) {
	l := New("alice")
	l.Apply("food", models.Expense, 40)
	l.SetBudget("food", 100)
	assert.Equal(t, 100.0, l.Categories["food"])
	assert.Equal(t, 40.0, l.TotalExpense, "budget changes do not touch totals")

	l.SetBudget("food", -3)
	assert.Equal(t, -3.0, l.Categories["food"])
}

func TestBudgetReturnsCopy(t *testing.T) {
	l := New("alice")
	l.SetBudget("food", 10)
	b := l.Budget()
	b["food"] = 99
	assert.Equal(t, 10.0, l.Categories["food"])
}

func TestReport(t *testing.T) {
	l := New("alice")
	l.SetBudget("food", 50)
	require.NoError(t, l.CheckExpense("food", models.Expense, 30))
	l.Apply("food", models.Expense, 30)
	require.Error(t, l.CheckExpense("food", models.Expense, 25))
	l.Apply("pay", models.Income, 1000)

	r := l.Report()
	assert.Equal(t, 1000.0, r.TotalIncome)
	assert.Equal(t, 30.0, r.TotalExpense)
	assert.Equal(t, 970.0, r.NetBalance)
	assert.Equal(t, map[string]float64{"food": 20, "pay": 1000}, r.CategorySummary)
}

func TestCheckRange(t *testing.T) {
	l := New("alice")
	assert.NoError(t, l.CheckRange("pay", models.Income, 1e308))
	l.Apply("pay", models.Income, 1e308)

	err := l.CheckRange("pay", models.Income, 1e308)
	assert.ErrorIs(t, err, ErrOutOfRange)
	err = l.CheckRange("bonus", models.Income, 1e308)
	assert.ErrorIs(t, err, ErrOutOfRange, "total income would overflow")

	l.SetBudget("debt", -math.MaxFloat64)
	assert.ErrorIs(t, l.CheckRange("debt", models.Expense, 1e308), ErrOutOfRange)
	assert.NoError(t, l.CheckRange("food", models.Expense, 1e308))
}
