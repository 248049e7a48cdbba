package service

import (
	"math"
	"strconv"
	"strings"
	"time"

	"finance-tracker/internal/models"
)

// TransactionInput is an unvalidated transaction submission. Amount holds the
// textual form of whatever the client sent; Date may be empty.
type TransactionInput struct {
	Description string
	Amount      string
	Type        string
	Category    string
	Date        string
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts the supported timestamp layouts.
func ParseDate(s string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// ParseAmount coerces s to a strictly positive finite number.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, validationError("amount is required")
	}
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, validationError("amount must be a number")
	}
	if amount <= 0 {
		return 0, validationError("amount must be greater than zero")
	}
	return amount, nil
}

// validate turns in into a journal entry for username, without id.
func (in TransactionInput) validate(username string, now time.Time) (*models.Transaction, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, validationError("description is required")
	}

	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	typ := models.TransactionType(strings.TrimSpace(in.Type))
	if !typ.Valid() {
		return nil, validationError("type must be %q or %q", models.Income, models.Expense)
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, validationError("category is required")
	}

	date := now
	if s := strings.TrimSpace(in.Date); s != "" {
		if date, err = ParseDate(s); err != nil {
			return nil, validationError("date %q is not a valid timestamp", s)
		}
	}

	return &models.Transaction{
		Username:    username,
		Description: description,
		Amount:      amount,
		Type:        typ,
		Category:    category,
		Date:        date.UTC(),
	}, nil
}
