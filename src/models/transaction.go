package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the read-only view of a space transaction used by anomaly
// detection. Negative amounts are outflows.
type Transaction struct {
	ID          string          `json:"id"`
	SpaceID     string          `json:"space_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Merchant    *string         `json:"merchant"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	CategoryID  *string         `json:"category_id"`
}

// IsOutflow reports whether money left the account.
func (t Transaction) IsOutflow() bool {
	return t.Amount.IsNegative()
}

// MerchantRef is a distinct merchant reference seen in a space's history.
type MerchantRef struct {
	Merchant    *string `json:"merchant"`
	Description string  `json:"description"`
}

// PeriodTotal is the outflow sum and transaction count of a date range.
type PeriodTotal struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// CategoryTotal is the outflow sum of one category over a date range.
type CategoryTotal struct {
	CategoryID   *string         `json:"category_id"`
	CategoryName *string         `json:"category_name"`
	Total        decimal.Decimal `json:"total"`
	Count        int             `json:"count"`
}

// DateRange is the half-open interval [From, To).
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}
