// Package rates supplies currency exchange rates for the ledger engine.
// Rates are EUR-based: a rate of 30 for UAH means 1 EUR = 30 UAH.
package rates

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource provides exchange rates for the supported currency set.
// Implementations must report a clear error when rates are unavailable or
// incomplete, never a silently empty map. Rates for a closed historical month
// are assumed immutable and may be cached indefinitely within a run.
type RateSource interface {
	// GetLatestRates returns the most recent available rates.
	GetLatestRates(ctx context.Context) (map[string]decimal.Decimal, error)

	// GetRates returns rates pinned to the given historical date,
	// conventionally the last day of a closed month.
	GetRates(ctx context.Context, monthEnd time.Time) (map[string]decimal.Decimal, error)
}

// MonthEnd returns the last day of the calendar month containing t.
func MonthEnd(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
