// Package ledger implements the ledger consistency engine: currency
// conversion, compensation netting, balance mutation, and account history
// rebuilding, orchestrated inside the persistence layer's unit of work.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/denrolya/budget-api/internal/errors"
	"github.com/denrolya/budget-api/internal/money"
	"github.com/denrolya/budget-api/internal/rates"
)

// cryptoPrecision lists currencies whose converted values need more than the
// usual two decimal places.
var cryptoPrecision = map[string]int32{
	"BTC": 6,
}

// Converter converts a signed amount in one currency, as of a date, into a
// map of values in every supported currency. Rates are EUR-based; the
// conversion is amount * rate[to] / rate[from].
type Converter struct {
	source     rates.RateSource
	currencies []string
}

// NewConverter creates a converter over the given supported currency set.
func NewConverter(source rates.RateSource, currencies []string) *Converter {
	return &Converter{source: source, currencies: currencies}
}

// Currencies returns the supported currency codes.
func (c *Converter) Currencies() []string { return c.currencies }

// Supports reports whether the given currency is in the supported set.
func (c *Converter) Supports(code string) bool {
	for _, cur := range c.currencies {
		if cur == code {
			return true
		}
	}
	return false
}

// Convert converts amount from the given currency into every supported
// currency as of asOf. A nil asOf, or a date in the current month, uses the
// latest available rates; a date in a closed month uses rates pinned to the
// end of that month. The result always contains an identity entry for
// fromCurrency.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, fromCurrency string, asOf *time.Time) (money.Values, error) {
	if !c.Supports(fromCurrency) {
		return nil, apperrors.WithMessage(apperrors.ErrUnsupportedCurrency, "currency "+fromCurrency+" is not supported")
	}

	table, err := c.ratesFor(ctx, asOf)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRateUnavailable, err)
	}

	from, ok := table[fromCurrency]
	if !ok || from.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.WithMessage(apperrors.ErrRateUnavailable, "no rate available for "+fromCurrency)
	}

	values := make(money.Values, len(c.currencies))
	for _, code := range c.currencies {
		if code == fromCurrency {
			values[code] = amount
			continue
		}
		rate, ok := table[code]
		if !ok {
			return nil, apperrors.WithMessage(apperrors.ErrRateUnavailable, "no rate available for "+code)
		}
		values[code] = amount.Mul(rate).Div(from).Round(precisionFor(code))
	}
	return values, nil
}

// ratesFor picks latest rates for the open month and month-end rates for
// closed months. Historical months are stable and cached by the source.
func (c *Converter) ratesFor(ctx context.Context, asOf *time.Time) (map[string]decimal.Decimal, error) {
	if asOf == nil || rates.SameMonth(*asOf, time.Now()) {
		return c.source.GetLatestRates(ctx)
	}
	return c.source.GetRates(ctx, rates.MonthEnd(*asOf))
}

func precisionFor(code string) int32 {
	if p, ok := cryptoPrecision[code]; ok {
		return p
	}
	return 2
}
