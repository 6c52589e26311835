package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// StubRateSource is an in-memory rate source with fixed EUR-based rates,
// call counters, and an injectable error. The zero value is not usable;
// construct it with NewStubRateSource.
type StubRateSource struct {
	mu sync.Mutex

	// Rates maps currency code to its EUR-based rate.
	Rates map[string]decimal.Decimal
	// Err, when set, is returned by every call.
	Err error

	LatestCalls     int
	HistoricalCalls int
	HistoricalDates []time.Time
}

// NewStubRateSource returns a stub preloaded with the standard test rates.
func NewStubRateSource() *StubRateSource {
	return &StubRateSource{
		Rates: map[string]decimal.Decimal{
			"EUR": decimal.NewFromInt(1),
			"USD": decimal.RequireFromString("1.2"),
			"HUF": decimal.NewFromInt(300),
			"UAH": decimal.NewFromInt(30),
			"BTC": decimal.RequireFromString("0.0001"),
		},
	}
}

// GetLatestRates returns the stub rates, counting the call.
func (s *StubRateSource) GetLatestRates(_ context.Context) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LatestCalls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.snapshot(), nil
}

// GetRates returns the stub rates for a historical date, recording it.
func (s *StubRateSource) GetRates(_ context.Context, date time.Time) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.HistoricalCalls++
	s.HistoricalDates = append(s.HistoricalDates, date)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.snapshot(), nil
}

// SetRate overrides a single currency's rate.
func (s *StubRateSource) SetRate(code string, rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Rates[code] = rate
}

func (s *StubRateSource) snapshot() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.Rates))
	for k, v := range s.Rates {
		out[k] = v
	}
	return out
}
