// Package valuation prices current holdings in the configured base currency.
package valuation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/coinfolio/internal/domain"
	"go.uber.org/zap"
)

type rateResolver interface {
	ResolveBatch(ctx context.Context, reqs []domain.RateRequest) ([]domain.RateQuote, error)
}

// Service values a holdings snapshot with one batched rate lookup.
type Service struct {
	resolver rateResolver
	l        *zap.Logger
}

// New creates a valuation service.
func New(resolver rateResolver, l *zap.Logger) *Service {
	return &Service{resolver: resolver, l: l}
}

// Current returns the total portfolio value in the base currency together
// with the per-currency breakdown. "now" is floored to the hour so repeated
// calls resolve against cache-friendly timestamps. An asset with no rate from
// any source contributes zero value.
func (s *Service) Current(ctx context.Context, holdings domain.Holdings, baseCurrency string, now time.Time) (decimal.Decimal, []domain.CurrencyValue, error) {
	now = now.Truncate(time.Hour)

	currencies := holdings.Currencies()
	reqs := make([]domain.RateRequest, 0, len(currencies)+1)
	reqs = append(reqs, domain.RateRequest{Pair: domain.Pair{From: domain.Bitcoin, To: baseCurrency}, Time: now})
	for _, currency := range currencies {
		reqs = append(reqs, domain.RateRequest{Pair: domain.Pair{From: domain.Bitcoin, To: currency}, Time: now})
	}

	quotes, err := s.resolver.ResolveBatch(ctx, reqs)
	if err != nil {
		return decimal.Zero, nil, errors.Wrap(err, "resolve valuation rates")
	}

	rates := make(map[string]decimal.Decimal, len(quotes))
	for _, q := range quotes {
		rates[q.Pair.To] = q.Rate
	}

	baseRate := rates[baseCurrency]
	total := decimal.Zero
	breakdown := make([]domain.CurrencyValue, 0, len(currencies))
	for _, currency := range currencies {
		value := holdings[currency].Mul(rates[currency]).Mul(baseRate)
		total = total.Add(value)
		breakdown = append(breakdown, domain.CurrencyValue{
			Currency: currency,
			Amount:   holdings[currency],
			Value:    value,
		})
	}

	return total, breakdown, nil
}
