package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/coinfolio/internal/domain"
	"go.uber.org/zap"
)

// DefaultWindows are the look-back windows of the recent-changes table.
var DefaultWindows = []time.Duration{
	time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
	30 * 24 * time.Hour,
}

type rateResolver interface {
	ResolveBatch(ctx context.Context, reqs []domain.RateRequest) ([]domain.RateQuote, error)
}

// RollbackCalculator values the portfolio at past cutoffs by reverse-applying
// events newer than each cutoff to a copy of the current holdings.
type RollbackCalculator struct {
	resolver rateResolver
	l        *zap.Logger
}

// NewRollbackCalculator creates a new rollback calculator.
func NewRollbackCalculator(resolver rateResolver, l *zap.Logger) *RollbackCalculator {
	return &RollbackCalculator{resolver: resolver, l: l}
}

// RecentChanges computes the BTC-denominated portfolio value at now-Δ for
// every window Δ, in window order. "now" is floored to the hour so repeated
// calls hit the rate cache. When onlyTrades is set, deposits and withdrawals
// are not reversed, which isolates the value change caused by trading alone.
// Rates for all currencies of all windows are resolved in one batched call.
func (c *RollbackCalculator) RecentChanges(
	ctx context.Context,
	events []domain.Event,
	current domain.Holdings,
	now time.Time,
	windows []time.Duration,
	onlyTrades bool,
) ([]domain.WindowValue, error) {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	now = now.Truncate(time.Hour)

	// newest first, so reversal walks backwards through history
	reversed := make([]domain.Event, len(events))
	copy(reversed, events)
	sort.SliceStable(reversed, func(i, j int) bool {
		return reversed[i].Time.After(reversed[j].Time)
	})

	rolled := make([]domain.Holdings, len(windows))
	requests := make([]domain.RateRequest, 0, len(windows)*len(current))
	for i, window := range windows {
		cutoff := now.Add(-window)
		holdings := current.Copy()
		for j := range reversed {
			e := &reversed[j]
			if !e.Time.After(cutoff) {
				break
			}
			if onlyTrades && e.Kind != domain.EventTrade {
				continue
			}
			Reverse(holdings, e)
		}
		rolled[i] = holdings

		for _, currency := range holdings.Currencies() {
			requests = append(requests, domain.RateRequest{
				Pair: domain.Pair{From: domain.Bitcoin, To: currency},
				Time: cutoff,
			})
		}
	}

	quotes, err := c.resolver.ResolveBatch(ctx, requests)
	if err != nil {
		return nil, errors.Wrap(err, "resolve rollback rates")
	}
	rates := indexQuotes(quotes)

	out := make([]domain.WindowValue, len(windows))
	for i, window := range windows {
		cutoff := now.Add(-window)
		value := decimal.Zero
		for currency, amount := range rolled[i] {
			rate, ok := rates[quoteKey(currency, cutoff)]
			if !ok {
				c.l.Warn("no rate resolved for rollback cutoff",
					zap.String("currency", currency), zap.Time("cutoff", cutoff))
				continue
			}
			value = value.Add(amount.Mul(rate))
		}
		out[i] = domain.WindowValue{Window: window, Cutoff: cutoff, Value: value}
	}

	return out, nil
}

type rateKey struct {
	currency string
	unix     int64
}

func quoteKey(currency string, ts time.Time) rateKey {
	return rateKey{currency: currency, unix: ts.Unix()}
}

func indexQuotes(quotes []domain.RateQuote) map[rateKey]decimal.Decimal {
	rates := make(map[rateKey]decimal.Decimal, len(quotes))
	for _, q := range quotes {
		rates[quoteKey(q.Pair.To, q.Time)] = q.Rate
	}
	return rates
}
