// Package costbasis tracks the running weighted-average acquisition price of
// every traded currency, denominated in BTC per unit.
package costbasis

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/coinfolio/internal/domain"
	"go.uber.org/zap"
)

var one = decimal.NewFromInt(1)

// rateKeyLayout keys resolved quotes by currency and second-precision time.
const rateKeyLayout = "2006-01-02 15:04:05"

type rateResolver interface {
	ResolveBatch(ctx context.Context, reqs []domain.RateRequest) ([]domain.RateQuote, error)
}

// Calculator computes per-currency cost basis records from trade history.
// This is a weighted-average model, deliberately not FIFO/LIFO lot tracking:
// a sale only reduces the tracked total, the basis of what remains is kept.
type Calculator struct {
	resolver rateResolver
	l        *zap.Logger
}

// New creates a cost basis calculator.
func New(resolver rateResolver, l *zap.Logger) *Calculator {
	return &Calculator{resolver: resolver, l: l}
}

// Compute processes all trade events in chronological order and returns the
// cost basis record of every non-BTC currency touched by a trade. Trades on
// pairs without BTC use a triangulated rate derived from the resolved BTC
// rate of the pair's base currency and the trade's own execution price; the
// rates for those trades are resolved in one batched call up front.
func (c *Calculator) Compute(ctx context.Context, events []domain.Event) (map[string]domain.CostBasisRecord, error) {
	trades := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if e.Kind == domain.EventTrade {
			trades = append(trades, e)
		}
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Time.Before(trades[j].Time)
	})

	baseRates, err := c.resolveBaseRates(ctx, trades)
	if err != nil {
		return nil, err
	}

	records := make(map[string]domain.CostBasisRecord)
	for i := range trades {
		trade := &trades[i]

		var bought, sold string
		var boughtAmount, soldAmount decimal.Decimal
		if trade.Buy {
			bought, sold = trade.Pair.From, trade.Pair.To
			boughtAmount, soldAmount = trade.Amount, trade.Cost
		} else {
			bought, sold = trade.Pair.To, trade.Pair.From
			boughtAmount, soldAmount = trade.Cost, trade.Amount
		}

		rate := c.tradeRate(trade, bought, baseRates)

		if bought != domain.Bitcoin {
			record := records[bought]
			newTotal := record.Total.Add(boughtAmount)

			// a zero or malformed denominator means this purchase is the
			// whole position, so the ratio collapses to 1
			ratio := one
			if !newTotal.IsZero() {
				ratio = boughtAmount.Div(newTotal)
			}

			record.Basis = one.Sub(ratio).Mul(record.Basis).Add(ratio.Mul(rate))
			record.Total = newTotal
			records[bought] = record
		}

		if sold != domain.Bitcoin {
			record := records[sold]
			record.Total = record.Total.Sub(soldAmount)
			if record.Total.IsNegative() {
				record.Total = decimal.Zero
			}
			records[sold] = record
		}
	}

	return records, nil
}

// resolveBaseRates batches the BTC rate of the base currency of every trade
// whose pair does not include BTC, keyed for lookup during the replay.
func (c *Calculator) resolveBaseRates(ctx context.Context, trades []domain.Event) (map[string]domain.RateQuote, error) {
	var reqs []domain.RateRequest
	for i := range trades {
		if trades[i].Pair.Includes(domain.Bitcoin) {
			continue
		}
		reqs = append(reqs, domain.RateRequest{
			Pair: domain.Pair{From: domain.Bitcoin, To: trades[i].Pair.From},
			Time: trades[i].Time,
		})
	}
	if len(reqs) == 0 {
		return nil, nil
	}

	quotes, err := c.resolver.ResolveBatch(ctx, reqs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve triangulation rates")
	}

	out := make(map[string]domain.RateQuote, len(quotes))
	for _, q := range quotes {
		out[q.Pair.To+"@"+q.Time.UTC().Format(rateKeyLayout)] = q
	}
	return out, nil
}

// tradeRate returns the BTC-denominated rate to book the bought side at. For
// pairs including BTC the trade's own price is the rate. Otherwise the
// resolved BTC rate of the pair's base currency is used directly when the
// base was bought, or triangulated through the execution price when the
// quote was bought: rate(BTC/quote) = rate(BTC/base) / price(base/quote).
func (c *Calculator) tradeRate(trade *domain.Event, bought string, baseRates map[string]domain.RateQuote) decimal.Decimal {
	if trade.Pair.Includes(domain.Bitcoin) {
		return trade.Price
	}

	quote, ok := baseRates[trade.Pair.From+"@"+trade.Time.UTC().Format(rateKeyLayout)]
	if !ok || quote.NoData() {
		c.l.Warn("no BTC rate for triangulation, booking trade at zero",
			zap.String("pair", trade.Pair.String()), zap.Time("ts", trade.Time))
		return decimal.Zero
	}

	if bought == trade.Pair.From {
		return quote.Rate
	}
	if trade.Price.IsZero() {
		return decimal.Zero
	}
	return quote.Rate.Div(trade.Price)
}
