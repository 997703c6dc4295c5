// Package series builds historical balance and profit/loss series by
// replaying the full event history and valuing every held currency at each
// event's timestamp.
package series

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/coinfolio/internal/domain"
	"github.com/vadiminshakov/coinfolio/internal/services/ledger"
	"go.uber.org/zap"
)

type rateResolver interface {
	ResolveBatch(ctx context.Context, reqs []domain.RateRequest) ([]domain.RateQuote, error)
}

// Result holds the per-currency historical series, valued in the base
// currency. Balances double as the distribution series when stacked.
type Result struct {
	Balances   []domain.Series `json:"balances"`
	ProfitLoss []domain.Series `json:"profit_loss"`
}

// Builder replays events chronologically and samples every currency's value
// and cumulative profit/loss at each event.
type Builder struct {
	resolver rateResolver
	l        *zap.Logger
}

// NewBuilder creates a series builder.
func NewBuilder(resolver rateResolver, l *zap.Logger) *Builder {
	return &Builder{resolver: resolver, l: l}
}

// Build produces, for every currency ever held, the chronological series of
// its base-currency value and its cumulative profit/loss. Rates for every
// currency (plus the base currency) at every distinct event timestamp are
// resolved in a single batched call before the replay. Profit/loss at a point
// is (instantaneous value + cumulative withdrawn value) - cumulative
// deposited value, where transfers are valued at the historical rate of their
// own timestamp. Consecutive events sharing a timestamp collapse into one
// point per currency, the later event winning.
func (b *Builder) Build(ctx context.Context, events []domain.Event, baseCurrency string) (*Result, error) {
	if len(events) == 0 {
		return &Result{}, nil
	}

	sorted := make([]domain.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	currencies := heldCurrencies(sorted)
	rates, err := b.resolveAll(ctx, sorted, currencies, baseCurrency)
	if err != nil {
		return nil, err
	}

	holdings := make(domain.Holdings)
	balances := make(map[string][]domain.SeriesPoint, len(currencies))
	profits := make(map[string][]domain.SeriesPoint, len(currencies))
	deposited := make(map[string]decimal.Decimal, len(currencies))
	withdrawn := make(map[string]decimal.Decimal, len(currencies))

	for i := range sorted {
		e := &sorted[i]
		baseRate := rates.lookup(b.l, baseCurrency, e.Time)

		// transfers accumulate their value at the rate of their own moment
		switch e.Kind {
		case domain.EventDeposit:
			value := e.Amount.Mul(rates.lookup(b.l, e.Currency, e.Time)).Mul(baseRate)
			deposited[e.Currency] = deposited[e.Currency].Add(value)
		case domain.EventWithdrawal:
			value := e.Amount.Mul(rates.lookup(b.l, e.Currency, e.Time)).Mul(baseRate)
			withdrawn[e.Currency] = withdrawn[e.Currency].Add(value)
		}

		ledger.Apply(holdings, e)

		for _, currency := range currencies {
			rate := rates.lookup(b.l, currency, e.Time)
			value := holdings[currency].Mul(rate).Mul(baseRate)
			pl := value.Add(withdrawn[currency]).Sub(deposited[currency])

			balances[currency] = appendPoint(balances[currency], e.Time, value)
			profits[currency] = appendPoint(profits[currency], e.Time, pl)
		}
	}

	result := &Result{
		Balances:   make([]domain.Series, 0, len(currencies)),
		ProfitLoss: make([]domain.Series, 0, len(currencies)),
	}
	for _, currency := range currencies {
		result.Balances = append(result.Balances, domain.Series{Currency: currency, Points: balances[currency]})
		result.ProfitLoss = append(result.ProfitLoss, domain.Series{Currency: currency, Points: profits[currency]})
	}
	return result, nil
}

// appendPoint appends a sample, overwriting the previous one when it shares
// the same timestamp so simultaneous events produce a single point.
func appendPoint(points []domain.SeriesPoint, ts time.Time, value decimal.Decimal) []domain.SeriesPoint {
	if n := len(points); n > 0 && points[n-1].Time.Equal(ts) {
		points[n-1].Value = value
		return points
	}
	return append(points, domain.SeriesPoint{Time: ts, Value: value})
}

// heldCurrencies lists every currency the history ever touched, in first-seen
// order.
func heldCurrencies(events []domain.Event) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(currency string) {
		if currency != "" && !seen[currency] {
			seen[currency] = true
			out = append(out, currency)
		}
	}
	for i := range events {
		if events[i].Kind == domain.EventTrade {
			add(events[i].Pair.From)
			add(events[i].Pair.To)
			continue
		}
		add(events[i].Currency)
	}
	return out
}

type rateTable map[rateTableKey]domain.RateQuote

type rateTableKey struct {
	currency string
	unix     int64
}

func (t rateTable) lookup(l *zap.Logger, currency string, ts time.Time) decimal.Decimal {
	q, ok := t[rateTableKey{currency: currency, unix: ts.UnixNano()}]
	if !ok {
		l.Warn("no resolved rate for series point",
			zap.String("currency", currency), zap.Time("ts", ts))
		return decimal.Zero
	}
	return q.Rate
}

// resolveAll batches the BTC rate of every currency plus the base currency at
// every distinct event timestamp into one resolver call.
func (b *Builder) resolveAll(ctx context.Context, sorted []domain.Event, currencies []string, baseCurrency string) (rateTable, error) {
	all := append([]string{baseCurrency}, currencies...)

	var reqs []domain.RateRequest
	var lastTS time.Time
	for i := range sorted {
		ts := sorted[i].Time
		if i > 0 && ts.Equal(lastTS) {
			continue
		}
		lastTS = ts
		for _, currency := range all {
			reqs = append(reqs, domain.RateRequest{
				Pair: domain.Pair{From: domain.Bitcoin, To: currency},
				Time: ts,
			})
		}
	}

	quotes, err := b.resolver.ResolveBatch(ctx, reqs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve series rates")
	}

	table := make(rateTable, len(quotes))
	for _, q := range quotes {
		table[rateTableKey{currency: q.Pair.To, unix: q.Time.UnixNano()}] = q
	}
	return table, nil
}
