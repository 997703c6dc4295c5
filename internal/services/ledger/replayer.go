// Package ledger replays account activity chronologically to reconstruct
// holdings, and reverse-applies it to value the portfolio at past cutoffs.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/coinfolio/internal/domain"
)

var oneHundred = decimal.NewFromInt(100)

// Replay applies every event in chronological order starting from empty
// holdings and returns the resulting balances rounded to the standard
// 8-decimal precision. The input slice is not modified. Events sharing a
// timestamp are applied in their input order (stable sort); the tie-break is
// an input-order artifact, not a semantic rule.
func Replay(events []domain.Event) domain.Holdings {
	sorted := make([]domain.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	holdings := make(domain.Holdings)
	for i := range sorted {
		Apply(holdings, &sorted[i])
	}

	return holdings.Rounded()
}

// Apply mutates holdings with a single event transition. A balance driven
// negative is clamped to zero, which tolerates partial histories where a
// withdrawal or trade predates its matching deposit. Intentionally this can
// mask data-entry problems in the source history.
func Apply(holdings domain.Holdings, e *domain.Event) {
	switch e.Kind {
	case domain.EventDeposit:
		holdings[e.Currency] = holdings[e.Currency].Add(e.Amount)
	case domain.EventWithdrawal:
		holdings[e.Currency] = holdings[e.Currency].Sub(e.Amount)
		clamp(holdings, e.Currency)
	case domain.EventTrade:
		base, quote := e.Pair.From, e.Pair.To
		fee := e.FeePercent.Div(oneHundred)
		if e.Buy {
			// fee is charged against the received side
			holdings[base] = holdings[base].Add(e.Amount).Sub(fee.Mul(e.Amount))
			holdings[quote] = holdings[quote].Sub(e.Cost)
		} else {
			holdings[base] = holdings[base].Sub(e.Amount)
			holdings[quote] = holdings[quote].Add(e.Cost).Sub(fee.Mul(e.Cost))
		}
		clamp(holdings, base)
		clamp(holdings, quote)
	}
}

// Reverse mutates holdings with the inverse transition of an event: what the
// forward step added is subtracted, what it subtracted (fees included) is
// added back. The same clamp-to-zero rule applies afterwards.
func Reverse(holdings domain.Holdings, e *domain.Event) {
	switch e.Kind {
	case domain.EventDeposit:
		holdings[e.Currency] = holdings[e.Currency].Sub(e.Amount)
		clamp(holdings, e.Currency)
	case domain.EventWithdrawal:
		holdings[e.Currency] = holdings[e.Currency].Add(e.Amount)
	case domain.EventTrade:
		base, quote := e.Pair.From, e.Pair.To
		fee := e.FeePercent.Div(oneHundred)
		if e.Buy {
			holdings[base] = holdings[base].Sub(e.Amount).Add(fee.Mul(e.Amount))
			holdings[quote] = holdings[quote].Add(e.Cost)
		} else {
			holdings[base] = holdings[base].Add(e.Amount)
			holdings[quote] = holdings[quote].Sub(e.Cost).Add(fee.Mul(e.Cost))
		}
		clamp(holdings, base)
		clamp(holdings, quote)
	}
}

func clamp(holdings domain.Holdings, currency string) {
	if holdings[currency].IsNegative() {
		holdings[currency] = decimal.Zero
	}
}
