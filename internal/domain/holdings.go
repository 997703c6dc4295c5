package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// HoldingsPrecision is the standard 8-decimal crypto precision applied to
// final balances after a replay.
const HoldingsPrecision = 8

// Holdings maps currency symbol to held quantity. Balances are kept at full
// precision during a replay and rounded once at the end.
type Holdings map[string]decimal.Decimal

// Copy returns an independent copy of the holdings map.
func (h Holdings) Copy() Holdings {
	out := make(Holdings, len(h))
	for currency, amount := range h {
		out[currency] = amount
	}
	return out
}

// Currencies returns the touched currency symbols in a stable order.
func (h Holdings) Currencies() []string {
	out := make([]string, 0, len(h))
	for currency := range h {
		out = append(out, currency)
	}
	sort.Strings(out)
	return out
}

// Rounded returns the holdings rounded to HoldingsPrecision decimal places.
func (h Holdings) Rounded() Holdings {
	out := make(Holdings, len(h))
	for currency, amount := range h {
		out[currency] = amount.Round(HoldingsPrecision)
	}
	return out
}
