package domain

import "github.com/shopspring/decimal"

// CostBasisRecord running weighted-average acquisition data for one currency.
// Basis is denominated in BTC per unit. This is a weighted-average model, not
// FIFO/LIFO lot tracking: a sale reduces Total but leaves Basis untouched.
type CostBasisRecord struct {
	// Total quantity counted toward the basis.
	Total decimal.Decimal
	// Basis weighted-average acquisition price in BTC per unit.
	Basis decimal.Decimal
}
