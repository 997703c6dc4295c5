package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeriesPoint one (timestamp, value) sample of a historical series.
type SeriesPoint struct {
	Time  time.Time       `json:"time"`
	Value decimal.Decimal `json:"value"`
}

// Series chronological value samples for one currency.
type Series struct {
	Currency string        `json:"currency"`
	Points   []SeriesPoint `json:"points"`
}

// WindowValue portfolio value at the cutoff of one look-back window.
type WindowValue struct {
	Window time.Duration   `json:"window"`
	Cutoff time.Time       `json:"cutoff"`
	Value  decimal.Decimal `json:"value"`
}

// CurrencyValue current value of a single held currency.
type CurrencyValue struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Value    decimal.Decimal `json:"value"`
}
