package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource identifies which source produced a resolved rate.
type RateSource int

const (
	// SourceCache the session rate cache.
	SourceCache RateSource = iota
	// SourceHistorical the historical rate service.
	SourceHistorical
	// SourceLivePrimary the primary live ticker feed.
	SourceLivePrimary
	// SourceLiveSecondary the secondary live ticker feed.
	SourceLiveSecondary
	// SourceTriangulated derived by the caller from another pair and a trade price.
	SourceTriangulated
	// SourceStatic fixed by convention, e.g. BTC/BTC = 1.
	SourceStatic
	// SourceNone no source had data; the rate is zero.
	SourceNone
)

// String returns a human-readable source name.
func (s RateSource) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceHistorical:
		return "historical-service"
	case SourceLivePrimary:
		return "live-primary"
	case SourceLiveSecondary:
		return "live-secondary"
	case SourceTriangulated:
		return "triangulated"
	case SourceStatic:
		return "static"
	case SourceNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// RateRequest asks for the rate of a pair at a point in time.
type RateRequest struct {
	Pair Pair
	Time time.Time
}

// RateQuote is a resolved exchange rate. For a pair BTC/X the rate is the BTC
// value of one unit of X. Callers correlate quotes back to requests by
// (Pair, Time) equality, never by slice position.
type RateQuote struct {
	Pair   Pair
	Time   time.Time
	Rate   decimal.Decimal
	Source RateSource
}

// NoData reports whether the quote carries no usable rate.
func (q RateQuote) NoData() bool {
	return q.Source == SourceNone
}
