// Package domain defines core data structures used throughout the valuation engine.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Bitcoin is the internal denomination currency: every resolved rate is the
// BTC value of one unit of the quoted currency.
const Bitcoin = "BTC"

// Pair ordered currency pair, e.g. BTC/ETH.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// PairFromString parses a pair in "FROM/TO" form.
func PairFromString(s string) (Pair, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, errors.Errorf("invalid pair %q, expected FROM/TO", s)
	}
	return Pair{From: parts[0], To: parts[1]}, nil
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s/%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation used by exchange APIs.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}

// Includes reports whether either side of the pair is the given currency.
func (p Pair) Includes(currency string) bool {
	return p.From == currency || p.To == currency
}
