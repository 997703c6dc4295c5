package rates

import (
	"context"
	"fmt"

	"github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/coinfolio/internal/domain"
)

// symbolAliases maps currency tickers that differ between the primary feed
// and Bybit for the same asset.
var symbolAliases = map[string]string{
	"STR": "XLM",
	"XBT": "BTC",
	"BCC": "BCH",
	"DSH": "DASH",
}

// BybitPricer is the secondary live rate source, consulted when the primary
// feed has no entry for a currency.
type BybitPricer struct {
	client *bybit.Client
}

// NewBybitPricer creates a new Bybit pricer.
func NewBybitPricer(client *bybit.Client) *BybitPricer {
	return &BybitPricer{client: client}
}

// BTCRate returns the current raw BTC rate for the currency from Bybit spot
// tickers, translating aliased tickers first.
func (p *BybitPricer) BTCRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	if alias, ok := symbolAliases[currency]; ok {
		currency = alias
	}

	symbol := bybit.SymbolV5(currency + domain.Bitcoin)
	if currency == "USDT" {
		symbol = bybit.SymbolV5(domain.Bitcoin + currency)
	}

	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	if len(result.Result.Spot.List) == 0 {
		return decimal.Decimal{}, fmt.Errorf("bybit API returned empty prices for %s", symbol)
	}

	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}
