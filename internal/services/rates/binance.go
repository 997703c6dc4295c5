package rates

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/coinfolio/internal/domain"
)

// BinancePricer is the primary live rate source.
type BinancePricer struct {
	client *binance.Client
}

// NewBinancePricer creates a new Binance pricer.
func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

// BTCRate returns the current raw BTC rate for the currency: BTC per unit for
// ordinary currencies, and the upstream BTC-per-USDT market value for USDT
// (callers invert it).
func (p *BinancePricer) BTCRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	symbol := currency + domain.Bitcoin
	if currency == "USDT" {
		// no USDTBTC market exists, USDT is quoted the other way around
		symbol = domain.Bitcoin + currency
	}

	prices, err := p.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, fmt.Errorf("binance API returned empty prices for %s", symbol)
	}

	return decimal.NewFromString(prices[0].Price)
}
