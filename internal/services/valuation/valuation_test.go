package valuation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/coinfolio/internal/domain"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type stubResolver struct {
	rates map[string]decimal.Decimal
	calls int
	reqs  []domain.RateRequest
}

func (s *stubResolver) ResolveBatch(_ context.Context, reqs []domain.RateRequest) ([]domain.RateQuote, error) {
	s.calls++
	s.reqs = append(s.reqs, reqs...)
	quotes := make([]domain.RateQuote, 0, len(reqs))
	for _, req := range reqs {
		quotes = append(quotes, domain.RateQuote{
			Pair:   req.Pair,
			Time:   req.Time,
			Rate:   s.rates[req.Pair.To],
			Source: domain.SourceHistorical,
		})
	}
	return quotes, nil
}

func TestCurrentTotalsAndBreakdown(t *testing.T) {
	resolver := &stubResolver{rates: map[string]decimal.Decimal{
		"USD": d("10000"),
		"BTC": d("1"),
		"ETH": d("0.05"),
	}}
	svc := New(resolver, zap.NewNop())

	holdings := domain.Holdings{
		"BTC": d("1"),
		"ETH": d("2"),
	}
	now := time.Date(2024, 3, 1, 12, 40, 0, 0, time.UTC)

	total, breakdown, err := svc.Current(context.Background(), holdings, "USD", now)
	require.NoError(t, err)

	require.True(t, total.Equal(d("11000")), "got %s", total)
	require.Len(t, breakdown, 2)
	require.Equal(t, "BTC", breakdown[0].Currency)
	require.True(t, breakdown[0].Value.Equal(d("10000")), "got %s", breakdown[0].Value)
	require.Equal(t, "ETH", breakdown[1].Currency)
	require.True(t, breakdown[1].Value.Equal(d("1000")), "got %s", breakdown[1].Value)

	require.Equal(t, 1, resolver.calls)
	for _, req := range resolver.reqs {
		require.Equal(t, 0, req.Time.Minute(), "valuation timestamps are floored to the hour")
	}
}

func TestCurrentUnpricedAssetContributesZero(t *testing.T) {
	resolver := &stubResolver{rates: map[string]decimal.Decimal{
		"USD": d("10000"),
		"BTC": d("1"),
	}}
	svc := New(resolver, zap.NewNop())

	holdings := domain.Holdings{
		"BTC":     d("1"),
		"OBSCURE": d("1000"),
	}

	total, breakdown, err := svc.Current(context.Background(), holdings, "USD", time.Now())
	require.NoError(t, err)

	require.True(t, total.Equal(d("10000")), "got %s", total)
	require.Len(t, breakdown, 2)
}

func TestCurrentEmptyHoldings(t *testing.T) {
	resolver := &stubResolver{rates: map[string]decimal.Decimal{"USD": d("10000")}}
	svc := New(resolver, zap.NewNop())

	total, breakdown, err := svc.Current(context.Background(), domain.Holdings{}, "USD", time.Now())
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.Zero))
	require.Empty(t, breakdown)
}
