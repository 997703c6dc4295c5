package rates

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
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

func ts(offset time.Duration) time.Time {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return base.Add(offset)
}

type fakeHist struct {
	rates map[string]decimal.Decimal // keyed by pair string
	calls int
	seen  [][]domain.RateRequest
	err   error
}

func (f *fakeHist) BatchRates(_ context.Context, reqs []domain.RateRequest) ([]HistRate, error) {
	f.calls++
	f.seen = append(f.seen, reqs)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]HistRate, 0, len(reqs))
	for _, req := range reqs {
		entry := HistRate{
			Pair: req.Pair.String(),
			Date: req.Time.Truncate(time.Second).UTC().Format(ServiceTimeLayout),
		}
		if rate, ok := f.rates[req.Pair.String()]; ok {
			entry.Rate = decimal.NewNullDecimal(rate)
		} else {
			entry.NoData = true
		}
		out = append(out, entry)
	}
	return out, nil
}

type fakePricer struct {
	rates map[string]decimal.Decimal
	calls int
}

func (f *fakePricer) BTCRate(_ context.Context, currency string) (decimal.Decimal, error) {
	f.calls++
	rate, ok := f.rates[currency]
	if !ok {
		return decimal.Decimal{}, errors.Errorf("no ticker for %s", currency)
	}
	return rate, nil
}

func newTestResolver(hist *fakeHist, primary, secondary *fakePricer) (*Resolver, *Cache) {
	cache := NewCache()
	return NewResolver(cache, hist, primary, secondary, zap.NewNop()), cache
}

func TestResolveBatchHitsHistoricalService(t *testing.T) {
	hist := &fakeHist{rates: map[string]decimal.Decimal{"BTC/ETH": d("0.05")}}
	resolver, _ := newTestResolver(hist, &fakePricer{}, &fakePricer{})

	quote, err := resolver.Resolve(context.Background(), domain.Pair{From: "BTC", To: "ETH"}, ts(0))
	require.NoError(t, err)

	require.True(t, quote.Rate.Equal(d("0.05")), "got %s", quote.Rate)
	require.Equal(t, domain.SourceHistorical, quote.Source)
	require.Equal(t, 1, hist.calls)
}

func TestResolveBatchSecondLookupServedFromCache(t *testing.T) {
	hist := &fakeHist{rates: map[string]decimal.Decimal{"BTC/ETH": d("0.05")}}
	resolver, _ := newTestResolver(hist, &fakePricer{}, &fakePricer{})

	pair := domain.Pair{From: "BTC", To: "ETH"}
	_, err := resolver.Resolve(context.Background(), pair, ts(0))
	require.NoError(t, err)

	quote, err := resolver.Resolve(context.Background(), pair, ts(0))
	require.NoError(t, err)

	require.Equal(t, 1, hist.calls, "second lookup must not reach the service")
	require.Equal(t, domain.SourceCache, quote.Source)
	require.True(t, quote.Rate.Equal(d("0.05")), "got %s", quote.Rate)
}

func TestResolveBatchDeduplicatesRequests(t *testing.T) {
	hist := &fakeHist{rates: map[string]decimal.Decimal{"BTC/ETH": d("0.05")}}
	resolver, _ := newTestResolver(hist, &fakePricer{}, &fakePricer{})

	pair := domain.Pair{From: "BTC", To: "ETH"}
	reqs := []domain.RateRequest{
		{Pair: pair, Time: ts(0)},
		{Pair: pair, Time: ts(0)},
	}

	quotes, err := resolver.ResolveBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	require.Equal(t, 1, hist.calls)
	require.Len(t, hist.seen[0], 1, "duplicates collapse to one service entry")
	require.True(t, quotes[0].Rate.Equal(quotes[1].Rate))
}

func TestResolveBitcoinAgainstItselfIsStatic(t *testing.T) {
	hist := &fakeHist{}
	resolver, _ := newTestResolver(hist, &fakePricer{}, &fakePricer{})

	quote, err := resolver.Resolve(context.Background(), domain.Pair{From: "BTC", To: "BTC"}, ts(0))
	require.NoError(t, err)

	require.True(t, quote.Rate.Equal(d("1")), "got %s", quote.Rate)
	require.Equal(t, domain.SourceStatic, quote.Source)
	require.Equal(t, 0, hist.calls)
}

func TestResolveInvertsUSDTQuotes(t *testing.T) {
	hist := &fakeHist{rates: map[string]decimal.Decimal{"BTC/USDT": d("20000")}}
	resolver, _ := newTestResolver(hist, &fakePricer{}, &fakePricer{})

	quote, err := resolver.Resolve(context.Background(), domain.Pair{From: "BTC", To: "USDT"}, ts(0))
	require.NoError(t, err)

	require.True(t, quote.Rate.Equal(d("0.00005")), "got %s", quote.Rate)
}

func TestResolveFallsBackToPrimaryLiveFeed(t *testing.T) {
	hist := &fakeHist{} // every entry comes back no_data
	primary := &fakePricer{rates: map[string]decimal.Decimal{"ETH": d("0.048")}}
	secondary := &fakePricer{}
	resolver, _ := newTestResolver(hist, primary, secondary)

	quote, err := resolver.Resolve(context.Background(), domain.Pair{From: "BTC", To: "ETH"}, ts(0))
	require.NoError(t, err)

	require.Equal(t, domain.SourceLivePrimary, quote.Source)
	require.True(t, quote.Rate.Equal(d("0.048")), "got %s", quote.Rate)
	require.Equal(t, 0, secondary.calls)
}

func TestResolveFallsBackToSecondaryLiveFeed(t *testing.T) {
	hist := &fakeHist{}
	primary := &fakePricer{}
	secondary := &fakePricer{rates: map[string]decimal.Decimal{"ETH": d("0.047")}}
	resolver, _ := newTestResolver(hist, primary, secondary)

	quote, err := resolver.Resolve(context.Background(), domain.Pair{From: "BTC", To: "ETH"}, ts(0))
	require.NoError(t, err)

	require.Equal(t, domain.SourceLiveSecondary, quote.Source)
	require.True(t, quote.Rate.Equal(d("0.047")), "got %s", quote.Rate)
	require.Equal(t, 1, primary.calls)
}

func TestResolveExhaustedChainYieldsZeroQuote(t *testing.T) {
	hist := &fakeHist{}
	resolver, _ := newTestResolver(hist, &fakePricer{}, &fakePricer{})

	quote, err := resolver.Resolve(context.Background(), domain.Pair{From: "BTC", To: "OBSCURE"}, ts(0))
	require.NoError(t, err, "an unresolvable rate is not an error")

	require.True(t, quote.Rate.Equal(decimal.Zero))
	require.Equal(t, domain.SourceNone, quote.Source)
	require.True(t, quote.NoData())
}

func TestResolveServiceOutageDegradesWholeBatch(t *testing.T) {
	hist := &fakeHist{err: errors.New("connection refused")}
	primary := &fakePricer{rates: map[string]decimal.Decimal{"ETH": d("0.048")}}
	resolver, _ := newTestResolver(hist, primary, &fakePricer{})

	reqs := []domain.RateRequest{
		{Pair: domain.Pair{From: "BTC", To: "ETH"}, Time: ts(0)},
		{Pair: domain.Pair{From: "BTC", To: "OBSCURE"}, Time: ts(0)},
	}

	quotes, err := resolver.ResolveBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	require.Equal(t, domain.SourceLivePrimary, quotes[0].Source)
	require.True(t, quotes[0].Rate.Equal(d("0.048")))
	require.Equal(t, domain.SourceNone, quotes[1].Source)
}

func TestResolveBatchPreservesInputOrder(t *testing.T) {
	hist := &fakeHist{rates: map[string]decimal.Decimal{
		"BTC/ETH": d("0.05"),
		"BTC/XMR": d("0.002"),
	}}
	resolver, _ := newTestResolver(hist, &fakePricer{}, &fakePricer{})

	reqs := []domain.RateRequest{
		{Pair: domain.Pair{From: "BTC", To: "XMR"}, Time: ts(0)},
		{Pair: domain.Pair{From: "BTC", To: "ETH"}, Time: ts(time.Hour)},
	}

	quotes, err := resolver.ResolveBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	require.Equal(t, "BTC/XMR", quotes[0].Pair.String())
	require.Equal(t, "BTC/ETH", quotes[1].Pair.String())
	require.Equal(t, ts(0), quotes[0].Time)
	require.Equal(t, ts(time.Hour), quotes[1].Time)
}

func TestResolveCachesUnderOriginalTimestamp(t *testing.T) {
	hist := &fakeHist{rates: map[string]decimal.Decimal{"BTC/ETH": d("0.05")}}
	resolver, cache := newTestResolver(hist, &fakePricer{}, &fakePricer{})

	// sub-second precision survives caching even though the service
	// only sees whole seconds
	at := ts(0).Add(250 * time.Millisecond)
	_, err := resolver.Resolve(context.Background(), domain.Pair{From: "BTC", To: "ETH"}, at)
	require.NoError(t, err)

	cached, ok := cache.Get(domain.Pair{From: "BTC", To: "ETH"}, at)
	require.True(t, ok)
	require.True(t, cached.Rate.Equal(d("0.05")))
}
