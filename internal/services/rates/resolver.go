package rates

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/coinfolio/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// fallbackConcurrency bounds the live ticker fan-out for a single batch.
const fallbackConcurrency = 4

type historicalService interface {
	BatchRates(ctx context.Context, reqs []domain.RateRequest) ([]HistRate, error)
}

type livePricer interface {
	BTCRate(ctx context.Context, currency string) (decimal.Decimal, error)
}

// Resolver resolves (pair, timestamp) requests to BTC-denominated quotes.
// Resolution order: session cache, one batched historical service call, the
// primary live feed, the secondary live feed, and finally a zero quote when no
// source has data. A failed lookup degrades to the next source for that
// request only; a batch never fails as a whole.
type Resolver struct {
	cache     *Cache
	hist      historicalService
	primary   livePricer
	secondary livePricer
	l         *zap.Logger
}

// NewResolver creates a resolver around the given session cache and sources.
func NewResolver(cache *Cache, hist historicalService, primary, secondary livePricer, l *zap.Logger) *Resolver {
	return &Resolver{cache: cache, hist: hist, primary: primary, secondary: secondary, l: l}
}

// Resolve resolves a single request. Use ResolveBatch whenever more than one
// rate is needed, to bound round trips.
func (r *Resolver) Resolve(ctx context.Context, pair domain.Pair, ts time.Time) (domain.RateQuote, error) {
	quotes, err := r.ResolveBatch(ctx, []domain.RateRequest{{Pair: pair, Time: ts}})
	if err != nil {
		return domain.RateQuote{}, err
	}
	return quotes[0], nil
}

// ResolveBatch resolves every request and returns one quote per input.
// Duplicate (pair, timestamp) requests are looked up once. Freshly resolved
// quotes are inserted into the cache under the original request timestamps.
// Callers correlate results by (pair, timestamp); ordering is unspecified,
// though in practice input order is preserved.
func (r *Resolver) ResolveBatch(ctx context.Context, reqs []domain.RateRequest) ([]domain.RateQuote, error) {
	unique := make(map[cacheKey]domain.RateQuote, len(reqs))
	var misses []domain.RateRequest

	for _, req := range reqs {
		key := cacheKey{pair: req.Pair.String(), unix: req.Time.UnixNano()}
		if _, seen := unique[key]; seen {
			continue
		}

		// BTC priced in BTC is 1 by definition, no lookup needed
		if req.Pair.From == domain.Bitcoin && req.Pair.To == domain.Bitcoin {
			unique[key] = domain.RateQuote{
				Pair: req.Pair, Time: req.Time,
				Rate: decimal.NewFromInt(1), Source: domain.SourceStatic,
			}
			continue
		}

		if cached, ok := r.cache.Get(req.Pair, req.Time); ok {
			cached.Source = domain.SourceCache
			unique[key] = cached
			continue
		}

		unique[key] = domain.RateQuote{} // placeholder, resolved below
		misses = append(misses, req)
	}

	if len(misses) > 0 {
		resolved, err := r.resolveMisses(ctx, misses)
		if err != nil {
			return nil, err
		}
		for key, quote := range resolved {
			unique[key] = quote
			r.cache.Put(quote)
		}
	}

	out := make([]domain.RateQuote, len(reqs))
	for i, req := range reqs {
		out[i] = unique[cacheKey{pair: req.Pair.String(), unix: req.Time.UnixNano()}]
	}
	return out, nil
}

// resolveMisses issues one batched historical request and falls back to the
// live feeds for every entry the service has no data for.
func (r *Resolver) resolveMisses(ctx context.Context, misses []domain.RateRequest) (map[cacheKey]domain.RateQuote, error) {
	histRates := make(map[string]HistRate)
	entries, err := r.hist.BatchRates(ctx, misses)
	if err != nil {
		// the whole batch degrades to the fallback chain, request by request
		r.l.Warn("historical rate service unavailable, falling back to live rates",
			zap.Int("requests", len(misses)), zap.Error(err))
	} else {
		for _, entry := range entries {
			histRates[entry.Pair+"@"+entry.Date] = entry
		}
	}

	resolved := make(map[cacheKey]domain.RateQuote, len(misses))
	var needLive []domain.RateRequest
	for _, req := range misses {
		key := cacheKey{pair: req.Pair.String(), unix: req.Time.UnixNano()}
		histKey := req.Pair.String() + "@" + req.Time.Truncate(time.Second).UTC().Format(ServiceTimeLayout)

		entry, ok := histRates[histKey]
		if !ok || entry.NoData || !entry.Rate.Valid {
			needLive = append(needLive, req)
			continue
		}

		resolved[key] = domain.RateQuote{
			Pair: req.Pair, Time: req.Time,
			Rate:   normalizeRate(req.Pair, entry.Rate.Decimal),
			Source: domain.SourceHistorical,
		}
	}

	if len(needLive) == 0 {
		return resolved, nil
	}

	quotes := make([]domain.RateQuote, len(needLive))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fallbackConcurrency)
	for i, req := range needLive {
		g.Go(func() error {
			quotes[i] = r.resolveLive(gctx, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, quote := range quotes {
		resolved[cacheKey{pair: quote.Pair.String(), unix: quote.Time.UnixNano()}] = quote
	}
	return resolved, nil
}

// resolveLive walks the live fallback chain for one request. When neither
// feed has data the rate resolves to zero and the asset is treated as
// worthless; that understates totals, so a warning is the required side
// effect.
func (r *Resolver) resolveLive(ctx context.Context, req domain.RateRequest) domain.RateQuote {
	currency := req.Pair.To
	if req.Pair.From != domain.Bitcoin {
		currency = req.Pair.From
	}

	if raw, err := r.primary.BTCRate(ctx, currency); err == nil {
		return domain.RateQuote{
			Pair: req.Pair, Time: req.Time,
			Rate:   normalizeRate(req.Pair, raw),
			Source: domain.SourceLivePrimary,
		}
	} else {
		r.l.Warn("primary live feed has no rate",
			zap.String("currency", currency), zap.Error(err))
	}

	if raw, err := r.secondary.BTCRate(ctx, currency); err == nil {
		return domain.RateQuote{
			Pair: req.Pair, Time: req.Time,
			Rate:   normalizeRate(req.Pair, raw),
			Source: domain.SourceLiveSecondary,
		}
	} else {
		r.l.Warn("secondary live feed has no rate",
			zap.String("currency", currency), zap.Error(err))
	}

	r.l.Warn("no rate data from any source, treating asset as worthless",
		zap.String("pair", req.Pair.String()), zap.Time("ts", req.Time))
	return domain.RateQuote{Pair: req.Pair, Time: req.Time, Rate: decimal.Zero, Source: domain.SourceNone}
}

// normalizeRate inverts raw rates for pairs quoted against USDT: upstream
// sources quote the USDT market the other way around, while callers expect
// every rate in BTC per unit.
func normalizeRate(pair domain.Pair, raw decimal.Decimal) decimal.Decimal {
	if !pair.Includes("USDT") || raw.IsZero() {
		return raw
	}
	return decimal.NewFromInt(1).Div(raw)
}
