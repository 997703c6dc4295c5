// Package internal wires the valuation engine together: event normalization,
// rate resolution and the accounting components built on top of them.
package internal

import (
	"context"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/coinfolio/config"
	"github.com/vadiminshakov/coinfolio/internal/domain"
	"github.com/vadiminshakov/coinfolio/internal/services/costbasis"
	"github.com/vadiminshakov/coinfolio/internal/services/ledger"
	"github.com/vadiminshakov/coinfolio/internal/services/normalizer"
	"github.com/vadiminshakov/coinfolio/internal/services/rates"
	"github.com/vadiminshakov/coinfolio/internal/services/series"
	"github.com/vadiminshakov/coinfolio/internal/services/valuation"
	"github.com/vadiminshakov/coinfolio/internal/storage/ratelog"
)

// Engine is one valuation session over a fixed event history. All state it
// owns (cache, holdings, basis records) is rebuilt wholesale for a new
// session; nothing leaks across sessions except the optional quote journal.
type Engine struct {
	sessionID string
	cfg       config.Config
	events    []domain.Event

	cache     *rates.Cache
	resolver  *rates.Resolver
	costbasis *costbasis.Calculator
	series    *series.Builder
	rollback  *ledger.RollbackCalculator
	valuation *valuation.Service
	quoteLog  *ratelog.WALStore

	l *zap.Logger
}

// NewEngine builds a session over the given activity records. The live
// fallback pricers use public market endpoints, no API keys are required.
func NewEngine(cfg config.Config, records ActivityRecords, l *zap.Logger) (*Engine, error) {
	events, err := normalizer.Normalize(records.Deposits, records.Withdrawals, records.Trades)
	if err != nil {
		return nil, errors.Wrap(err, "normalize activity records")
	}

	cache := rates.NewCache()

	var quoteLog *ratelog.WALStore
	if cfg.WALDir != "" {
		quoteLog, err = ratelog.NewWALStore(cfg.WALDir)
		if err != nil {
			return nil, errors.Wrap(err, "open rate quote journal")
		}
		warmed, err := quoteLog.Quotes()
		if err != nil {
			return nil, errors.Wrap(err, "warm rate cache")
		}
		for _, q := range warmed {
			cache.Put(q)
		}
		l.Info("rate cache warmed from journal", zap.Int("quotes", len(warmed)))
	}

	hist := rates.NewHistoricalClient(cfg.RateServiceURL, cfg.RequestTimeout)
	primary := rates.NewBinancePricer(binance.NewClient("", ""))
	secondary := rates.NewBybitPricer(bybit.NewClient())
	resolver := rates.NewResolver(cache, hist, primary, secondary, l)

	e := &Engine{
		sessionID: uuid.New().String(),
		cfg:       cfg,
		events:    events,
		cache:     cache,
		resolver:  resolver,
		costbasis: costbasis.New(resolver, l),
		series:    series.NewBuilder(resolver, l),
		rollback:  ledger.NewRollbackCalculator(resolver, l),
		valuation: valuation.New(resolver, l),
		quoteLog:  quoteLog,
		l:         l,
	}

	l.Info("valuation session created",
		zap.String("session", e.sessionID),
		zap.Int("events", len(events)),
		zap.String("base", cfg.BaseCurrency))

	return e, nil
}

// SessionID returns the unique identifier of this session.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Holdings replays the full history and returns current per-currency balances.
func (e *Engine) Holdings() domain.Holdings {
	return ledger.Replay(e.events)
}

// CurrentValue prices current holdings in the configured base currency.
func (e *Engine) CurrentValue(ctx context.Context) (decimal.Decimal, []domain.CurrencyValue, error) {
	return e.valuation.Current(ctx, e.Holdings(), e.cfg.BaseCurrency, time.Now())
}

// CostBasis computes the weighted-average cost basis of every traded currency.
func (e *Engine) CostBasis(ctx context.Context) (map[string]domain.CostBasisRecord, error) {
	return e.costbasis.Compute(ctx, e.events)
}

// HistoricalSeries builds the balance and profit/loss series.
func (e *Engine) HistoricalSeries(ctx context.Context) (*series.Result, error) {
	return e.series.Build(ctx, e.events, e.cfg.BaseCurrency)
}

// RecentChanges values the portfolio at the configured look-back cutoffs.
func (e *Engine) RecentChanges(ctx context.Context, onlyTrades bool) ([]domain.WindowValue, error) {
	return e.rollback.RecentChanges(ctx, e.events, e.Holdings(), time.Now(), e.cfg.Windows, onlyTrades)
}

// Close journals the session's resolved quotes and releases the WAL.
func (e *Engine) Close() error {
	if e.quoteLog == nil {
		return nil
	}

	for _, q := range e.cache.All() {
		if err := e.quoteLog.Append(q); err != nil {
			e.l.Warn("failed to journal rate quote", zap.Error(err))
			break
		}
	}

	return e.quoteLog.Close()
}
