// Package normalizer converts parsed deposit, withdrawal and trade records
// into one tagged event sequence for the replayer.
package normalizer

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/coinfolio/internal/domain"
)

// Normalize merges the parallel record lists into a single tagged event
// sequence. No filtering and no numeric validation happens here; malformed
// fields are the upstream parser's responsibility. The result is sorted
// ascending by timestamp with a stable sort, so records sharing a timestamp
// keep their relative input order. That tie-break carries no meaning beyond
// reproducibility.
func Normalize(deposits, withdrawals []domain.TransferRecord, trades []domain.TradeRecord) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(deposits)+len(withdrawals)+len(trades))

	for _, d := range deposits {
		events = append(events, domain.NewDeposit(d.Currency, d.Amount, d.Date))
	}
	for _, w := range withdrawals {
		events = append(events, domain.NewWithdrawal(w.Currency, w.Amount, w.Date))
	}
	for _, t := range trades {
		pair, err := domain.PairFromString(t.Pair)
		if err != nil {
			return nil, errors.Wrapf(err, "trade at %s", t.Date)
		}
		events = append(events, domain.NewTrade(pair, t.Buy, t.Price, t.Amount, t.Cost, t.Fee, t.Date))
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})

	return events, nil
}
