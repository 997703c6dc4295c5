// Package ratelog persists resolved rate quotes in a WAL so a later run can
// warm its session cache instead of re-querying the rate service.
package ratelog

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/coinfolio/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultQuoteDir   = "./wal/rates"
	quoteSegmentLimit = 1000
	quoteMaxSegments  = 100
	quoteKeyPrefix    = "rate_quote_"
)

type quoteRecord struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Time   time.Time       `json:"ts"`
	Rate   decimal.Decimal `json:"rate"`
	Source int             `json:"source"`
}

// WALStore journals resolved quotes in a WAL directory.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewWALStore initializes a WAL-backed quote store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultQuoteDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "rates_",
		SegmentThreshold: quoteSegmentLimit,
		MaxSegments:      quoteMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init rate quote WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append journals one resolved quote. Quotes without data are not persisted,
// a later run should retry those sources instead of trusting a zero.
func (s *WALStore) Append(q domain.RateQuote) error {
	if s == nil || s.wal == nil {
		return errors.New("rate quote store is not initialized")
	}
	if q.NoData() {
		return nil
	}

	payload, err := json.Marshal(quoteRecord{
		From:   q.Pair.From,
		To:     q.Pair.To,
		Time:   q.Time,
		Rate:   q.Rate,
		Source: int(q.Source),
	})
	if err != nil {
		return errors.Wrap(err, "marshal rate quote")
	}

	key := fmt.Sprintf("%s%s_%d", quoteKeyPrefix, q.Pair.Symbol(), q.Time.UnixNano())

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// Quotes replays the journal and returns every persisted quote.
func (s *WALStore) Quotes() ([]domain.RateQuote, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("rate quote store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var quotes []domain.RateQuote
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, quoteKeyPrefix) {
			continue
		}
		var record quoteRecord
		if err := json.Unmarshal(msg.Value, &record); err != nil {
			return nil, errors.Wrap(err, "decode rate quote")
		}
		quotes = append(quotes, domain.RateQuote{
			Pair:   domain.Pair{From: record.From, To: record.To},
			Time:   record.Time,
			Rate:   record.Rate,
			Source: domain.RateSource(record.Source),
		})
	}

	return quotes, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("rate quote store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
