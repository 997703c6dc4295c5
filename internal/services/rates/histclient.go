package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/coinfolio/internal/domain"
)

// ServiceTimeLayout is the second-precision timestamp format of the
// historical rate service.
const ServiceTimeLayout = "2006-01-02 15:04:05"

const defaultRequestTimeout = 15 * time.Second

// HistRate is one entry of a batch response from the historical rate service.
// Response order is not guaranteed to match request order; entries are
// correlated by (pair, date) value.
type HistRate struct {
	Pair   string              `json:"pair"`
	Date   string              `json:"date"`
	Rate   decimal.NullDecimal `json:"rate"`
	NoData bool                `json:"no_data"`
	Cached bool                `json:"cached"`
}

// HistoricalClient talks to the historical exchange rate service. The service
// is a bespoke internal JSON API, so the client is plain net/http.
type HistoricalClient struct {
	baseURL string
	client  *http.Client
}

// NewHistoricalClient creates a client for the rate service at baseURL.
func NewHistoricalClient(baseURL string, timeout time.Duration) *HistoricalClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HistoricalClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type batchRateRequest struct {
	Pair string `json:"pair"`
	Date string `json:"date"`
}

// BatchRates issues one batched lookup for every request. Timestamps are
// truncated to whole seconds before being sent.
func (c *HistoricalClient) BatchRates(ctx context.Context, reqs []domain.RateRequest) ([]HistRate, error) {
	payload := make([]batchRateRequest, len(reqs))
	for i, req := range reqs {
		payload[i] = batchRateRequest{
			Pair: req.Pair.String(),
			Date: req.Time.Truncate(time.Second).UTC().Format(ServiceTimeLayout),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal batch rate request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/batch_rate", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build batch rate request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "query historical rate service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("historical rate service returned status %d", resp.StatusCode)
	}

	var rates []HistRate
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return nil, errors.Wrap(err, "decode batch rate response")
	}

	return rates, nil
}
