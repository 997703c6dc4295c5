package internal

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/coinfolio/internal/domain"
)

// ActivityRecords is the parsed account activity as produced by the upstream
// export parser: parallel lists of deposits, withdrawals and trades.
type ActivityRecords struct {
	Deposits    []domain.TransferRecord `json:"deposits"`
	Withdrawals []domain.TransferRecord `json:"withdrawals"`
	Trades      []domain.TradeRecord    `json:"trades"`
}

// LoadActivity reads parsed activity records from a JSON file.
func LoadActivity(path string) (ActivityRecords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ActivityRecords{}, errors.Wrapf(err, "read activity records from %s", path)
	}

	var records ActivityRecords
	if err := json.Unmarshal(data, &records); err != nil {
		return ActivityRecords{}, errors.Wrap(err, "decode activity records")
	}

	return records, nil
}
