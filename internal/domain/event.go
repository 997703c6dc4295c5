package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind tags the variant of an account activity event.
type EventKind int

const (
	// EventDeposit funds arriving on the account.
	EventDeposit EventKind = iota
	// EventWithdrawal funds leaving the account.
	EventWithdrawal
	// EventTrade an executed exchange order.
	EventTrade
)

// String returns a human-readable kind name.
func (k EventKind) String() string {
	switch k {
	case EventDeposit:
		return "deposit"
	case EventWithdrawal:
		return "withdrawal"
	case EventTrade:
		return "trade"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is one tagged account activity record. Events are immutable once
// created by the normalizer; the replayer matches exhaustively on Kind.
type Event struct {
	Kind EventKind
	Time time.Time

	// Currency and Amount describe deposits and withdrawals.
	Currency string
	Amount   decimal.Decimal

	// Trade fields. Price is quoted in To units per one From unit,
	// Amount is the From quantity, Cost the To quantity.
	Pair       Pair
	Buy        bool
	Price      decimal.Decimal
	Cost       decimal.Decimal
	FeePercent decimal.Decimal
}

// NewDeposit creates a deposit event.
func NewDeposit(currency string, amount decimal.Decimal, ts time.Time) Event {
	return Event{Kind: EventDeposit, Time: ts, Currency: currency, Amount: amount}
}

// NewWithdrawal creates a withdrawal event.
func NewWithdrawal(currency string, amount decimal.Decimal, ts time.Time) Event {
	return Event{Kind: EventWithdrawal, Time: ts, Currency: currency, Amount: amount}
}

// NewTrade creates a trade event.
func NewTrade(pair Pair, buy bool, price, amount, cost, feePercent decimal.Decimal, ts time.Time) Event {
	return Event{
		Kind:       EventTrade,
		Time:       ts,
		Pair:       pair,
		Buy:        buy,
		Price:      price,
		Amount:     amount,
		Cost:       cost,
		FeePercent: feePercent,
	}
}

// String returns a human-readable string representation.
func (e *Event) String() string {
	if e.Kind == EventTrade {
		side := "sell"
		if e.Buy {
			side = "buy"
		}
		return fmt.Sprintf("trade %s %s amount: %s cost: %s", side, e.Pair.String(), e.Amount.String(), e.Cost.String())
	}
	return fmt.Sprintf("%s %s %s", e.Kind.String(), e.Amount.String(), e.Currency)
}

// TransferRecord is a parsed deposit or withdrawal row as provided by the
// upstream export parser.
type TransferRecord struct {
	Date     time.Time       `json:"date"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// TradeRecord is a parsed trade row as provided by the upstream export parser.
type TradeRecord struct {
	Date   time.Time       `json:"date"`
	Pair   string          `json:"pair"`
	Buy    bool            `json:"buy"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Cost   decimal.Decimal `json:"cost"`
	Fee    decimal.Decimal `json:"fee"`
}
