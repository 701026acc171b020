package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer record statuses.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Directions of a transfer as seen from one account.
const (
	DirectionSent     = "SENT"
	DirectionReceived = "RECEIVED"
)

// TransferRecord is one immutable entry in the transaction log. Records are
// only ever appended; there is no update or delete path anywhere.
type TransferRecord struct {
	ID          int64           `json:"id"`
	FromAccount string          `json:"fromAccount"`
	ToAccount   string          `json:"toAccount"`
	Amount      decimal.Decimal `json:"amount"`
	Note        string          `json:"note,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Status      string          `json:"status"`
}

// AccountTransfer is a TransferRecord viewed from one account's side.
type AccountTransfer struct {
	TransferRecord
	Direction string `json:"direction"`
}
