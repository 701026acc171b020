package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a balance-holding wallet identified by a phone number.
type Account struct {
	Identifier  string          `json:"identifier"`
	DisplayName string          `json:"displayName"`
	Balance     decimal.Decimal `json:"balance"`
	CreatedAt   time.Time       `json:"createdAt"`

	// InitialBalance is the amount the account was provisioned with.
	// It never changes and exists so the conservation audit can compare
	// the current ledger total against the total ever put into it.
	InitialBalance decimal.Decimal `json:"-"`
}
