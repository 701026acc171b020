package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/afelipegc/plata/internal/models"
)

// Reader is the narrow read-only view the query facade consumes. None of its
// methods mutate state, so they may be served from a replica without
// affecting transfer correctness.
type Reader interface {
	GetAccount(ctx context.Context, identifier string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	ListTransfers(ctx context.Context) ([]*models.TransferRecord, error)
	ListTransfersForAccount(ctx context.Context, identifier string) ([]*models.AccountTransfer, error)
	Ping(ctx context.Context) error
}

// Store is the durable account table plus the append-only transfer log.
// It carries no business rules: amount signs, sufficiency and self-transfer
// checks all belong to the Engine. The store's only job is durability,
// uniqueness of identifiers and the atomicity of WithinTx.
type Store interface {
	Reader

	// CreateAccount fails with ErrDuplicateIdentifier when the identifier
	// is already taken.
	CreateAccount(ctx context.Context, identifier, displayName string, initialBalance decimal.Decimal) (*models.Account, error)

	// UpdateBalance overwrites the stored balance unconditionally. The
	// caller must have computed newBalance inside the same atomic unit as
	// the read it is based on.
	UpdateBalance(ctx context.Context, identifier string, newBalance decimal.Decimal) error

	// AppendTransfer writes record and returns its assigned monotonic id.
	AppendTransfer(ctx context.Context, record *models.TransferRecord) (int64, error)

	// GetIdempotentResult returns the result recorded under key, or
	// (nil, nil) when the key has never been claimed.
	GetIdempotentResult(ctx context.Context, key string) (*TransferResult, error)

	// SaveIdempotentResult claims key for result. Claiming an already
	// claimed key fails, which aborts the surrounding atomic unit.
	SaveIdempotentResult(ctx context.Context, key string, result *TransferResult) error

	// WithinTx runs fn against a transactional view of the store. All
	// mutations made through that view become visible together on commit
	// or not at all; reads of account rows inside the unit are isolated
	// from concurrent units touching the same rows.
	WithinTx(ctx context.Context, fn func(Store) error) error

	// ConservationTotals returns the sum of all current balances and the
	// sum of all provisioned initial balances. Transfers keep the two
	// equal; the audit job alarms when they drift.
	ConservationTotals(ctx context.Context) (current, provisioned decimal.Decimal, err error)
}
