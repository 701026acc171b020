package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/afelipegc/plata/internal/ledger"
	"github.com/afelipegc/plata/internal/models"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is the PostgreSQL-backed account store and transaction log.
// Inside WithinTx it reads account rows with FOR UPDATE so that concurrent
// transfers touching the same account serialize on the row lock.
type Repository struct {
	db   *sql.DB
	q    querier
	inTx bool
	log  *logrus.Logger
}

var _ ledger.Store = (*Repository)(nil)

// NewRepository initializes a repository on db.
func NewRepository(db *sql.DB, log *logrus.Logger) *Repository {
	return &Repository{db: db, q: db, log: log}
}

// InitSchema creates the ledger tables when they do not exist yet.
func (r *Repository) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			identifier      TEXT PRIMARY KEY,
			display_name    TEXT NOT NULL,
			balance         NUMERIC(20,2) NOT NULL CHECK (balance >= 0),
			initial_balance NUMERIC(20,2) NOT NULL CHECK (initial_balance >= 0),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS transfers (
			id           BIGSERIAL PRIMARY KEY,
			from_account TEXT NOT NULL REFERENCES accounts (identifier),
			to_account   TEXT NOT NULL REFERENCES accounts (identifier),
			amount       NUMERIC(20,2) NOT NULL CHECK (amount > 0),
			note         TEXT NOT NULL DEFAULT '',
			ts           TIMESTAMPTZ NOT NULL,
			status       TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS transfers_from_idx ON transfers (from_account)`,
		`CREATE INDEX IF NOT EXISTS transfers_to_idx ON transfers (to_account)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key              TEXT PRIMARY KEY,
			record_id        BIGINT NOT NULL REFERENCES transfers (id),
			from_account     TEXT NOT NULL,
			to_account       TEXT NOT NULL,
			amount           NUMERIC(20,2) NOT NULL,
			new_from_balance NUMERIC(20,2) NOT NULL,
			new_to_balance   NUMERIC(20,2) NOT NULL,
			ts               TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	r.log.Info("ledger schema ready")
	return nil
}

// CreateAccount inserts a new account row.
func (r *Repository) CreateAccount(ctx context.Context, identifier, displayName string, initialBalance decimal.Decimal) (*models.Account, error) {
	account := &models.Account{
		Identifier:     identifier,
		DisplayName:    displayName,
		Balance:        initialBalance,
		InitialBalance: initialBalance,
	}
	query := `
		INSERT INTO accounts (identifier, display_name, balance, initial_balance)
		VALUES ($1, $2, $3, $3)
		RETURNING created_at`
	err := r.q.QueryRowContext(ctx, query, identifier, displayName, initialBalance).
		Scan(&account.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, fmt.Errorf("%w: %s", ledger.ErrDuplicateIdentifier, identifier)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// GetAccount fetches a single account row. Inside an atomic unit the row is
// locked for the remainder of the unit.
func (r *Repository) GetAccount(ctx context.Context, identifier string) (*models.Account, error) {
	query := `
		SELECT identifier, display_name, balance, initial_balance, created_at
		FROM accounts
		WHERE identifier = $1`
	if r.inTx {
		query += ` FOR UPDATE`
	}
	account := &models.Account{}
	err := r.q.QueryRowContext(ctx, query, identifier).
		Scan(&account.Identifier, &account.DisplayName, &account.Balance, &account.InitialBalance, &account.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// UpdateBalance overwrites the balance of one account row.
func (r *Repository) UpdateBalance(ctx context.Context, identifier string, newBalance decimal.Decimal) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET balance = $1 WHERE identifier = $2`, newBalance, identifier)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, identifier)
	}
	return nil
}

// AppendTransfer writes one transfer record and returns its assigned id.
func (r *Repository) AppendTransfer(ctx context.Context, record *models.TransferRecord) (int64, error) {
	query := `
		INSERT INTO transfers (from_account, to_account, amount, note, ts, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := r.q.QueryRowContext(ctx, query,
		record.FromAccount, record.ToAccount, record.Amount, record.Note, record.Timestamp, record.Status).
		Scan(&record.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to append transfer: %w", err)
	}
	return record.ID, nil
}

// ListAccounts returns every account.
func (r *Repository) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT identifier, display_name, balance, initial_balance, created_at
		FROM accounts
		ORDER BY created_at, identifier`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account := &models.Account{}
		if err := rows.Scan(&account.Identifier, &account.DisplayName, &account.Balance,
			&account.InitialBalance, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// ListTransfers returns the full transfer history, newest first.
func (r *Repository) ListTransfers(ctx context.Context) ([]*models.TransferRecord, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, from_account, to_account, amount, note, ts, status
		FROM transfers
		ORDER BY ts DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()
	return scanTransfers(rows)
}

// ListTransfersForAccount returns the history referencing identifier, newest
// first, with the direction seen from that account.
func (r *Repository) ListTransfersForAccount(ctx context.Context, identifier string) ([]*models.AccountTransfer, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, from_account, to_account, amount, note, ts, status
		FROM transfers
		WHERE from_account = $1 OR to_account = $1
		ORDER BY ts DESC, id DESC`, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	records, err := scanTransfers(rows)
	if err != nil {
		return nil, err
	}
	history := make([]*models.AccountTransfer, 0, len(records))
	for _, record := range records {
		direction := models.DirectionReceived
		if record.FromAccount == identifier {
			direction = models.DirectionSent
		}
		history = append(history, &models.AccountTransfer{TransferRecord: *record, Direction: direction})
	}
	return history, nil
}

func scanTransfers(rows *sql.Rows) ([]*models.TransferRecord, error) {
	var records []*models.TransferRecord
	for rows.Next() {
		record := &models.TransferRecord{}
		if err := rows.Scan(&record.ID, &record.FromAccount, &record.ToAccount,
			&record.Amount, &record.Note, &record.Timestamp, &record.Status); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetIdempotentResult loads the result previously claimed under key.
func (r *Repository) GetIdempotentResult(ctx context.Context, key string) (*ledger.TransferResult, error) {
	result := &ledger.TransferResult{}
	err := r.q.QueryRowContext(ctx, `
		SELECT record_id, from_account, to_account, amount, new_from_balance, new_to_balance, ts
		FROM idempotency_keys
		WHERE key = $1`, key).
		Scan(&result.RecordID, &result.FromIdentifier, &result.ToIdentifier,
			&result.Amount, &result.NewFromBalance, &result.NewToBalance, &result.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return result, nil
}

// SaveIdempotentResult claims key for result. A concurrent claim of the same
// key hits the primary key and aborts the unit, which is the conservative
// outcome: the loser rolls back instead of double-applying.
func (r *Repository) SaveIdempotentResult(ctx context.Context, key string, result *ledger.TransferResult) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, record_id, from_account, to_account, amount, new_from_balance, new_to_balance, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key, result.RecordID, result.FromIdentifier, result.ToIdentifier,
		result.Amount, result.NewFromBalance, result.NewToBalance, result.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}

// WithinTx runs fn inside one database transaction. The transactional view
// reads account rows with FOR UPDATE; commit happens only when fn returns
// nil, otherwise everything rolls back.
func (r *Repository) WithinTx(ctx context.Context, fn func(ledger.Store) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txRepo := &Repository{db: r.db, q: tx, inTx: true, log: r.log}
	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Errorf("rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ConservationTotals sums current and provisioned balances across all
// accounts.
func (r *Repository) ConservationTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	var current, provisioned decimal.Decimal
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(balance), 0), COALESCE(SUM(initial_balance), 0)
		FROM accounts`).
		Scan(&current, &provisioned)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum balances: %w", err)
	}
	return current, provisioned, nil
}

// Ping verifies database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
