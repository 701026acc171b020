// Package memory provides an in-memory ledger.Store used by tests and as a
// no-database development backend. One mutex serializes every atomic unit,
// and WithinTx snapshots state so a failing unit rolls back completely.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/afelipegc/plata/internal/ledger"
	"github.com/afelipegc/plata/internal/models"
)

type state struct {
	accounts  map[string]*models.Account
	transfers []*models.TransferRecord
	idem      map[string]*ledger.TransferResult
	nextID    int64
}

// Store is the lock-guarded outer handle.
type Store struct {
	mu sync.Mutex
	st state
}

var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Store = (*txStore)(nil)
)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{st: state{
		accounts: make(map[string]*models.Account),
		idem:     make(map[string]*ledger.TransferResult),
	}}
}

// txStore exposes state without locking; it is only handed to WithinTx
// callbacks while the outer lock is held.
type txStore struct {
	st *state
}

func (s *Store) CreateAccount(ctx context.Context, identifier, displayName string, initialBalance decimal.Decimal) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createAccount(identifier, displayName, initialBalance)
}

func (s *Store) GetAccount(ctx context.Context, identifier string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getAccount(identifier)
}

func (s *Store) UpdateBalance(ctx context.Context, identifier string, newBalance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateBalance(identifier, newBalance)
}

func (s *Store) AppendTransfer(ctx context.Context, record *models.TransferRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.appendTransfer(record)
}

func (s *Store) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listAccounts()
}

func (s *Store) ListTransfers(ctx context.Context) ([]*models.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listTransfers()
}

func (s *Store) ListTransfersForAccount(ctx context.Context, identifier string) ([]*models.AccountTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listTransfersForAccount(identifier)
}

func (s *Store) GetIdempotentResult(ctx context.Context, key string) (*ledger.TransferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getIdempotentResult(key)
}

func (s *Store) SaveIdempotentResult(ctx context.Context, key string, result *ledger.TransferResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.saveIdempotentResult(key, result)
}

func (s *Store) ConservationTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.conservationTotals()
}

// WithinTx holds the store lock for the whole unit, so concurrent units are
// fully serialized. On error the pre-unit snapshot is restored, making the
// unit all-or-nothing.
func (s *Store) WithinTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&txStore{st: &s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (t *txStore) CreateAccount(ctx context.Context, identifier, displayName string, initialBalance decimal.Decimal) (*models.Account, error) {
	return t.st.createAccount(identifier, displayName, initialBalance)
}

func (t *txStore) GetAccount(ctx context.Context, identifier string) (*models.Account, error) {
	return t.st.getAccount(identifier)
}

func (t *txStore) UpdateBalance(ctx context.Context, identifier string, newBalance decimal.Decimal) error {
	return t.st.updateBalance(identifier, newBalance)
}

func (t *txStore) AppendTransfer(ctx context.Context, record *models.TransferRecord) (int64, error) {
	return t.st.appendTransfer(record)
}

func (t *txStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	return t.st.listAccounts()
}

func (t *txStore) ListTransfers(ctx context.Context) ([]*models.TransferRecord, error) {
	return t.st.listTransfers()
}

func (t *txStore) ListTransfersForAccount(ctx context.Context, identifier string) ([]*models.AccountTransfer, error) {
	return t.st.listTransfersForAccount(identifier)
}

func (t *txStore) GetIdempotentResult(ctx context.Context, key string) (*ledger.TransferResult, error) {
	return t.st.getIdempotentResult(key)
}

func (t *txStore) SaveIdempotentResult(ctx context.Context, key string, result *ledger.TransferResult) error {
	return t.st.saveIdempotentResult(key, result)
}

func (t *txStore) ConservationTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	return t.st.conservationTotals()
}

// WithinTx on a transactional view joins the surrounding unit.
func (t *txStore) WithinTx(ctx context.Context, fn func(ledger.Store) error) error {
	return fn(t)
}

func (t *txStore) Ping(ctx context.Context) error { return nil }

func (st *state) createAccount(identifier, displayName string, initialBalance decimal.Decimal) (*models.Account, error) {
	if _, exists := st.accounts[identifier]; exists {
		return nil, fmt.Errorf("%w: %s", ledger.ErrDuplicateIdentifier, identifier)
	}
	account := &models.Account{
		Identifier:     identifier,
		DisplayName:    displayName,
		Balance:        initialBalance,
		InitialBalance: initialBalance,
		CreatedAt:      time.Now().UTC(),
	}
	st.accounts[identifier] = account
	cp := *account
	return &cp, nil
}

func (st *state) getAccount(identifier string) (*models.Account, error) {
	account, exists := st.accounts[identifier]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, identifier)
	}
	cp := *account
	return &cp, nil
}

func (st *state) updateBalance(identifier string, newBalance decimal.Decimal) error {
	account, exists := st.accounts[identifier]
	if !exists {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, identifier)
	}
	account.Balance = newBalance
	return nil
}

func (st *state) appendTransfer(record *models.TransferRecord) (int64, error) {
	st.nextID++
	cp := *record
	cp.ID = st.nextID
	st.transfers = append(st.transfers, &cp)
	return cp.ID, nil
}

func (st *state) listAccounts() ([]*models.Account, error) {
	out := make([]*models.Account, 0, len(st.accounts))
	for _, account := range st.accounts {
		cp := *account
		out = append(out, &cp)
	}
	return out, nil
}

// listTransfers returns copies, newest first (append order is commit order).
func (st *state) listTransfers() ([]*models.TransferRecord, error) {
	out := make([]*models.TransferRecord, 0, len(st.transfers))
	for i := len(st.transfers) - 1; i >= 0; i-- {
		cp := *st.transfers[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (st *state) listTransfersForAccount(identifier string) ([]*models.AccountTransfer, error) {
	var out []*models.AccountTransfer
	for i := len(st.transfers) - 1; i >= 0; i-- {
		record := st.transfers[i]
		if record.FromAccount != identifier && record.ToAccount != identifier {
			continue
		}
		direction := models.DirectionReceived
		if record.FromAccount == identifier {
			direction = models.DirectionSent
		}
		out = append(out, &models.AccountTransfer{TransferRecord: *record, Direction: direction})
	}
	return out, nil
}

func (st *state) getIdempotentResult(key string) (*ledger.TransferResult, error) {
	result, exists := st.idem[key]
	if !exists {
		return nil, nil
	}
	cp := *result
	return &cp, nil
}

func (st *state) saveIdempotentResult(key string, result *ledger.TransferResult) error {
	if _, exists := st.idem[key]; exists {
		return fmt.Errorf("idempotency key already claimed: %s", key)
	}
	cp := *result
	st.idem[key] = &cp
	return nil
}

func (st *state) conservationTotals() (decimal.Decimal, decimal.Decimal, error) {
	current, provisioned := decimal.Zero, decimal.Zero
	for _, account := range st.accounts {
		current = current.Add(account.Balance)
		provisioned = provisioned.Add(account.InitialBalance)
	}
	return current, provisioned, nil
}

func (st *state) clone() state {
	accounts := make(map[string]*models.Account, len(st.accounts))
	for id, account := range st.accounts {
		cp := *account
		accounts[id] = &cp
	}
	idem := make(map[string]*ledger.TransferResult, len(st.idem))
	for key, result := range st.idem {
		cp := *result
		idem[key] = &cp
	}
	transfers := make([]*models.TransferRecord, len(st.transfers))
	copy(transfers, st.transfers)
	return state{
		accounts:  accounts,
		transfers: transfers,
		idem:      idem,
		nextID:    st.nextID,
	}
}
