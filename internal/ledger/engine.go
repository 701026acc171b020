package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/afelipegc/plata/internal/models"
)

// TransferRequest is one attempt to move money between two accounts.
// Amount is carried as its wire string so that parsing stays an engine
// decision. IdempotencyKey is optional; when set, a retried request with the
// same key returns the originally recorded result without reapplying it.
type TransferRequest struct {
	FromIdentifier string
	ToIdentifier   string
	Amount         string
	Note           string
	IdempotencyKey string
}

// TransferResult is the outcome of a committed transfer.
type TransferResult struct {
	RecordID       int64           `json:"recordId"`
	FromIdentifier string          `json:"fromIdentifier"`
	ToIdentifier   string          `json:"toIdentifier"`
	Amount         decimal.Decimal `json:"amount"`
	NewFromBalance decimal.Decimal `json:"newFromBalance"`
	NewToBalance   decimal.Decimal `json:"newToBalance"`
	Timestamp      time.Time       `json:"timestamp"`

	// Replayed marks a result served from an idempotency key instead of a
	// fresh commit.
	Replayed bool `json:"-"`
}

// Engine validates transfer requests and applies them as one atomic unit
// against the injected store. It is the sole writer of account balances and
// the sole creator of transfer records.
type Engine struct {
	store Store
	log   *logrus.Logger
}

// NewEngine initializes a transfer engine on top of store.
func NewEngine(store Store, log *logrus.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// CreateAccount provisions a new account. Not part of the transfer path;
// used by seed tooling and the admin endpoint.
func (e *Engine) CreateAccount(ctx context.Context, identifier, displayName, initialBalance string) (*models.Account, error) {
	if identifier == "" || displayName == "" {
		return nil, fmt.Errorf("%w: identifier and displayName are required", ErrInvalidRequest)
	}

	balance := decimal.Zero
	if initialBalance != "" {
		var err error
		balance, err = decimal.NewFromString(initialBalance)
		if err != nil || balance.IsNegative() {
			return nil, fmt.Errorf("%w: initial balance %q", ErrInvalidAmount, initialBalance)
		}
	}

	account, err := e.store.CreateAccount(ctx, identifier, displayName, balance)
	if err != nil {
		return nil, e.classify(err)
	}

	e.log.WithFields(logrus.Fields{
		"identifier": account.Identifier,
		"balance":    account.Balance.String(),
	}).Info("account provisioned")
	return account, nil
}

// Transfer validates req and, only if every check passes, debits the source,
// credits the destination and appends one SUCCEEDED record as a single
// atomic unit. Validation failures reject the request before any mutation;
// no record is written for them.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.FromIdentifier == "" || req.ToIdentifier == "" || req.Amount == "" {
		return nil, fmt.Errorf("%w: fromIdentifier, toIdentifier and amount are required", ErrInvalidRequest)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, req.Amount)
	}

	if req.FromIdentifier == req.ToIdentifier {
		return nil, fmt.Errorf("%w: %s", ErrSelfTransfer, req.FromIdentifier)
	}

	var result *TransferResult
	err = e.store.WithinTx(ctx, func(tx Store) error {
		if req.IdempotencyKey != "" {
			prev, err := tx.GetIdempotentResult(ctx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if prev != nil {
				prev.Replayed = true
				result = prev
				return nil
			}
		}

		from, to, err := lockAccounts(ctx, tx, req.FromIdentifier, req.ToIdentifier)
		if err != nil {
			return err
		}

		if from.Balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s does not cover %s", ErrInsufficientFunds, from.Balance, amount)
		}

		newFrom := from.Balance.Sub(amount)
		newTo := to.Balance.Add(amount)
		if err := tx.UpdateBalance(ctx, from.Identifier, newFrom); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, to.Identifier, newTo); err != nil {
			return err
		}

		record := &models.TransferRecord{
			FromAccount: from.Identifier,
			ToAccount:   to.Identifier,
			Amount:      amount,
			Note:        req.Note,
			Timestamp:   time.Now().UTC(),
			Status:      models.StatusSucceeded,
		}
		id, err := tx.AppendTransfer(ctx, record)
		if err != nil {
			return err
		}

		result = &TransferResult{
			RecordID:       id,
			FromIdentifier: from.Identifier,
			ToIdentifier:   to.Identifier,
			Amount:         amount,
			NewFromBalance: newFrom,
			NewToBalance:   newTo,
			Timestamp:      record.Timestamp,
		}
		if req.IdempotencyKey != "" {
			return tx.SaveIdempotentResult(ctx, req.IdempotencyKey, result)
		}
		return nil
	})
	if err != nil {
		err = e.classify(err)
		if IsBusiness(err) {
			e.log.WithFields(logrus.Fields{
				"from": req.FromIdentifier,
				"to":   req.ToIdentifier,
			}).Debugf("transfer rejected: %v", err)
		}
		return nil, err
	}

	if result.Replayed {
		e.log.WithField("idempotency_key", req.IdempotencyKey).
			Infof("transfer replayed from idempotency key, record %d", result.RecordID)
		return result, nil
	}

	e.log.WithFields(logrus.Fields{
		"record_id": result.RecordID,
		"from":      result.FromIdentifier,
		"to":        result.ToIdentifier,
		"amount":    result.Amount.String(),
	}).Info("transfer committed")
	return result, nil
}

// lockAccounts fetches both parties inside the atomic unit. Accounts are
// fetched in lexicographic identifier order so that two opposing transfers
// acquire row locks in the same order and cannot deadlock. The source is
// still the first existence check reported when both are missing.
func lockAccounts(ctx context.Context, tx Store, fromID, toID string) (from, to *models.Account, err error) {
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}

	for _, id := range [2]string{first, second} {
		account, err := tx.GetAccount(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				continue
			}
			return nil, nil, err
		}
		if id == fromID {
			from = account
		} else {
			to = account
		}
	}

	if from == nil {
		return nil, nil, fmt.Errorf("%w: source account %s", ErrAccountNotFound, fromID)
	}
	if to == nil {
		return nil, nil, fmt.Errorf("%w: destination account %s", ErrAccountNotFound, toID)
	}
	return from, to, nil
}

// classify folds unexpected store errors into ErrStorageFault, leaving
// business rejections untouched.
func (e *Engine) classify(err error) error {
	if err == nil || IsBusiness(err) {
		return err
	}
	e.log.Errorf("atomic unit aborted: %v", err)
	return fmt.Errorf("%w: %v", ErrStorageFault, err)
}
