package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afelipegc/plata/internal/ledger"
	"github.com/afelipegc/plata/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateAndGetAccount(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	created, err := store.CreateAccount(ctx, "3001234567", "Andres", dec("500000"))
	require.NoError(t, err)
	assert.Equal(t, "3001234567", created.Identifier)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := store.GetAccount(ctx, "3001234567")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("500000")))
	assert.True(t, got.InitialBalance.Equal(dec("500000")))

	_, err = store.GetAccount(ctx, "nope")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestDuplicateIdentifier(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, "300", "first", dec("1"))
	require.NoError(t, err)
	_, err = store.CreateAccount(ctx, "300", "second", dec("2"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdentifier)
}

func TestGetAccountReturnsCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, "300", "a", dec("100"))
	require.NoError(t, err)

	got, err := store.GetAccount(ctx, "300")
	require.NoError(t, err)
	got.Balance = dec("999999")

	again, err := store.GetAccount(ctx, "300")
	require.NoError(t, err)
	assert.True(t, again.Balance.Equal(dec("100")), "caller mutation leaked into the store")
}

func TestUpdateBalance(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, "300", "a", dec("100"))
	require.NoError(t, err)

	require.NoError(t, store.UpdateBalance(ctx, "300", dec("42.50")))
	got, err := store.GetAccount(ctx, "300")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("42.50")))

	assert.ErrorIs(t, store.UpdateBalance(ctx, "nope", dec("1")), ledger.ErrAccountNotFound)
}

func newRecord(from, to, amount string) *models.TransferRecord {
	return &models.TransferRecord{
		FromAccount: from,
		ToAccount:   to,
		Amount:      dec(amount),
		Timestamp:   time.Now().UTC(),
		Status:      models.StatusSucceeded,
	}
}

func TestAppendAndListTransfers(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	id1, err := store.AppendTransfer(ctx, newRecord("A", "B", "10"))
	require.NoError(t, err)
	id2, err := store.AppendTransfer(ctx, newRecord("B", "C", "20"))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	records, err := store.ListTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Newest first.
	assert.Equal(t, id2, records[0].ID)
	assert.Equal(t, id1, records[1].ID)
}

func TestListTransfersForAccount(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.AppendTransfer(ctx, newRecord("A", "B", "10"))
	require.NoError(t, err)
	_, err = store.AppendTransfer(ctx, newRecord("C", "A", "20"))
	require.NoError(t, err)
	_, err = store.AppendTransfer(ctx, newRecord("B", "C", "30"))
	require.NoError(t, err)

	history, err := store.ListTransfersForAccount(ctx, "A")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.DirectionReceived, history[0].Direction)
	assert.Equal(t, models.DirectionSent, history[1].Direction)

	// Idempotent read: a second identical call returns the same sequence.
	again, err := store.ListTransfersForAccount(ctx, "A")
	require.NoError(t, err)
	require.Len(t, again, 2)
	for i := range history {
		assert.Equal(t, history[i].ID, again[i].ID)
		assert.Equal(t, history[i].Direction, again[i].Direction)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, "A", "a", dec("100"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(tx ledger.Store) error {
		if err := tx.UpdateBalance(ctx, "A", dec("0")); err != nil {
			return err
		}
		if _, err := tx.AppendTransfer(ctx, newRecord("A", "B", "100")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetAccount(ctx, "A")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("100")), "rollback lost the original balance")

	records, err := store.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWithinTxCommits(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, "A", "a", dec("100"))
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(tx ledger.Store) error {
		return tx.UpdateBalance(ctx, "A", dec("58"))
	})
	require.NoError(t, err)

	got, err := store.GetAccount(ctx, "A")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("58")))
}

func TestIdempotencyKeys(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	missing, err := store.GetIdempotentResult(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	result := &ledger.TransferResult{RecordID: 7, FromIdentifier: "A", ToIdentifier: "B", Amount: dec("10")}
	require.NoError(t, store.SaveIdempotentResult(ctx, "k1", result))

	got, err := store.GetIdempotentResult(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.RecordID)

	// A second claim of the same key must fail.
	assert.Error(t, store.SaveIdempotentResult(ctx, "k1", result))
}

func TestConservationTotals(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, "A", "a", dec("100"))
	require.NoError(t, err)
	_, err = store.CreateAccount(ctx, "B", "b", dec("50"))
	require.NoError(t, err)

	current, provisioned, err := store.ConservationTotals(ctx)
	require.NoError(t, err)
	assert.True(t, current.Equal(dec("150")))
	assert.True(t, provisioned.Equal(dec("150")))

	// Moving money keeps the totals equal; destroying it does not.
	require.NoError(t, store.UpdateBalance(ctx, "A", dec("60")))
	current, provisioned, err = store.ConservationTotals(ctx)
	require.NoError(t, err)
	assert.True(t, current.Equal(dec("110")))
	assert.True(t, provisioned.Equal(dec("150")))
}
