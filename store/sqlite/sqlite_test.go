package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-engine/ledger"
	"github.com/warp/finance-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_GetSetDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "v1"))
	require.NoError(t, store.Set(ctx, "k", "v2"))
	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"), "deleting twice is fine")
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SessionSurvivesReopen(t *testing.T) {
	// GIVEN: A file database with a token and a snapshot
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	store, err := sqlite.New(path)
	require.NoError(t, err)

	book := ledger.NewBook()
	acc, err := book.CreateAccount(ledger.AccountInput{Name: "Bank", Type: ledger.AccountBank, Balance: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	_, err = book.RecordTransaction(ledger.TransactionInput{
		Kind: ledger.Expense, AccountID: acc.ID, CategoryID: 11,
		Amount: decimal.RequireFromString("12.30"), Date: ledger.NewDate(2025, time.July, 4),
	})
	require.NoError(t, err)

	require.NoError(t, ledger.SaveToken(ctx, store, "bearer-123"))
	require.NoError(t, ledger.SaveSnapshot(ctx, store, book))
	require.NoError(t, store.Close())

	// WHEN: Reopening and resuming
	store, err = sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()

	token, err := ledger.LoadToken(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "bearer-123", token)

	resumed := ledger.NewBook()
	ok, err := ledger.ResumeSnapshot(ctx, store, resumed)
	require.NoError(t, err)
	require.True(t, ok)

	// THEN: Balances and records are intact
	got, err := resumed.Account(acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "987.70", got.Balance.StringFixed(2))
	assert.Len(t, resumed.Transactions(), 1)

	writes, err := store.SnapshotWrites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, writes)
}

func TestStore_ClearSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, ledger.SaveToken(ctx, store, "tok"))
	require.NoError(t, ledger.SaveSnapshot(ctx, store, ledger.NewBook()))
	require.NoError(t, ledger.ClearSession(ctx, store))

	token, err := ledger.LoadToken(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, token)

	ok, err := ledger.ResumeSnapshot(ctx, store, ledger.NewBook())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, ledger.SaveSnapshot(ctx, store, ledger.NewBook()))

	require.NoError(t, store.Reset(ctx))

	_, ok, err := store.Get(ctx, ledger.KeySnapshot)
	require.NoError(t, err)
	assert.False(t, ok)
	writes, err := store.SnapshotWrites(ctx)
	require.NoError(t, err)
	assert.Zero(t, writes)
}
