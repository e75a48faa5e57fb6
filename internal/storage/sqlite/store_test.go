package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/storage"
	"github.com/cleared-dev/recon/internal/storage/storagetest"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recon.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTempStore(t)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestOpenConfiguresConnections(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	var timeout int
	require.NoError(t, store.sqlDB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)

	var mode string
	require.NoError(t, store.sqlDB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, store.sqlDB.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestReopenKeepsDataAndSkipsMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "recon.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.AddStatement(ctx, storagetest.Statement(storagetest.Jan, "VISA", 2))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	page, err := store.ListTransactions(ctx, "VISA", storagetest.Jan, 0, "")
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 2)
}

func TestLedgerAmountsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)

	key := storagetest.Key(storagetest.Jan)
	led := model.Ledger{
		Key:                 key,
		Currency:            "MYR",
		Opening:             model.Dec("100.00"),
		Closing:             model.Dec("57.50"),
		Status:              model.StatusVerified,
		OwnerOpening:        model.Dec("70.00"),
		CounterpartyOpening: model.Dec("30.00"),
		OwnerExpense:        model.Dec("12.50"),
		OwnerPayment:        model.Dec("50.00"),
		CounterpartyExpense: model.Dec("-5.00"),
		CounterpartyPayment: model.Dec("0"),
		OwnerBalance:        model.Dec("-37.50"),
		CounterpartyBalance: model.Dec("-5.00"),
		TransactionCount:    3,
		NetAmount:           model.Dec("-42.50"),
		Accounts: []model.AccountContribution{
			{AccountID: "VISA", Opening: model.Dec("100.00"), Closing: model.Dec("57.50"), ClosingReported: true, TransactionCount: 3},
		},
	}
	_, err := store.SaveLedger(ctx, led, model.VerificationResult{Passed: true})
	require.NoError(t, err)

	got, err := store.CurrentLedger(ctx, key)
	require.NoError(t, err)
	assert.True(t, got.OwnerClosing().Equal(model.Dec("32.50")))
	assert.True(t, got.CounterpartyClosing().Equal(model.Dec("25.00")))
	assert.True(t, got.OwnerClosing().Add(got.CounterpartyClosing()).Equal(got.Closing))
	assert.True(t, got.NetAmount.Equal(model.Dec("-42.50")))
	require.Len(t, got.Accounts, 1)
	assert.True(t, got.Accounts[0].ClosingReported)
}
