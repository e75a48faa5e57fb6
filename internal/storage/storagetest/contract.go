// Package storagetest holds behaviour tests shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/storage"
)

// Jan is the period most fixtures live in.
var Jan = model.Period{Year: 2025, Month: time.January}

// Key returns a fixture ledger key for period p.
func Key(p model.Period) model.LedgerKey {
	return model.LedgerKey{CustomerID: "C001", Bank: "maybank", Period: p}
}

// Statement returns a fixture statement with n purchases of 10.00 each.
func Statement(p model.Period, account string, n int) model.Statement {
	st := model.Statement{
		Key:       Key(p),
		AccountID: account,
		Currency:  "MYR",
		Opening:   model.Dec("100.00"),
	}
	bal := st.Opening
	for i := 0; i < n; i++ {
		bal = bal.Add(model.Dec("10.00"))
		b := bal
		st.Transactions = append(st.Transactions, model.RawTransaction{
			Date:         p.Start().AddDate(0, 0, i),
			Description:  fmt.Sprintf("PURCHASE %d", i+1),
			Amount:       model.Dec("10.00"),
			Kind:         model.KindPurchase,
			Counterparty: "shop",
			BalanceAfter: &b,
			Reference:    fmt.Sprintf("ref-%d", i+1),
		})
	}
	closing := bal
	st.Closing = &closing
	return st
}

// Run exercises the storage contracts against stores built by open.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Run("AddStatementAssignsIDs", func(t *testing.T) { testAddStatement(t, open(t)) })
	t.Run("AddStatementTwice", func(t *testing.T) { testAddStatementTwice(t, open(t)) })
	t.Run("PeriodAccounts", func(t *testing.T) { testPeriodAccounts(t, open(t)) })
	t.Run("PeriodAccountsCurrencies", func(t *testing.T) { testPeriodAccountsCurrencies(t, open(t)) })
	t.Run("Paging", func(t *testing.T) { testPaging(t, open(t)) })
	t.Run("OverrideIdempotent", func(t *testing.T) { testOverrideIdempotent(t, open(t)) })
	t.Run("OverrideNotFound", func(t *testing.T) { testOverrideNotFound(t, open(t)) })
	t.Run("OverrideSupersedes", func(t *testing.T) { testOverrideSupersedes(t, open(t)) })
	t.Run("OverrideSupersedesLaterPeriods", func(t *testing.T) { testOverrideSupersedesLaterPeriods(t, open(t)) })
	t.Run("SaveLedgerSupersedes", func(t *testing.T) { testSaveLedgerSupersedes(t, open(t)) })
	t.Run("PriorLedger", func(t *testing.T) { testPriorLedger(t, open(t)) })
}

func testAddStatement(t *testing.T, s storage.Store) {
	ctx := context.Background()
	got, err := s.AddStatement(ctx, Statement(Jan, "VISA", 3))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "VISA#000001", got[0].ID)
	assert.Equal(t, "VISA#000003", got[2].ID)
	assert.Equal(t, "VISA", got[1].AccountID)

	// Sequences continue across periods of the same account.
	feb, err := s.AddStatement(ctx, Statement(Jan.Next(), "VISA", 2))
	require.NoError(t, err)
	assert.Equal(t, "VISA#000004", feb[0].ID)
	assert.Equal(t, 5, feb[1].Sequence)
}

func testAddStatementTwice(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.AddStatement(ctx, Statement(Jan, "VISA", 1))
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, Statement(Jan, "VISA", 1))
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func testPeriodAccounts(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, _, err := s.PeriodAccounts(ctx, Key(Jan))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.AddStatement(ctx, Statement(Jan, "VISA", 2))
	require.NoError(t, err)
	amex := Statement(Jan, "AMEX", 0)
	amex.Closing = nil
	_, err = s.AddStatement(ctx, amex)
	require.NoError(t, err)

	accts, currency, err := s.PeriodAccounts(ctx, Key(Jan))
	require.NoError(t, err)
	assert.Equal(t, "MYR", currency)
	require.Len(t, accts, 2)
	assert.Equal(t, "AMEX", accts[0].AccountID)
	assert.Equal(t, "MYR", accts[0].Currency)
	assert.Nil(t, accts[0].Closing)
	assert.Equal(t, "VISA", accts[1].AccountID)
	require.NotNil(t, accts[1].Closing)
	assert.Equal(t, "120.00", accts[1].Closing.StringFixed(2))

	ok, err := s.HasPeriod(ctx, Key(Jan))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasPeriod(ctx, Key(Jan.Prev()))
	require.NoError(t, err)
	assert.False(t, ok)
}

func testPeriodAccountsCurrencies(t *testing.T, s storage.Store) {
	ctx := context.Background()
	usd := Statement(Jan, "AMEX", 1)
	usd.Currency = "USD"
	_, err := s.AddStatement(ctx, usd)
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, Statement(Jan, "VISA", 1))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		accts, currency, err := s.PeriodAccounts(ctx, Key(Jan))
		require.NoError(t, err)
		require.Len(t, accts, 2)
		assert.Equal(t, "USD", currency, "the first account's currency, every time")
		assert.Equal(t, "USD", accts[0].Currency)
		assert.Equal(t, "MYR", accts[1].Currency)
	}
}

func testPaging(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.AddStatement(ctx, Statement(Jan, "VISA", 5))
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, Statement(Jan.Next(), "VISA", 2))
	require.NoError(t, err)

	var all []model.RawTransaction
	token := ""
	pages := 0
	for {
		page, err := s.ListTransactions(ctx, "VISA", Jan, 2, token)
		require.NoError(t, err)
		all = append(all, page.Transactions...)
		pages++
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	assert.Equal(t, 3, pages)
	require.Len(t, all, 5)
	for i, txn := range all {
		assert.Equal(t, i+1, txn.Sequence)
		require.NotNil(t, txn.BalanceAfter)
	}
	assert.Equal(t, "PURCHASE 1", all[0].Description)
	assert.Equal(t, model.KindPurchase, all[0].Kind)
	assert.Equal(t, "110.00", all[0].BalanceAfter.StringFixed(2))
	assert.True(t, all[0].Date.Equal(Jan.Start()))
}

func testOverrideIdempotent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	txns, err := s.AddStatement(ctx, Statement(Jan, "VISA", 2))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.PutOverride(ctx, txns[0].ID, model.OwnerCounterparty, "paid for client", "siti"))
		got, err := s.GetOverrides(ctx, Key(Jan))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, model.OverrideLabel(model.OwnerCounterparty, "paid for client", "siti"), got[txns[0].ID])
	}

	other, err := s.GetOverrides(ctx, Key(Jan.Next()))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testOverrideNotFound(t *testing.T, s storage.Store) {
	err := s.PutOverride(context.Background(), "NOPE#000001", model.OwnerHolder, "x", "y")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testOverrideSupersedes(t *testing.T, s storage.Store) {
	ctx := context.Background()
	txns, err := s.AddStatement(ctx, Statement(Jan, "VISA", 1))
	require.NoError(t, err)

	saved, err := s.SaveLedger(ctx, model.Ledger{Key: Key(Jan), Currency: "MYR", Status: model.StatusVerified}, model.VerificationResult{Passed: true})
	require.NoError(t, err)
	assert.True(t, saved.IsVerified())

	require.NoError(t, s.PutOverride(ctx, txns[0].ID, model.OwnerCounterparty, "r", "a"))
	cur, err := s.CurrentLedger(ctx, Key(Jan))
	require.NoError(t, err)
	assert.False(t, cur.IsVerified())
	require.NotNil(t, cur.SupersededAt)
	first := *cur.SupersededAt

	// Repeating the same override changes nothing.
	require.NoError(t, s.PutOverride(ctx, txns[0].ID, model.OwnerCounterparty, "r", "a"))
	cur, err = s.CurrentLedger(ctx, Key(Jan))
	require.NoError(t, err)
	require.NotNil(t, cur.SupersededAt)
	assert.True(t, first.Equal(*cur.SupersededAt))
}

func testOverrideSupersedesLaterPeriods(t *testing.T, s storage.Store) {
	ctx := context.Background()
	feb, mar := Jan.Next(), Jan.Next().Next()
	_, err := s.AddStatement(ctx, Statement(Jan.Prev(), "VISA", 1))
	require.NoError(t, err)
	txns, err := s.AddStatement(ctx, Statement(Jan, "VISA", 1))
	require.NoError(t, err)

	other := model.LedgerKey{CustomerID: "C001", Bank: "cimb", Period: feb}
	keys := []model.LedgerKey{Key(Jan.Prev()), Key(Jan), Key(feb), Key(mar), other}
	for _, k := range keys {
		_, err := s.SaveLedger(ctx, model.Ledger{Key: k, Currency: "MYR", Status: model.StatusVerified}, model.VerificationResult{Passed: true})
		require.NoError(t, err)
	}

	require.NoError(t, s.PutOverride(ctx, txns[0].ID, model.OwnerCounterparty, "r", "a"))

	want := map[model.LedgerKey]bool{
		Key(Jan.Prev()): true,
		Key(Jan):        false,
		Key(feb):        false,
		Key(mar):        false,
		other:           true,
	}
	for k, verified := range want {
		cur, err := s.CurrentLedger(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, verified, cur.IsVerified(), "ledger %s", k)
	}
}

func testSaveLedgerSupersedes(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.CurrentLedger(ctx, Key(Jan))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.LatestResult(ctx, Key(Jan))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	led := model.Ledger{
		Key:              Key(Jan),
		Currency:         "MYR",
		Opening:          model.Dec("100.00"),
		Closing:          model.Dec("0.00"),
		OwnerOpening:     model.Dec("100.00"),
		OwnerExpense:     model.Dec("50.00"),
		OwnerPayment:     model.Dec("150.00"),
		OwnerBalance:     model.Dec("-100.00"),
		TransactionCount: 2,
		NetAmount:        model.Dec("-100.00"),
		RegistryVersion:  "sha256:abc",
		Status:           model.StatusFailed,
		Accounts: []model.AccountContribution{
			{AccountID: "VISA", Opening: model.Dec("100.00"), Closing: model.Dec("0.00"), TransactionCount: 2},
		},
	}
	first, err := s.SaveLedger(ctx, led, model.VerificationResult{Ledger: Key(Jan).String(), Issues: []model.Issue{{Kind: model.IssueCount, Detail: "x"}}})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Empty(t, first.Supersedes)

	led.Status = model.StatusVerified
	second, err := s.SaveLedger(ctx, led, model.VerificationResult{Ledger: Key(Jan).String(), Passed: true, Issues: []model.Issue{}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.Supersedes)

	cur, err := s.CurrentLedger(ctx, Key(Jan))
	require.NoError(t, err)
	assert.Equal(t, second.ID, cur.ID)
	assert.True(t, cur.IsVerified())
	assert.Equal(t, "-100.00", cur.OwnerBalance.StringFixed(2))
	assert.Equal(t, "sha256:abc", cur.RegistryVersion)
	require.Len(t, cur.Accounts, 1)
	assert.Equal(t, "VISA", cur.Accounts[0].AccountID)
	assert.Equal(t, 2, cur.Accounts[0].TransactionCount)

	hist, err := s.LedgerHistory(ctx, Key(Jan))
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.NotNil(t, hist[0].SupersededAt)
	assert.Nil(t, hist[1].SupersededAt)
	assert.Equal(t, model.StatusFailed, hist[0].Status)

	res, err := s.LatestResult(ctx, Key(Jan))
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, second.ID, res.LedgerID)
}

func testPriorLedger(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.PriorLedger(ctx, Key(Jan.Next()))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.SaveLedger(ctx, model.Ledger{Key: Key(Jan), Currency: "MYR", Status: model.StatusVerified, Closing: model.Dec("42.00")}, model.VerificationResult{Passed: true})
	require.NoError(t, err)

	prior, err := s.PriorLedger(ctx, Key(Jan.Next()))
	require.NoError(t, err)
	assert.Equal(t, "42.00", prior.Closing.StringFixed(2))
	assert.Equal(t, Jan, prior.Key.Period)

	// Months without a ledger are skipped; other chains never count.
	other := model.LedgerKey{CustomerID: "C001", Bank: "cimb", Period: Jan.Next()}
	_, err = s.SaveLedger(ctx, model.Ledger{Key: other, Currency: "MYR", Status: model.StatusVerified, Closing: model.Dec("7.00")}, model.VerificationResult{Passed: true})
	require.NoError(t, err)
	april := Jan.Next().Next().Next()
	prior, err = s.PriorLedger(ctx, Key(april))
	require.NoError(t, err)
	assert.Equal(t, Jan, prior.Key.Period)
	assert.Equal(t, "maybank", prior.Key.Bank)
	assert.Equal(t, "42.00", prior.Closing.StringFixed(2))

	_, err = s.PriorLedger(ctx, Key(Jan))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
