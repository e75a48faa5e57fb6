package importer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/model"
)

func parseFixture(t *testing.T, p Parser, name string) model.Statement {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	defer f.Close()

	st, err := p.Parse(f)
	require.NoError(t, err)
	return st
}

func TestCardParser_Parse(t *testing.T) {
	st := parseFixture(t, &CardParser{}, "card_statement.csv")

	assert.Equal(t, "100.00", st.Opening.StringFixed(2))
	require.NotNil(t, st.Closing)
	assert.Equal(t, "0.00", st.Closing.StringFixed(2))
	require.Len(t, st.Transactions, 2)

	first := st.Transactions[0]
	assert.Equal(t, "GRABFOOD KUALA LUMPUR", first.Description)
	assert.Equal(t, "50.00", first.Amount.StringFixed(2))
	assert.Equal(t, model.KindPurchase, first.Kind)
	require.NotNil(t, first.BalanceAfter)
	assert.Equal(t, "150.00", first.BalanceAfter.StringFixed(2))
	assert.Equal(t, "GF-10231", first.Reference)
	assert.True(t, time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC).Equal(first.Date))

	assert.Equal(t, model.KindPayment, st.Transactions[1].Kind)
	assert.True(t, st.Transactions[1].Amount.IsNegative())
}

func TestCardParser_KeepsUnsupportedKinds(t *testing.T) {
	st := parseFixture(t, &CardParser{}, "card_statement_feb.csv")
	require.Len(t, st.Transactions, 4)

	assert.Equal(t, "SHOPEE, ORDER 55812", st.Transactions[0].Description)
	assert.Equal(t, "Lim Trading", st.Transactions[0].Counterparty)
	assert.Equal(t, "wholesale", st.Transactions[0].SupplierTag)
	assert.Equal(t, model.KindFee, st.Transactions[1].Kind)
	assert.Equal(t, model.TransactionKind("cash_advance"), st.Transactions[2].Kind)
	assert.False(t, st.Transactions[2].Kind.Valid())
}

func TestCardParser_OptionalBalances(t *testing.T) {
	data := strings.Join(CardHeader, ",") + "\n" +
		"opening,,10.00,,,,,\n" +
		"2025-03-01,COFFEE,4.50,purchase,,,,\n"
	st, err := (&CardParser{}).Parse(strings.NewReader(data))
	require.NoError(t, err)

	assert.Nil(t, st.Closing)
	require.Len(t, st.Transactions, 1)
	assert.False(t, st.Transactions[0].HasBalance())
}

func TestCardParser_Errors(t *testing.T) {
	head := strings.Join(CardHeader, ",") + "\n"
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "", "missing header"},
		{"no opening", head + "2025-03-01,X,1.00,purchase,,,,\n", "no opening row"},
		{"duplicate opening", head + "opening,,1.00,,,,,\nopening,,2.00,,,,,\n", "row 3: duplicate opening"},
		{"duplicate closing", head + "opening,,1.00,,,,,\nclosing,,1.00,,,,,\nclosing,,1.00,,,,,\n", "duplicate closing"},
		{"bad date", head + "opening,,1.00,,,,,\n03/01/2025,X,1.00,purchase,,,,\n", "parsing date"},
		{"bad amount", head + "opening,,1.00,,,,,\n2025-03-01,X,abc,purchase,,,,\n", "parsing amount"},
		{"bad balance", head + "opening,,1.00,,,,,\n2025-03-01,X,1.00,purchase,,,xyz,\n", "parsing balance_after"},
		{"bad opening", head + "opening,,n/a,,,,,\n", "parsing amount"},
		{"short row", head + "opening,,1.00\n", "reading card CSV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&CardParser{}).Parse(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteCard_ParsesBack(t *testing.T) {
	st := parseFixture(t, &CardParser{}, "card_statement_feb.csv")

	var buf bytes.Buffer
	require.NoError(t, WriteCard(&buf, st))

	got, err := (&CardParser{}).Parse(&buf)
	require.NoError(t, err)
	assert.True(t, got.Opening.Equal(st.Opening))
	require.NotNil(t, got.Closing)
	assert.True(t, got.Closing.Equal(*st.Closing))
	require.Len(t, got.Transactions, len(st.Transactions))
	assert.Equal(t, st.Transactions[0].Description, got.Transactions[0].Description)
}

func TestMaybankParser_Parse(t *testing.T) {
	st := parseFixture(t, &MaybankParser{}, "maybank_card.csv")

	require.Len(t, st.Transactions, 5)
	assert.Equal(t, "100.00", st.Opening.StringFixed(2), "opening derived from first balance minus first debit")
	require.NotNil(t, st.Closing)
	assert.Equal(t, "0.00", st.Closing.StringFixed(2))

	kinds := make([]model.TransactionKind, len(st.Transactions))
	for i, txn := range st.Transactions {
		kinds[i] = txn.Kind
	}
	assert.Equal(t, []model.TransactionKind{
		model.KindPurchase, model.KindPurchase, model.KindPurchase, model.KindFee, model.KindPayment,
	}, kinds)

	refund := st.Transactions[2]
	assert.Equal(t, "-20.00", refund.Amount.StringFixed(2))
	assert.Equal(t, "-242.50", st.Transactions[4].Amount.StringFixed(2))
	assert.Equal(t, 3, st.Transactions[0].Date.Day(), "posting date is used")
	assert.Equal(t, "maybank_20250103_GRABFOODKU", st.Transactions[0].Reference)
}

func TestMaybankParser_Errors(t *testing.T) {
	head := "Posting Date,Transaction Date,Description,Debit,Credit,Balance\n"
	tests := []struct {
		name string
		data string
		want string
	}{
		{"no rows", head, "no transactions"},
		{"bad date", head + "2025-01-03,,X,1.00,,1.00\n", "parsing date"},
		{"both columns", head + "03/01/2025,,X,1.00,1.00,1.00\n", "both debit and credit"},
		{"neither column", head + "03/01/2025,,X,,,1.00\n", "neither debit nor credit"},
		{"no opening balance", head + "03/01/2025,,X,1.00,,\n", "derive the opening"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&MaybankParser{}).Parse(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTarget_Bind(t *testing.T) {
	acct := model.CardAccount{ID: "MBB-VISA", CustomerID: "C001", Bank: "maybank", Currency: "MYR"}
	st := parseFixture(t, &CardParser{}, "card_statement.csv")

	bound, err := Target{Account: acct}.Bind(st)
	require.NoError(t, err)
	assert.Equal(t, "C001/maybank/2025-01", bound.Key.String())
	assert.Equal(t, "MBB-VISA", bound.AccountID)
	assert.Equal(t, "MYR", bound.Currency)

	feb := model.Period{Year: 2025, Month: time.February}
	bound, err = Target{Account: acct, Period: &feb}.Bind(st)
	require.NoError(t, err)
	assert.Equal(t, feb, bound.Key.Period)

	_, err = Target{Account: acct}.Bind(model.Statement{})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("card"))

	r.Register(&CardParser{})
	require.NotNil(t, r.Get("card"))
	assert.NotNil(t, r.Get("CARD"))
	assert.Panics(t, func() { r.Register(&CardParser{}) })

	d := DefaultRegistry()
	assert.NotNil(t, d.Get("card"))
	assert.NotNil(t, d.Get("Maybank"))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Nil(t, files)

	processed := filepath.Join(dir, "import", "processed")
	require.NoError(t, os.MkdirAll(processed, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "jan.CSV"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "notes.txt"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processed, "dec.csv"), []byte("data"), 0o644))

	files, err = Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "jan.CSV", files[0].Name)
	assert.Equal(t, int64(4), files[0].Size)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "jan.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "jan.csv"))

	_, err := os.Stat(filepath.Join(importDir, "jan.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(importDir, "processed", "jan.csv"))
	assert.NoError(t, err)

	assert.Error(t, MarkProcessed(dir, "missing.csv"))
}
