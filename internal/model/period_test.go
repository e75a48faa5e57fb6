package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodPrevNext(t *testing.T) {
	tests := []struct {
		in   Period
		prev string
		next string
	}{
		{Period{2025, time.March}, "2025-02", "2025-04"},
		{Period{2025, time.January}, "2024-12", "2025-02"},
		{Period{2024, time.December}, "2024-11", "2025-01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.prev, tt.in.Prev().String(), "Prev(%s)", tt.in)
		assert.Equal(t, tt.next, tt.in.Next().String(), "Next(%s)", tt.in)
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-01")
	require.NoError(t, err)
	assert.Equal(t, Period{2025, time.January}, p)

	_, err = ParsePeriod("2025/01")
	assert.Error(t, err)
}

func TestPeriodContains(t *testing.T) {
	p := Period{2025, time.January}
	assert.True(t, p.Contains(time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.Before(p.Next()))
	assert.False(t, p.Before(p))
}

func TestLedgerKeyString(t *testing.T) {
	k := LedgerKey{CustomerID: "C001", Bank: "maybank", Period: Period{2025, time.February}}
	assert.Equal(t, "C001/maybank/2025-02", k.String())
	assert.Equal(t, "C001/maybank/2025-01", k.Prev().String())
}

func TestLedgerIsVerified(t *testing.T) {
	l := Ledger{Status: StatusVerified}
	assert.True(t, l.IsVerified())

	now := time.Now()
	l.SupersededAt = &now
	assert.False(t, l.IsVerified())

	assert.False(t, Ledger{Status: StatusFailed}.IsVerified())
}

func TestLedgerCumulativeShares(t *testing.T) {
	l := Ledger{
		OwnerOpening:        Dec("60.00"),
		CounterpartyOpening: Dec("40.00"),
		OwnerBalance:        Dec("-100.00"),
		CounterpartyBalance: Dec("25.50"),
	}
	assert.True(t, l.OwnerClosing().Equal(Dec("-40.00")))
	assert.True(t, l.CounterpartyClosing().Equal(Dec("65.50")))
}

func TestInputErrorIs(t *testing.T) {
	err := error(&InputError{Kind: ErrKindUnsupportedKind, TransactionID: "A#1", Description: "refund"})
	assert.ErrorIs(t, err, ErrUnsupportedKind)
	assert.Contains(t, err.Error(), "UnsupportedTransactionKind [A#1]")

	other := error(&InputError{Kind: ErrKindCurrencyMismatch})
	assert.NotErrorIs(t, other, ErrUnsupportedKind)
}
