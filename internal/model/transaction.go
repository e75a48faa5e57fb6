package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the bank-reported nature of a line item.
type TransactionKind string

const (
	KindPurchase TransactionKind = "purchase"
	KindPayment  TransactionKind = "payment"
	KindFee      TransactionKind = "fee"
)

// Valid reports whether k is one of the supported kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindPurchase, KindPayment, KindFee:
		return true
	}
	return false
}

// IsExpense reports whether k accumulates into an expense bucket.
func (k TransactionKind) IsExpense() bool {
	return k == KindPurchase || k == KindFee
}

// RawTransaction is one bank-reported line item for a card account.
// Amount is signed: positive debits raise the card balance, negative credits lower it.
type RawTransaction struct {
	ID           string // "<account>#<seq>", see id.FormatTxnID
	AccountID    string
	Sequence     int // ingestion order within the account
	Date         time.Time
	Description  string
	Amount       decimal.Decimal
	Kind         TransactionKind
	Counterparty string
	SupplierTag  string
	BalanceAfter *decimal.Decimal // nil when the source did not report one
	Reference    string
	Currency     string // empty = period currency
}

// HasBalance reports whether the source reported a running balance.
func (t RawTransaction) HasBalance() bool {
	return t.BalanceAfter != nil
}

// Dec is a shorthand for an exact decimal literal. It panics on malformed input
// and is meant for fixtures and constants.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DecPtr returns a pointer to Dec(s).
func DecPtr(s string) *decimal.Decimal {
	d := Dec(s)
	return &d
}

// Cents rounds d to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
