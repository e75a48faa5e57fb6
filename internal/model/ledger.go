package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerStatus is the verification state of a ledger.
type LedgerStatus string

const (
	StatusPending  LedgerStatus = "pending"
	StatusVerified LedgerStatus = "verified"
	StatusFailed   LedgerStatus = "failed"
)

// StatementAccount is one card account's statement header for a period.
type StatementAccount struct {
	AccountID string
	Currency  string // statement currency; empty when the source omits it
	Opening   decimal.Decimal
	Closing   *decimal.Decimal // source-reported; nil when absent
}

// AccountPeriod declares which card accounts make up a ledger and their
// statement balances.
type AccountPeriod struct {
	Key      LedgerKey
	Currency string
	Accounts []StatementAccount

	// Opening split carried from the prior verified ledger. When nil the
	// whole opening balance is attributed to the owner.
	OwnerOpening        *decimal.Decimal
	CounterpartyOpening *decimal.Decimal
}

// Declares reports whether accountID is part of the period.
func (p AccountPeriod) Declares(accountID string) bool {
	for _, a := range p.Accounts {
		if a.AccountID == accountID {
			return true
		}
	}
	return false
}

// AccountContribution records one card account's part of a merged ledger.
type AccountContribution struct {
	AccountID        string
	Opening          decimal.Decimal
	Closing          decimal.Decimal
	ClosingReported  bool
	TransactionCount int
}

// Ledger is the consolidated monthly statement for one LedgerKey.
// OwnerBalance and CounterpartyBalance are period deltas; OwnerClosing and
// CounterpartyClosing add the carried opening split.
type Ledger struct {
	ID         string
	Key        LedgerKey
	Currency   string
	Opening    decimal.Decimal
	Closing    decimal.Decimal
	Accounts   []AccountContribution
	Status     LedgerStatus
	Supersedes string
	CreatedAt  time.Time

	SupersededAt *time.Time

	OwnerOpening        decimal.Decimal
	CounterpartyOpening decimal.Decimal

	OwnerExpense        decimal.Decimal
	OwnerPayment        decimal.Decimal
	CounterpartyExpense decimal.Decimal
	CounterpartyPayment decimal.Decimal
	OwnerBalance        decimal.Decimal
	CounterpartyBalance decimal.Decimal

	TransactionCount int
	NetAmount        decimal.Decimal // sum of included signed amounts
	RegistryVersion  string
}

// OwnerClosing is the owner's cumulative share of the closing balance.
func (l Ledger) OwnerClosing() decimal.Decimal {
	return l.OwnerOpening.Add(l.OwnerBalance)
}

// CounterpartyClosing is the counterparty's cumulative share of the closing balance.
func (l Ledger) CounterpartyClosing() decimal.Decimal {
	return l.CounterpartyOpening.Add(l.CounterpartyBalance)
}

// IsVerified reports whether the ledger can vouch for continuity: it passed
// verification and has not been superseded since.
func (l Ledger) IsVerified() bool {
	return l.Status == StatusVerified && l.SupersededAt == nil
}

// Contribution returns the contribution for accountID.
func (l Ledger) Contribution(accountID string) (AccountContribution, bool) {
	for _, a := range l.Accounts {
		if a.AccountID == accountID {
			return a, true
		}
	}
	return AccountContribution{}, false
}
