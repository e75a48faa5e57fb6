// Package storage defines persistence contracts for the reconciliation engine.
package storage

import (
	"context"
	"errors"

	"github.com/cleared-dev/recon/internal/model"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a statement was already ingested.
	ErrAlreadyExists = errors.New("record already exists")
)

// DefaultPageSize bounds ListTransactions pages when the caller passes zero.
const DefaultPageSize = 500

// TransactionPage is one page of an account's transactions, in ingestion order.
type TransactionPage struct {
	Transactions  []model.RawTransaction
	NextPageToken string
}

// TransactionSource is the ingested transaction feed.
type TransactionSource interface {
	// PeriodAccounts returns the statement headers of every card account the
	// customer holds with the bank for the period, sorted by account, and the
	// first header's currency. ErrNotFound when none.
	PeriodAccounts(ctx context.Context, key model.LedgerKey) ([]model.StatementAccount, string, error)
	ListTransactions(ctx context.Context, accountID string, period model.Period, pageSize int, pageToken string) (TransactionPage, error)
	HasPeriod(ctx context.Context, key model.LedgerKey) (bool, error)
}

// StatementWriter ingests statements.
type StatementWriter interface {
	AddStatement(ctx context.Context, st model.Statement) ([]model.RawTransaction, error)
}

// OverrideStore persists manual ownership corrections.
type OverrideStore interface {
	GetOverrides(ctx context.Context, key model.LedgerKey) (map[string]model.Label, error)
	// PutOverride records a correction for txnID. Writing the same correction
	// twice leaves the store unchanged. A write that changes the stored label
	// supersedes the current ledgers of the transaction's period and of every
	// later period of the same customer and bank.
	PutOverride(ctx context.Context, txnID string, owner model.Owner, reason, actor string) error
}

// LedgerStore persists ledgers with supersede semantics: saving a ledger for a
// key marks the previous one superseded and keeps it for audit.
type LedgerStore interface {
	SaveLedger(ctx context.Context, led model.Ledger, res model.VerificationResult) (model.Ledger, error)
	CurrentLedger(ctx context.Context, key model.LedgerKey) (model.Ledger, error)
	// PriorLedger returns the current ledger of the latest month before key in
	// the same chain, skipping months that have none. ErrNotFound when none.
	PriorLedger(ctx context.Context, key model.LedgerKey) (model.Ledger, error)
	LedgerHistory(ctx context.Context, key model.LedgerKey) ([]model.Ledger, error)
	LatestResult(ctx context.Context, key model.LedgerKey) (model.VerificationResult, error)
}

// Store is everything the reconciliation service needs.
type Store interface {
	TransactionSource
	StatementWriter
	OverrideStore
	LedgerStore
}
