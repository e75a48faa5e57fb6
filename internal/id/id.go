package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// txnSep separates the account from the ingestion sequence.
const txnSep = "#"

// FormatTxnID returns a transaction ID like "MBB-4411#000012".
func FormatTxnID(accountID string, seq int) string {
	return fmt.Sprintf("%s%s%06d", accountID, txnSep, seq)
}

// ParseTxnID parses "MBB-4411#000012" into account and sequence.
func ParseTxnID(txnID string) (accountID string, seq int, err error) {
	i := strings.LastIndex(txnID, txnSep)
	if i <= 0 || i == len(txnID)-1 {
		return "", 0, fmt.Errorf("invalid transaction ID format: %q", txnID)
	}

	seq, err = strconv.Atoi(txnID[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid sequence in transaction ID %q: %w", txnID, err)
	}
	if seq < 0 {
		return "", 0, fmt.Errorf("negative sequence in transaction ID %q", txnID)
	}
	return txnID[:i], seq, nil
}

// AccountOf returns the account part of a transaction ID, or "" if malformed.
func AccountOf(txnID string) string {
	acct, _, err := ParseTxnID(txnID)
	if err != nil {
		return ""
	}
	return acct
}

// NewRunID returns a fresh identifier for a ledger record or reconciliation run.
func NewRunID() string {
	return uuid.NewString()
}
