package model

import (
	"github.com/shopspring/decimal"
)

// IssueKind classifies a reconciliation defect.
type IssueKind string

const (
	IssueRunningBalance IssueKind = "RunningBalanceMismatch"
	IssueOpeningBalance IssueKind = "OpeningBalanceMismatch"
	IssueCrossPeriod    IssueKind = "CrossPeriodDiscontinuity"
	IssueCount          IssueKind = "CountMismatch"
	IssueClosingBalance IssueKind = "ClosingBalanceMismatch"
)

// Issue is one continuity defect. Expected or Actual is nil when the value
// could not be obtained from the source.
type Issue struct {
	Kind          IssueKind        `json:"kind"`
	TransactionID string           `json:"transaction_id,omitempty"`
	AccountID     string           `json:"account_id,omitempty"`
	Period        string           `json:"period,omitempty"`
	Date          string           `json:"date,omitempty"`
	Description   string           `json:"description,omitempty"`
	Expected      *decimal.Decimal `json:"expected,omitempty"`
	Actual        *decimal.Decimal `json:"actual,omitempty"`
	Diff          *decimal.Decimal `json:"diff,omitempty"`
	Detail        string           `json:"detail"`
}

// Summary holds the totals a verification pass decided on.
type Summary struct {
	SourceCount      int             `json:"source_count"`
	SourceAmount     decimal.Decimal `json:"source_amount"`
	ClassifiedCount  int             `json:"classified_count"`
	ClassifiedAmount decimal.Decimal `json:"classified_amount"`
	Opening          decimal.Decimal `json:"opening"`
	Closing          decimal.Decimal `json:"closing"`
	DerivedClosing   decimal.Decimal `json:"derived_closing"`
	OwnerClosing     decimal.Decimal `json:"owner_closing"`
	CounterClosing   decimal.Decimal `json:"counterparty_closing"`
}

// VerificationResult is the outcome of one verification pass. It carries no
// timestamps or generated IDs, so identical inputs marshal identically.
type VerificationResult struct {
	Ledger   string   `json:"ledger"`
	LedgerID string   `json:"ledger_id,omitempty"`
	Passed   bool     `json:"passed"`
	Issues   []Issue  `json:"issues"`
	Summary  Summary  `json:"summary"`
	Rejected []string `json:"rejected,omitempty"`
}

// IssuesOf returns the issues of the given kind.
func (r VerificationResult) IssuesOf(kind IssueKind) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}
