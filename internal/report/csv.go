package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/cleared-dev/recon/internal/model"
)

const (
	numIssueFields = 11
	colLedger      = 0
	colKind        = 1
	colTxnID       = 2
	colAccountID   = 3
	colPeriod      = 4
	colDate        = 5
	colDesc        = 6
	colExpected    = 7
	colActual      = 8
	colDiff        = 9
	colDetail      = 10
)

// IssueHeader is the header row of the issues CSV.
var IssueHeader = []string{
	"ledger", "kind", "transaction_id", "account_id", "period", "date",
	"description", "expected", "actual", "diff", "detail",
}

// MarshalIssue converts an Issue to a CSV row. Missing amounts are empty.
func MarshalIssue(ledger string, is model.Issue) []string {
	row := make([]string, numIssueFields)
	row[colLedger] = ledger
	row[colKind] = string(is.Kind)
	row[colTxnID] = is.TransactionID
	row[colAccountID] = is.AccountID
	row[colPeriod] = is.Period
	row[colDate] = is.Date
	row[colDesc] = is.Description
	if is.Expected != nil {
		row[colExpected] = is.Expected.StringFixed(2)
	}
	if is.Actual != nil {
		row[colActual] = is.Actual.StringFixed(2)
	}
	if is.Diff != nil {
		row[colDiff] = is.Diff.StringFixed(2)
	}
	row[colDetail] = is.Detail
	return row
}

// IssuesCSV writes the result's issues as CSV, header included.
func IssuesCSV(w io.Writer, res model.VerificationResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(IssueHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, is := range res.Issues {
		if err := cw.Write(MarshalIssue(res.Ledger, is)); err != nil {
			return fmt.Errorf("writing issue %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
