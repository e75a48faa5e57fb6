// Package journal exports the classified transactions behind a ledger as a
// per-month journal.csv, one row per transaction with its ownership label.
package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
)

// Entry is one classified transaction in the journal.
type Entry struct {
	TransactionID string
	Date          time.Time
	AccountID     string
	Description   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Kind          model.TransactionKind
	Owner         model.Owner
	Confidence    model.Confidence
	Counterparty  string
	Reference     string
	Reason        string
	Actor         string
}

// Amount returns the signed amount: debits positive, credits negative.
func (e Entry) Amount() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// Header is the CSV header for journal.csv.
const Header = "transaction_id,date,account_id,description,debit,credit,kind,owner,confidence,counterparty,reference,reason,actor"

const (
	numFields  = 13
	dateFormat = "2006-01-02"
	colTxnID   = 0
	colDate    = 1
	colAcctID  = 2
	colDesc    = 3
	colDebit   = 4
	colCredit  = 5
	colKind    = 6
	colOwner   = 7
	colConf    = 8
	colCparty  = 9
	colRef     = 10
	colReason  = 11
	colActor   = 12
)

// FromTransactions builds journal entries for txns in order. Every
// transaction must have a label.
func FromTransactions(txns []model.RawTransaction, labels map[string]model.Label) ([]Entry, error) {
	entries := make([]Entry, 0, len(txns))
	for _, t := range txns {
		label, ok := labels[t.ID]
		if !ok {
			return nil, fmt.Errorf("transaction %s has no ownership label", t.ID)
		}
		e := Entry{
			TransactionID: t.ID,
			Date:          t.Date,
			AccountID:     t.AccountID,
			Description:   t.Description,
			Kind:          t.Kind,
			Owner:         label.Owner,
			Confidence:    label.Confidence,
			Counterparty:  t.Counterparty,
			Reference:     t.Reference,
			Reason:        label.Reason,
			Actor:         label.Actor,
		}
		if t.Amount.IsNegative() {
			e.Credit = t.Amount.Neg()
		} else {
			e.Debit = t.Amount
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadEntries reads all entries from a journal.csv reader.
func ReadEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteEntries writes entries to a journal.csv writer (including header).
func WriteEntries(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalEntry converts an Entry to a CSV row ([]string).
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTxnID] = e.TransactionID
	row[colDate] = e.Date.Format(dateFormat)
	row[colAcctID] = e.AccountID
	row[colDesc] = e.Description

	if !e.Debit.IsZero() {
		row[colDebit] = e.Debit.StringFixed(2)
	}
	if !e.Credit.IsZero() {
		row[colCredit] = e.Credit.StringFixed(2)
	}

	row[colKind] = string(e.Kind)
	row[colOwner] = string(e.Owner)
	row[colConf] = string(e.Confidence)
	row[colCparty] = e.Counterparty
	row[colRef] = e.Reference
	row[colReason] = e.Reason
	row[colActor] = e.Actor

	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	var debit, credit decimal.Decimal
	if record[colDebit] != "" {
		debit, err = decimal.NewFromString(record[colDebit])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing debit %q: %w", record[colDebit], err)
		}
	}
	if record[colCredit] != "" {
		credit, err = decimal.NewFromString(record[colCredit])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing credit %q: %w", record[colCredit], err)
		}
	}

	return Entry{
		TransactionID: record[colTxnID],
		Date:          date,
		AccountID:     record[colAcctID],
		Description:   record[colDesc],
		Debit:         debit,
		Credit:        credit,
		Kind:          model.TransactionKind(record[colKind]),
		Owner:         model.Owner(record[colOwner]),
		Confidence:    model.Confidence(record[colConf]),
		Counterparty:  record[colCparty],
		Reference:     record[colRef],
		Reason:        record[colReason],
		Actor:         record[colActor],
	}, nil
}
