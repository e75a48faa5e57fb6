package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
)

// CardParser parses the engine's own card-statement CSV. Besides line items
// it accepts two balance rows whose date column is "opening" or "closing"
// and whose amount column holds the statement balance.
type CardParser struct{}

const (
	cardDateFormat  = "2006-01-02"
	cardNumFields   = 8
	cardColDate     = 0
	cardColDesc     = 1
	cardColAmount   = 2
	cardColKind     = 3
	cardColCounter  = 4
	cardColSupplier = 5
	cardColBalance  = 6
	cardColRef      = 7

	rowOpening = "opening"
	rowClosing = "closing"
)

// CardHeader is the header row of the card-statement CSV.
var CardHeader = []string{"date", "description", "amount", "kind", "counterparty", "supplier_tag", "balance_after", "reference"}

// Format returns the parser name.
func (p *CardParser) Format() string { return "card" }

// Parse reads a card-statement CSV. The opening row is required.
func (p *CardParser) Parse(r io.Reader) (model.Statement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = cardNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return model.Statement{}, fmt.Errorf("reading card CSV: %w", err)
	}
	if len(records) == 0 {
		return model.Statement{}, fmt.Errorf("reading card CSV: missing header")
	}

	var (
		st         model.Statement
		hasOpening bool
	)
	for i, rec := range records[1:] {
		row := i + 2
		switch strings.ToLower(strings.TrimSpace(rec[cardColDate])) {
		case rowOpening:
			if hasOpening {
				return model.Statement{}, fmt.Errorf("row %d: duplicate opening row", row)
			}
			bal, err := parseAmount(rec[cardColAmount])
			if err != nil {
				return model.Statement{}, fmt.Errorf("row %d: %w", row, err)
			}
			st.Opening = bal
			hasOpening = true
		case rowClosing:
			if st.Closing != nil {
				return model.Statement{}, fmt.Errorf("row %d: duplicate closing row", row)
			}
			bal, err := parseAmount(rec[cardColAmount])
			if err != nil {
				return model.Statement{}, fmt.Errorf("row %d: %w", row, err)
			}
			st.Closing = &bal
		default:
			txn, err := UnmarshalCardRow(rec)
			if err != nil {
				return model.Statement{}, fmt.Errorf("row %d: %w", row, err)
			}
			st.Transactions = append(st.Transactions, txn)
		}
	}
	if !hasOpening {
		return model.Statement{}, fmt.Errorf("card CSV has no opening row")
	}
	return st, nil
}

// UnmarshalCardRow converts a card-statement CSV row to a RawTransaction.
// The kind is kept as reported; unsupported kinds are rejected during
// reconciliation, not at import.
func UnmarshalCardRow(rec []string) (model.RawTransaction, error) {
	if len(rec) != cardNumFields {
		return model.RawTransaction{}, fmt.Errorf("expected %d fields, got %d", cardNumFields, len(rec))
	}
	date, err := time.Parse(cardDateFormat, strings.TrimSpace(rec[cardColDate]))
	if err != nil {
		return model.RawTransaction{}, fmt.Errorf("parsing date %q: %w", rec[cardColDate], err)
	}
	amount, err := parseAmount(rec[cardColAmount])
	if err != nil {
		return model.RawTransaction{}, err
	}

	txn := model.RawTransaction{
		Date:         date,
		Description:  rec[cardColDesc],
		Amount:       amount,
		Kind:         model.TransactionKind(strings.ToLower(strings.TrimSpace(rec[cardColKind]))),
		Counterparty: strings.TrimSpace(rec[cardColCounter]),
		SupplierTag:  strings.TrimSpace(rec[cardColSupplier]),
		Reference:    strings.TrimSpace(rec[cardColRef]),
	}
	if s := strings.TrimSpace(rec[cardColBalance]); s != "" {
		bal, err := decimal.NewFromString(s)
		if err != nil {
			return model.RawTransaction{}, fmt.Errorf("parsing balance_after %q: %w", s, err)
		}
		txn.BalanceAfter = &bal
	}
	return txn, nil
}

// MarshalCardRow converts a RawTransaction to a card-statement CSV row.
func MarshalCardRow(txn model.RawTransaction) []string {
	row := make([]string, cardNumFields)
	row[cardColDate] = txn.Date.Format(cardDateFormat)
	row[cardColDesc] = txn.Description
	row[cardColAmount] = txn.Amount.StringFixed(2)
	row[cardColKind] = string(txn.Kind)
	row[cardColCounter] = txn.Counterparty
	row[cardColSupplier] = txn.SupplierTag
	if txn.BalanceAfter != nil {
		row[cardColBalance] = txn.BalanceAfter.StringFixed(2)
	}
	row[cardColRef] = txn.Reference
	return row
}

// WriteCard writes st in the card-statement format.
func WriteCard(w io.Writer, st model.Statement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CardHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	balanceRow := func(label string, d decimal.Decimal) []string {
		row := make([]string, cardNumFields)
		row[cardColDate] = label
		row[cardColAmount] = d.StringFixed(2)
		return row
	}
	if err := cw.Write(balanceRow(rowOpening, st.Opening)); err != nil {
		return fmt.Errorf("writing opening: %w", err)
	}
	for i, txn := range st.Transactions {
		if err := cw.Write(MarshalCardRow(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+3, err)
		}
	}
	if st.Closing != nil {
		if err := cw.Write(balanceRow(rowClosing, *st.Closing)); err != nil {
			return fmt.Errorf("writing closing: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}
