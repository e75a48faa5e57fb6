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

// MaybankParser parses Maybank credit card CSV exports. The export has
// separate debit and credit columns and a running balance but no header
// balances, so the opening is derived from the first row and the closing is
// the last reported balance.
type MaybankParser struct{}

const (
	maybankDateFormat = "02/01/2006"
	maybankNumFields  = 6
	maybankColPosted  = 0
	maybankColDesc    = 2
	maybankColDebit   = 3
	maybankColCredit  = 4
	maybankColBalance = 5
)

var (
	feeKeywords    = []string{"FEE", "CHARGE", "INTEREST", "SST"}
	refundKeywords = []string{"REFUND", "REVERSAL"}
)

// Format returns the parser name.
func (p *MaybankParser) Format() string { return "maybank" }

// Parse reads a Maybank CSV.
func (p *MaybankParser) Parse(r io.Reader) (model.Statement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = maybankNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return model.Statement{}, fmt.Errorf("reading maybank CSV: %w", err)
	}
	if len(records) <= 1 {
		return model.Statement{}, fmt.Errorf("maybank CSV has no transactions")
	}

	var st model.Statement
	for i, rec := range records[1:] {
		txn, err := parseMaybankRow(rec)
		if err != nil {
			return model.Statement{}, fmt.Errorf("row %d: %w", i+2, err)
		}
		st.Transactions = append(st.Transactions, txn)
	}

	first := st.Transactions[0]
	if first.BalanceAfter == nil {
		return model.Statement{}, fmt.Errorf("row 2: balance is required to derive the opening balance")
	}
	st.Opening = first.BalanceAfter.Sub(first.Amount)
	if last := st.Transactions[len(st.Transactions)-1]; last.BalanceAfter != nil {
		closing := *last.BalanceAfter
		st.Closing = &closing
	}
	return st, nil
}

func parseMaybankRow(rec []string) (model.RawTransaction, error) {
	date, err := time.Parse(maybankDateFormat, strings.TrimSpace(rec[maybankColPosted]))
	if err != nil {
		return model.RawTransaction{}, fmt.Errorf("parsing date %q: %w", rec[maybankColPosted], err)
	}

	debit, credit := strings.TrimSpace(rec[maybankColDebit]), strings.TrimSpace(rec[maybankColCredit])
	var amount decimal.Decimal
	switch {
	case debit != "" && credit != "":
		return model.RawTransaction{}, fmt.Errorf("both debit and credit set")
	case debit != "":
		if amount, err = parseAmount(debit); err != nil {
			return model.RawTransaction{}, err
		}
	case credit != "":
		if amount, err = parseAmount(credit); err != nil {
			return model.RawTransaction{}, err
		}
		amount = amount.Neg()
	default:
		return model.RawTransaction{}, fmt.Errorf("neither debit nor credit set")
	}

	desc := strings.TrimSpace(rec[maybankColDesc])
	txn := model.RawTransaction{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Kind:        maybankKind(desc, amount),
		Reference:   makeMaybankRef(date, desc),
	}
	if s := strings.TrimSpace(rec[maybankColBalance]); s != "" {
		bal, err := parseAmount(s)
		if err != nil {
			return model.RawTransaction{}, err
		}
		txn.BalanceAfter = &bal
	}
	return txn, nil
}

func maybankKind(desc string, amount decimal.Decimal) model.TransactionKind {
	upper := strings.ToUpper(desc)
	if amount.IsNegative() {
		if containsAnyWord(upper, refundKeywords) {
			return model.KindPurchase
		}
		return model.KindPayment
	}
	if containsAnyWord(upper, feeKeywords) {
		return model.KindFee
	}
	return model.KindPurchase
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		for _, f := range strings.Fields(s) {
			if f == w {
				return true
			}
		}
	}
	return false
}

// makeMaybankRef creates a reference like maybank_20250103_GRABFOODKL.
func makeMaybankRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("maybank_%s_%s", date.Format("20060102"), prefix)
}
