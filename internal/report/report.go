// Package report renders ledgers and verification results for people and
// for downstream tools.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats in help-text order.
var Formats = []Format{FormatText, FormatCSV, FormatJSON, FormatMarkdown}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// Write renders led and res to w in the given format.
func Write(w io.Writer, format Format, led model.Ledger, res model.VerificationResult) error {
	switch format {
	case FormatText:
		return Text(w, led, res)
	case FormatCSV:
		return IssuesCSV(w, res)
	case FormatJSON:
		return JSON(w, led, res)
	case FormatMarkdown:
		return RenderMarkdown(w, led, res, 100)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// Amount formats d in currency using its symbol and minor-unit precision.
// Unknown currencies fall back to two decimals and the code.
func Amount(d decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return d.StringFixed(2) + " " + currency
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return cur.Formatter().Format(minor)
}

// OptionalAmount formats a possibly missing value.
func OptionalAmount(d *decimal.Decimal, currency string) string {
	if d == nil {
		return "missing"
	}
	return Amount(*d, currency)
}

// issueRef is the most specific reference an issue carries.
func issueRef(is model.Issue) string {
	switch {
	case is.TransactionID != "":
		return is.TransactionID
	case is.AccountID != "":
		return is.AccountID
	default:
		return is.Period
	}
}
