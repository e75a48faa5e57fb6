package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/recon/internal/model"
)

const (
	numFields   = 6
	colID       = 0
	colCustomer = 1
	colBank     = 2
	colLastFour = 3
	colCurrency = 4
	colDesc     = 5
)

var header = []string{"account_id", "customer_id", "bank", "last_four", "currency", "description"}

// ReadAccounts reads accounts.csv.
func ReadAccounts(r io.Reader) ([]model.CardAccount, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.CardAccount
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes accounts.csv.
func WriteAccounts(w io.Writer, accounts []model.CardAccount) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts a CardAccount to a CSV row.
func MarshalAccount(acct model.CardAccount) []string {
	row := make([]string, numFields)
	row[colID] = acct.ID
	row[colCustomer] = acct.CustomerID
	row[colBank] = acct.Bank
	row[colLastFour] = acct.LastFour
	row[colCurrency] = acct.Currency
	row[colDesc] = acct.Description
	return row
}

// UnmarshalAccount converts a CSV row to a CardAccount.
func UnmarshalAccount(record []string) (model.CardAccount, error) {
	if len(record) != numFields {
		return model.CardAccount{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	acct := model.CardAccount{
		ID:          strings.TrimSpace(record[colID]),
		CustomerID:  strings.TrimSpace(record[colCustomer]),
		Bank:        strings.TrimSpace(record[colBank]),
		LastFour:    strings.TrimSpace(record[colLastFour]),
		Currency:    strings.ToUpper(strings.TrimSpace(record[colCurrency])),
		Description: record[colDesc],
	}
	switch {
	case acct.ID == "":
		return model.CardAccount{}, fmt.Errorf("account_id is required")
	case strings.Contains(acct.ID, "#"):
		return model.CardAccount{}, fmt.Errorf("account_id %q must not contain '#'", acct.ID)
	case acct.CustomerID == "":
		return model.CardAccount{}, fmt.Errorf("customer_id is required for %s", acct.ID)
	case acct.Bank == "":
		return model.CardAccount{}, fmt.Errorf("bank is required for %s", acct.ID)
	}
	if acct.LastFour != "" && len(acct.LastFour) != 4 {
		return model.CardAccount{}, fmt.Errorf("last_four %q for %s must be 4 digits", acct.LastFour, acct.ID)
	}
	return acct, nil
}
