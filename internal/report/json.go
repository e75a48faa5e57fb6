package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/cleared-dev/recon/internal/model"
)

type document struct {
	Ledger ledgerDoc                `json:"ledger"`
	Result model.VerificationResult `json:"result"`
}

type ledgerDoc struct {
	ID                  string       `json:"id,omitempty"`
	Key                 string       `json:"key"`
	Currency            string       `json:"currency"`
	Status              string       `json:"status"`
	Opening             string       `json:"opening"`
	Closing             string       `json:"closing"`
	OwnerExpense        string       `json:"owner_expense"`
	OwnerPayment        string       `json:"owner_payment"`
	OwnerBalance        string       `json:"owner_balance"`
	OwnerClosing        string       `json:"owner_closing"`
	CounterpartyExpense string       `json:"counterparty_expense"`
	CounterpartyPayment string       `json:"counterparty_payment"`
	CounterpartyBalance string       `json:"counterparty_balance"`
	CounterpartyClosing string       `json:"counterparty_closing"`
	TransactionCount    int          `json:"transaction_count"`
	RegistryVersion     string       `json:"registry_version"`
	Supersedes          string       `json:"supersedes,omitempty"`
	CreatedAt           *time.Time   `json:"created_at,omitempty"`
	Accounts            []accountDoc `json:"accounts"`
}

type accountDoc struct {
	AccountID        string `json:"account_id"`
	Opening          string `json:"opening"`
	Closing          string `json:"closing"`
	ClosingReported  bool   `json:"closing_reported"`
	TransactionCount int    `json:"transaction_count"`
}

func newDocument(led model.Ledger, res model.VerificationResult) document {
	doc := ledgerDoc{
		ID:                  led.ID,
		Key:                 led.Key.String(),
		Currency:            led.Currency,
		Status:              string(led.Status),
		Opening:             led.Opening.StringFixed(2),
		Closing:             led.Closing.StringFixed(2),
		OwnerExpense:        led.OwnerExpense.StringFixed(2),
		OwnerPayment:        led.OwnerPayment.StringFixed(2),
		OwnerBalance:        led.OwnerBalance.StringFixed(2),
		OwnerClosing:        led.OwnerClosing().StringFixed(2),
		CounterpartyExpense: led.CounterpartyExpense.StringFixed(2),
		CounterpartyPayment: led.CounterpartyPayment.StringFixed(2),
		CounterpartyBalance: led.CounterpartyBalance.StringFixed(2),
		CounterpartyClosing: led.CounterpartyClosing().StringFixed(2),
		TransactionCount:    led.TransactionCount,
		RegistryVersion:     led.RegistryVersion,
		Supersedes:          led.Supersedes,
		Accounts:            make([]accountDoc, 0, len(led.Accounts)),
	}
	if !led.CreatedAt.IsZero() {
		at := led.CreatedAt.UTC()
		doc.CreatedAt = &at
	}
	for _, a := range led.Accounts {
		doc.Accounts = append(doc.Accounts, accountDoc{
			AccountID:        a.AccountID,
			Opening:          a.Opening.StringFixed(2),
			Closing:          a.Closing.StringFixed(2),
			ClosingReported:  a.ClosingReported,
			TransactionCount: a.TransactionCount,
		})
	}
	if res.Issues == nil {
		res.Issues = []model.Issue{}
	}
	return document{Ledger: doc, Result: res}
}

// JSON writes the ledger and its verification result as indented JSON.
func JSON(w io.Writer, led model.Ledger, res model.VerificationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newDocument(led, res)); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// Query evaluates a JSONPath expression (for example "$.result.issues[*].kind")
// against the JSON report document.
func Query(led model.Ledger, res model.VerificationResult, path string) (interface{}, error) {
	raw, err := json.Marshal(newDocument(led, res))
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", path, err)
	}
	return v, nil
}
