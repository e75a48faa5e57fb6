package model

import "github.com/shopspring/decimal"

// Statement is one card account's monthly statement as ingested from the
// source: header balances plus line items in source order. Transaction IDs
// and sequences are assigned by the store on ingestion.
type Statement struct {
	Key          LedgerKey
	AccountID    string
	Currency     string
	Opening      decimal.Decimal
	Closing      *decimal.Decimal
	Transactions []RawTransaction
}
