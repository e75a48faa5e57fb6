package model

// CardAccount is one credit card account in the account directory.
type CardAccount struct {
	ID          string
	CustomerID  string
	Bank        string
	LastFour    string
	Currency    string
	Description string
}

// Chain is the reconciliation chain the account belongs to.
func (a CardAccount) Chain() (customerID, bank string) {
	return a.CustomerID, a.Bank
}
