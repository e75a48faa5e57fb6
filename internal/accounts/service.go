package accounts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cleared-dev/recon/internal/model"
)

// Dir and File locate the account directory inside a workspace.
const (
	Dir  = "accounts"
	File = "accounts.csv"
)

// Chain identifies one (customer, bank) reconciliation chain.
type Chain struct {
	CustomerID string
	Bank       string
}

// Service provides in-memory lookup over the card-account directory.
type Service struct {
	accounts []model.CardAccount
	byID     map[string]model.CardAccount
}

// NewService creates a Service from a slice of accounts. Duplicate IDs are
// rejected.
func NewService(accounts []model.CardAccount) (*Service, error) {
	byID := make(map[string]model.CardAccount, len(accounts))
	for _, a := range accounts {
		if _, dup := byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate account %s", a.ID)
		}
		byID[a.ID] = a
	}
	return &Service{accounts: accounts, byID: byID}, nil
}

// Load reads accounts/accounts.csv from a workspace root and returns a Service.
func Load(root string) (*Service, error) {
	path := filepath.Join(root, Dir, File)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening account directory: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading account directory: %w", err)
	}
	return NewService(accts)
}

// All returns all accounts.
func (s *Service) All() []model.CardAccount {
	return s.accounts
}

// Get returns an account by ID.
func (s *Service) Get(id string) (model.CardAccount, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Exists reports whether an account ID exists.
func (s *Service) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// ForCustomerBank returns the customer's accounts with the bank, sorted by ID.
func (s *Service) ForCustomerBank(customerID, bank string) []model.CardAccount {
	var result []model.CardAccount
	for _, a := range s.accounts {
		if a.CustomerID == customerID && a.Bank == bank {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Chains returns the distinct (customer, bank) chains, optionally limited to
// one customer. Sorted for stable output.
func (s *Service) Chains(customerID string) []Chain {
	seen := make(map[Chain]bool)
	var out []Chain
	for _, a := range s.accounts {
		if customerID != "" && a.CustomerID != customerID {
			continue
		}
		c := Chain{CustomerID: a.CustomerID, Bank: a.Bank}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CustomerID != out[j].CustomerID {
			return out[i].CustomerID < out[j].CustomerID
		}
		return out[i].Bank < out[j].Bank
	})
	return out
}

// Add appends an account. Duplicate IDs are rejected.
func (s *Service) Add(acct model.CardAccount) error {
	if _, dup := s.byID[acct.ID]; dup {
		return fmt.Errorf("duplicate account %s", acct.ID)
	}
	s.accounts = append(s.accounts, acct)
	s.byID[acct.ID] = acct
	return nil
}

// Save writes the directory to accounts/accounts.csv.
func (s *Service) Save(root string) error {
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	path := filepath.Join(dir, File)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating account directory file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, s.accounts); err != nil {
		return fmt.Errorf("writing account directory: %w", err)
	}
	return nil
}
