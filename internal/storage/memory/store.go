// Package memory provides an in-memory implementation of the storage
// contracts. It is safe for concurrent use; data is lost when the process
// exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cleared-dev/recon/internal/id"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/storage"
)

type stmtKey struct {
	accountID string
	period    model.Period
}

// Store holds statements, overrides and ledgers in memory.
type Store struct {
	mu sync.RWMutex

	statements map[stmtKey]model.Statement
	byAccount  map[string][]model.RawTransaction // ingestion order
	txnKey     map[string]model.LedgerKey
	overrides  map[string]model.Label
	ledgers    map[model.LedgerKey][]model.Ledger
	results    map[model.LedgerKey][]model.VerificationResult

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		statements: make(map[stmtKey]model.Statement),
		byAccount:  make(map[string][]model.RawTransaction),
		txnKey:     make(map[string]model.LedgerKey),
		overrides:  make(map[string]model.Label),
		ledgers:    make(map[model.LedgerKey][]model.Ledger),
		results:    make(map[model.LedgerKey][]model.VerificationResult),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ storage.Store = (*Store)(nil)

// AddStatement ingests a statement, assigning account-wide sequences and IDs.
func (s *Store) AddStatement(ctx context.Context, st model.Statement) ([]model.RawTransaction, error) {
	if st.AccountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	sk := stmtKey{accountID: st.AccountID, period: st.Key.Period}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statements[sk]; ok {
		return nil, storage.ErrAlreadyExists
	}

	existing := s.byAccount[st.AccountID]
	next := 1
	if n := len(existing); n > 0 {
		next = existing[n-1].Sequence + 1
	}

	ingested := make([]model.RawTransaction, len(st.Transactions))
	for i, txn := range st.Transactions {
		txn.AccountID = st.AccountID
		txn.Sequence = next + i
		txn.ID = id.FormatTxnID(st.AccountID, txn.Sequence)
		ingested[i] = txn
		s.txnKey[txn.ID] = st.Key
	}
	s.byAccount[st.AccountID] = append(existing, ingested...)

	header := st
	header.Transactions = nil
	s.statements[sk] = header

	out := make([]model.RawTransaction, len(ingested))
	copy(out, ingested)
	return out, nil
}

// PeriodAccounts returns statement headers for the key, sorted by account,
// and the currency of the first one.
func (s *Store) PeriodAccounts(ctx context.Context, key model.LedgerKey) ([]model.StatementAccount, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accts []model.StatementAccount
	for sk, st := range s.statements {
		if sk.period != key.Period || st.Key != key {
			continue
		}
		accts = append(accts, model.StatementAccount{
			AccountID: st.AccountID,
			Currency:  st.Currency,
			Opening:   st.Opening,
			Closing:   st.Closing,
		})
	}
	if len(accts) == 0 {
		return nil, "", storage.ErrNotFound
	}
	sort.Slice(accts, func(i, j int) bool { return accts[i].AccountID < accts[j].AccountID })
	return accts, accts[0].Currency, nil
}

// HasPeriod reports whether any statement exists for the key.
func (s *Store) HasPeriod(ctx context.Context, key model.LedgerKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.statements {
		if st.Key == key {
			return true, nil
		}
	}
	return false, nil
}

// ListTransactions pages through an account's transactions for a period.
// The page token is the last sequence returned.
func (s *Store) ListTransactions(ctx context.Context, accountID string, period model.Period, pageSize int, pageToken string) (storage.TransactionPage, error) {
	if pageSize <= 0 {
		pageSize = storage.DefaultPageSize
	}
	after := 0
	if pageToken != "" {
		v, err := strconv.Atoi(pageToken)
		if err != nil {
			return storage.TransactionPage{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		after = v
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var page storage.TransactionPage
	for _, txn := range s.byAccount[accountID] {
		if txn.Sequence <= after || s.txnKey[txn.ID].Period != period {
			continue
		}
		if len(page.Transactions) == pageSize {
			page.NextPageToken = strconv.Itoa(page.Transactions[pageSize-1].Sequence)
			break
		}
		page.Transactions = append(page.Transactions, txn)
	}
	return page, nil
}

// GetOverrides returns the corrections for transactions in the key's period.
func (s *Store) GetOverrides(ctx context.Context, key model.LedgerKey) (map[string]model.Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Label)
	for txnID, label := range s.overrides {
		if s.txnKey[txnID] == key {
			out[txnID] = label
		}
	}
	return out, nil
}

// PutOverride records a correction and supersedes the ledgers of the affected
// period and of every later period in the chain.
func (s *Store) PutOverride(ctx context.Context, txnID string, owner model.Owner, reason, actor string) error {
	if !owner.Valid() {
		return fmt.Errorf("invalid owner %q", owner)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.txnKey[txnID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", txnID, storage.ErrNotFound)
	}
	label := model.OverrideLabel(owner, reason, actor)
	if cur, ok := s.overrides[txnID]; ok && cur == label {
		return nil
	}
	s.overrides[txnID] = label
	for k := range s.ledgers {
		if k.CustomerID == key.CustomerID && k.Bank == key.Bank && !k.Period.Before(key.Period) {
			s.supersedeLocked(k)
		}
	}
	return nil
}

// SaveLedger stores led as the current ledger for its key.
func (s *Store) SaveLedger(ctx context.Context, led model.Ledger, res model.VerificationResult) (model.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if led.ID == "" {
		led.ID = id.NewRunID()
	}
	led.CreatedAt = s.now()
	led.SupersededAt = nil
	led.Accounts = append([]model.AccountContribution(nil), led.Accounts...)
	if hist := s.ledgers[led.Key]; len(hist) > 0 {
		led.Supersedes = hist[len(hist)-1].ID
	}
	s.supersedeLocked(led.Key)

	res.LedgerID = led.ID
	s.ledgers[led.Key] = append(s.ledgers[led.Key], led)
	s.results[led.Key] = append(s.results[led.Key], res)
	return led, nil
}

// CurrentLedger returns the latest ledger for key.
func (s *Store) CurrentLedger(ctx context.Context, key model.LedgerKey) (model.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hist := s.ledgers[key]
	if len(hist) == 0 {
		return model.Ledger{}, storage.ErrNotFound
	}
	return hist[len(hist)-1], nil
}

// PriorLedger returns the current ledger of the latest earlier month of the
// chain that has one.
func (s *Store) PriorLedger(ctx context.Context, key model.LedgerKey) (model.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  model.LedgerKey
		found bool
	)
	for k, hist := range s.ledgers {
		if len(hist) == 0 || k.CustomerID != key.CustomerID || k.Bank != key.Bank || !k.Period.Before(key.Period) {
			continue
		}
		if !found || best.Period.Before(k.Period) {
			best, found = k, true
		}
	}
	if !found {
		return model.Ledger{}, storage.ErrNotFound
	}
	hist := s.ledgers[best]
	return hist[len(hist)-1], nil
}

// LedgerHistory returns every ledger saved for key, oldest first.
func (s *Store) LedgerHistory(ctx context.Context, key model.LedgerKey) ([]model.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hist := s.ledgers[key]
	out := make([]model.Ledger, len(hist))
	copy(out, hist)
	return out, nil
}

// LatestResult returns the verification result saved with the current ledger.
func (s *Store) LatestResult(ctx context.Context, key model.LedgerKey) (model.VerificationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := s.results[key]
	if len(res) == 0 {
		return model.VerificationResult{}, storage.ErrNotFound
	}
	return res[len(res)-1], nil
}

func (s *Store) supersedeLocked(key model.LedgerKey) {
	hist := s.ledgers[key]
	if len(hist) == 0 {
		return
	}
	head := &hist[len(hist)-1]
	if head.SupersededAt == nil {
		now := s.now()
		head.SupersededAt = &now
	}
}
