// Package sqlite provides a SQLite-backed implementation of the storage
// contracts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/cleared-dev/recon/internal/id"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/storage"
	"github.com/cleared-dev/recon/internal/storage/sqlite/migrations"
)

// Store persists statements, overrides and ledgers in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	// modernc applies _pragma parameters to every pooled connection.
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AddStatement ingests a statement, assigning account-wide sequences and IDs.
func (s *Store) AddStatement(ctx context.Context, st model.Statement) ([]model.RawTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	accountID := strings.TrimSpace(st.AccountID)
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin add statement: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	period := st.Key.Period.String()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO statements (account_id, period, customer_id, bank, currency, opening, closing, ingested_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		accountID, period, st.Key.CustomerID, st.Key.Bank, st.Currency,
		st.Opening.String(), nullDecimal(st.Closing), toMillis(s.now()),
	); err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert statement: %w", err)
	}

	var last int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM transactions WHERE account_id = ?`, accountID,
	).Scan(&last); err != nil {
		return nil, fmt.Errorf("read last sequence: %w", err)
	}

	ingested := make([]model.RawTransaction, len(st.Transactions))
	for i, txn := range st.Transactions {
		txn.AccountID = accountID
		txn.Sequence = last + i + 1
		txn.ID = id.FormatTxnID(accountID, txn.Sequence)
		if _, err := tx.ExecContext(ctx, `
INSERT INTO transactions (
    txn_id, account_id, seq, period, occurred_at, description, amount, kind,
    counterparty, supplier_tag, balance_after, reference, currency
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.ID, accountID, txn.Sequence, period, toMillis(txn.Date), txn.Description,
			txn.Amount.String(), string(txn.Kind), txn.Counterparty, txn.SupplierTag,
			nullDecimal(txn.BalanceAfter), txn.Reference, txn.Currency,
		); err != nil {
			return nil, fmt.Errorf("insert transaction %s: %w", txn.ID, err)
		}
		ingested[i] = txn
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add statement: %w", err)
	}
	return ingested, nil
}

// PeriodAccounts returns statement headers for the key, sorted by account,
// and the currency of the first one.
func (s *Store) PeriodAccounts(ctx context.Context, key model.LedgerKey) ([]model.StatementAccount, string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT account_id, currency, opening, closing
FROM statements
WHERE customer_id = ? AND bank = ? AND period = ?
ORDER BY account_id`,
		key.CustomerID, key.Bank, key.Period.String(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("query period accounts: %w", err)
	}
	defer rows.Close()

	var accts []model.StatementAccount
	for rows.Next() {
		var (
			acct    model.StatementAccount
			opening string
			closing sql.NullString
		)
		if err := rows.Scan(&acct.AccountID, &acct.Currency, &opening, &closing); err != nil {
			return nil, "", fmt.Errorf("scan period account: %w", err)
		}
		if acct.Opening, err = decimal.NewFromString(opening); err != nil {
			return nil, "", fmt.Errorf("parse opening for %s: %w", acct.AccountID, err)
		}
		if acct.Closing, err = scanDecimalPtr(closing); err != nil {
			return nil, "", fmt.Errorf("parse closing for %s: %w", acct.AccountID, err)
		}
		accts = append(accts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("query period accounts: %w", err)
	}
	if len(accts) == 0 {
		return nil, "", storage.ErrNotFound
	}
	return accts, accts[0].Currency, nil
}

// HasPeriod reports whether any statement exists for the key.
func (s *Store) HasPeriod(ctx context.Context, key model.LedgerKey) (bool, error) {
	var found int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT 1 FROM statements WHERE customer_id = ? AND bank = ? AND period = ? LIMIT 1`,
		key.CustomerID, key.Bank, key.Period.String(),
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query statements: %w", err)
	}
	return true, nil
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

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT txn_id, seq, occurred_at, description, amount, kind, counterparty,
       supplier_tag, balance_after, reference, currency
FROM transactions
WHERE account_id = ? AND period = ? AND seq > ?
ORDER BY seq
LIMIT ?`,
		accountID, period.String(), after, pageSize+1,
	)
	if err != nil {
		return storage.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var page storage.TransactionPage
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return storage.TransactionPage{}, err
		}
		txn.AccountID = accountID
		page.Transactions = append(page.Transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return storage.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	if len(page.Transactions) > pageSize {
		page.NextPageToken = strconv.Itoa(page.Transactions[pageSize-1].Sequence)
		page.Transactions = page.Transactions[:pageSize]
	}
	return page, nil
}

func scanTransaction(rows *sql.Rows) (model.RawTransaction, error) {
	var (
		txn        model.RawTransaction
		occurredAt int64
		amount     string
		kind       string
		balance    sql.NullString
	)
	if err := rows.Scan(
		&txn.ID, &txn.Sequence, &occurredAt, &txn.Description, &amount, &kind,
		&txn.Counterparty, &txn.SupplierTag, &balance, &txn.Reference, &txn.Currency,
	); err != nil {
		return model.RawTransaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	var err error
	if txn.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.RawTransaction{}, fmt.Errorf("parse amount for %s: %w", txn.ID, err)
	}
	if txn.BalanceAfter, err = scanDecimalPtr(balance); err != nil {
		return model.RawTransaction{}, fmt.Errorf("parse balance for %s: %w", txn.ID, err)
	}
	txn.Date = fromMillis(occurredAt)
	txn.Kind = model.TransactionKind(kind)
	return txn, nil
}

// GetOverrides returns the corrections for transactions in the key's period.
func (s *Store) GetOverrides(ctx context.Context, key model.LedgerKey) (map[string]model.Label, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT o.txn_id, o.owner, o.reason, o.actor
FROM overrides o
JOIN transactions t ON t.txn_id = o.txn_id
JOIN statements s ON s.account_id = t.account_id AND s.period = t.period
WHERE s.customer_id = ? AND s.bank = ? AND s.period = ?`,
		key.CustomerID, key.Bank, key.Period.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Label)
	for rows.Next() {
		var txnID, owner, reason, actor string
		if err := rows.Scan(&txnID, &owner, &reason, &actor); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out[txnID] = model.OverrideLabel(model.Owner(owner), reason, actor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	return out, nil
}

// PutOverride records a correction and supersedes the ledgers of the affected
// period and of every later period in the chain.
func (s *Store) PutOverride(ctx context.Context, txnID string, owner model.Owner, reason, actor string) error {
	if !owner.Valid() {
		return fmt.Errorf("invalid owner %q", owner)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put override: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var key model.LedgerKey
	var period string
	err = tx.QueryRowContext(ctx, `
SELECT s.customer_id, s.bank, s.period
FROM transactions t
JOIN statements s ON s.account_id = t.account_id AND s.period = t.period
WHERE t.txn_id = ?`, txnID,
	).Scan(&key.CustomerID, &key.Bank, &period)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transaction %s: %w", txnID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup transaction %s: %w", txnID, err)
	}
	if key.Period, err = model.ParsePeriod(period); err != nil {
		return fmt.Errorf("lookup transaction %s: %w", txnID, err)
	}

	var curOwner, curReason, curActor string
	err = tx.QueryRowContext(ctx,
		`SELECT owner, reason, actor FROM overrides WHERE txn_id = ?`, txnID,
	).Scan(&curOwner, &curReason, &curActor)
	switch {
	case err == nil:
		if model.Owner(curOwner) == owner && curReason == reason && curActor == actor {
			return nil
		}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("read override %s: %w", txnID, err)
	}

	now := toMillis(s.now())
	if _, err := tx.ExecContext(ctx, `
INSERT INTO overrides (txn_id, owner, reason, actor, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(txn_id) DO UPDATE SET
    owner = excluded.owner,
    reason = excluded.reason,
    actor = excluded.actor,
    updated_at = excluded.updated_at`,
		txnID, string(owner), reason, actor, now,
	); err != nil {
		return fmt.Errorf("write override %s: %w", txnID, err)
	}
	// Later months carried this month's split forward.
	if _, err := tx.ExecContext(ctx, `
UPDATE ledgers SET superseded_at = ?
WHERE customer_id = ? AND bank = ? AND period >= ? AND superseded_at IS NULL`,
		now, key.CustomerID, key.Bank, key.Period.String(),
	); err != nil {
		return fmt.Errorf("supersede ledgers from %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put override: %w", err)
	}
	return nil
}

// SaveLedger stores led as the current ledger for its key.
func (s *Store) SaveLedger(ctx context.Context, led model.Ledger, res model.VerificationResult) (model.Ledger, error) {
	if led.ID == "" {
		led.ID = id.NewRunID()
	}
	// Millisecond precision, matching what is read back.
	led.CreatedAt = fromMillis(toMillis(s.now()))
	led.SupersededAt = nil
	res.LedgerID = led.ID

	accounts, err := json.Marshal(led.Accounts)
	if err != nil {
		return model.Ledger{}, fmt.Errorf("encode ledger accounts: %w", err)
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return model.Ledger{}, fmt.Errorf("encode verification result: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return model.Ledger{}, fmt.Errorf("begin save ledger: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		headID  sql.NullString
		version int
	)
	err = tx.QueryRowContext(ctx, `
SELECT ledger_id, version FROM ledgers
WHERE customer_id = ? AND bank = ? AND period = ?
ORDER BY version DESC LIMIT 1`,
		led.Key.CustomerID, led.Key.Bank, led.Key.Period.String(),
	).Scan(&headID, &version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.Ledger{}, fmt.Errorf("read ledger head: %w", err)
	}
	led.Supersedes = headID.String
	if err := supersede(ctx, tx, led.Key, toMillis(led.CreatedAt)); err != nil {
		return model.Ledger{}, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO ledgers (
    ledger_id, customer_id, bank, period, version, status, currency,
    opening, closing, owner_opening, counterparty_opening,
    owner_expense, owner_payment, counterparty_expense, counterparty_payment,
    owner_balance, counterparty_balance, transaction_count, net_amount,
    registry_version, accounts, supersedes, created_at, superseded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		led.ID, led.Key.CustomerID, led.Key.Bank, led.Key.Period.String(), version+1,
		string(led.Status), led.Currency,
		led.Opening.String(), led.Closing.String(),
		led.OwnerOpening.String(), led.CounterpartyOpening.String(),
		led.OwnerExpense.String(), led.OwnerPayment.String(),
		led.CounterpartyExpense.String(), led.CounterpartyPayment.String(),
		led.OwnerBalance.String(), led.CounterpartyBalance.String(),
		led.TransactionCount, led.NetAmount.String(),
		led.RegistryVersion, string(accounts), led.Supersedes, toMillis(led.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return model.Ledger{}, fmt.Errorf("ledger %s: %w", led.ID, storage.ErrAlreadyExists)
		}
		return model.Ledger{}, fmt.Errorf("insert ledger: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO verification_results (ledger_id, passed, payload) VALUES (?, ?, ?)`,
		led.ID, res.Passed, string(payload),
	); err != nil {
		return model.Ledger{}, fmt.Errorf("insert verification result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Ledger{}, fmt.Errorf("commit save ledger: %w", err)
	}
	return led, nil
}

// CurrentLedger returns the latest ledger for key.
func (s *Store) CurrentLedger(ctx context.Context, key model.LedgerKey) (model.Ledger, error) {
	hist, err := s.queryLedgers(ctx, key, "ORDER BY version DESC LIMIT 1")
	if err != nil {
		return model.Ledger{}, err
	}
	if len(hist) == 0 {
		return model.Ledger{}, storage.ErrNotFound
	}
	return hist[0], nil
}

// PriorLedger returns the current ledger of the latest earlier month of the
// chain that has one.
func (s *Store) PriorLedger(ctx context.Context, key model.LedgerKey) (model.Ledger, error) {
	var period string
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT period FROM ledgers
WHERE customer_id = ? AND bank = ? AND period < ?
ORDER BY period DESC LIMIT 1`,
		key.CustomerID, key.Bank, key.Period.String(),
	).Scan(&period)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ledger{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Ledger{}, fmt.Errorf("query prior ledger: %w", err)
	}
	prior := model.LedgerKey{CustomerID: key.CustomerID, Bank: key.Bank}
	if prior.Period, err = model.ParsePeriod(period); err != nil {
		return model.Ledger{}, fmt.Errorf("query prior ledger: %w", err)
	}
	return s.CurrentLedger(ctx, prior)
}

// LedgerHistory returns every ledger saved for key, oldest first.
func (s *Store) LedgerHistory(ctx context.Context, key model.LedgerKey) ([]model.Ledger, error) {
	return s.queryLedgers(ctx, key, "ORDER BY version ASC")
}

// LatestResult returns the verification result saved with the current ledger.
func (s *Store) LatestResult(ctx context.Context, key model.LedgerKey) (model.VerificationResult, error) {
	var payload string
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT r.payload
FROM verification_results r
JOIN ledgers l ON l.ledger_id = r.ledger_id
WHERE l.customer_id = ? AND l.bank = ? AND l.period = ?
ORDER BY l.version DESC LIMIT 1`,
		key.CustomerID, key.Bank, key.Period.String(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.VerificationResult{}, storage.ErrNotFound
	}
	if err != nil {
		return model.VerificationResult{}, fmt.Errorf("query verification result: %w", err)
	}
	var res model.VerificationResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return model.VerificationResult{}, fmt.Errorf("decode verification result: %w", err)
	}
	return res, nil
}

func (s *Store) queryLedgers(ctx context.Context, key model.LedgerKey, order string) ([]model.Ledger, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT ledger_id, status, currency, opening, closing, owner_opening, counterparty_opening,
       owner_expense, owner_payment, counterparty_expense, counterparty_payment,
       owner_balance, counterparty_balance, transaction_count, net_amount,
       registry_version, accounts, supersedes, created_at, superseded_at
FROM ledgers
WHERE customer_id = ? AND bank = ? AND period = ?
`+order,
		key.CustomerID, key.Bank, key.Period.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query ledgers: %w", err)
	}
	defer rows.Close()

	var out []model.Ledger
	for rows.Next() {
		led := model.Ledger{Key: key}
		var (
			status       string
			amounts      [11]string
			accounts     string
			createdAt    int64
			supersededAt sql.NullInt64
		)
		if err := rows.Scan(
			&led.ID, &status, &led.Currency,
			&amounts[0], &amounts[1], &amounts[2], &amounts[3],
			&amounts[4], &amounts[5], &amounts[6], &amounts[7],
			&amounts[8], &amounts[9], &led.TransactionCount, &amounts[10],
			&led.RegistryVersion, &accounts, &led.Supersedes, &createdAt, &supersededAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		targets := [11]*decimal.Decimal{
			&led.Opening, &led.Closing, &led.OwnerOpening, &led.CounterpartyOpening,
			&led.OwnerExpense, &led.OwnerPayment, &led.CounterpartyExpense, &led.CounterpartyPayment,
			&led.OwnerBalance, &led.CounterpartyBalance, &led.NetAmount,
		}
		for i, raw := range amounts {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("parse ledger %s amount: %w", led.ID, err)
			}
			*targets[i] = d
		}
		if err := json.Unmarshal([]byte(accounts), &led.Accounts); err != nil {
			return nil, fmt.Errorf("decode ledger %s accounts: %w", led.ID, err)
		}
		led.Status = model.LedgerStatus(status)
		led.CreatedAt = fromMillis(createdAt)
		if supersededAt.Valid {
			t := fromMillis(supersededAt.Int64)
			led.SupersededAt = &t
		}
		out = append(out, led)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query ledgers: %w", err)
	}
	return out, nil
}

func supersede(ctx context.Context, tx *sql.Tx, key model.LedgerKey, at int64) error {
	if _, err := tx.ExecContext(ctx, `
UPDATE ledgers SET superseded_at = ?
WHERE customer_id = ? AND bank = ? AND period = ? AND superseded_at IS NULL`,
		at, key.CustomerID, key.Bank, key.Period.String(),
	); err != nil {
		return fmt.Errorf("supersede ledger %s: %w", key, err)
	}
	return nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func scanDecimalPtr(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
