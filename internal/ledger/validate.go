package ledger

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"

	"github.com/cleared-dev/recon/internal/model"
)

// ValidateTransactions checks every transaction against the period and
// returns the accepted ones in input order. Each rejected transaction gets one
// InputError naming the first rule it broke; all transactions are checked.
func ValidateTransactions(period model.AccountPeriod, txns []model.RawTransaction) ([]model.RawTransaction, []*model.InputError) {
	var accepted []model.RawTransaction
	var rejected []*model.InputError

	seen := make(map[string]bool, len(txns))
	for _, txn := range txns {
		if ierr := validateOne(period, txn, seen); ierr != nil {
			rejected = append(rejected, ierr)
			continue
		}
		seen[txn.ID] = true
		accepted = append(accepted, txn)
	}
	return accepted, rejected
}

func validateOne(period model.AccountPeriod, txn model.RawTransaction, seen map[string]bool) *model.InputError {
	reject := func(kind model.ErrorKind, format string, args ...any) *model.InputError {
		return &model.InputError{Kind: kind, TransactionID: txn.ID, Description: fmt.Sprintf(format, args...)}
	}

	if seen[txn.ID] {
		return reject(model.ErrKindDuplicate, "transaction %s appears more than once", txn.ID)
	}
	if !txn.Kind.Valid() {
		return reject(model.ErrKindUnsupportedKind, "unsupported transaction kind %q", txn.Kind)
	}
	if txn.Currency != "" && !strings.EqualFold(txn.Currency, period.Currency) {
		return reject(model.ErrKindCurrencyMismatch, "currency %s does not match ledger currency %s", txn.Currency, period.Currency)
	}
	if !period.Declares(txn.AccountID) {
		return reject(model.ErrKindAccountNotInPeriod, "account %q is not declared for %s", txn.AccountID, period.Key)
	}
	if !period.Key.Period.Contains(txn.Date) {
		return reject(model.ErrKindOutsidePeriod, "date %s not in %s", txn.Date.Format("2006-01-02"), period.Key.Period)
	}
	if !txn.Amount.Equal(model.Cents(txn.Amount)) {
		return reject(model.ErrKindInvalidAmount, "amount %s has more than 2 decimal places", txn.Amount)
	}
	if txn.BalanceAfter != nil && !txn.BalanceAfter.Equal(model.Cents(*txn.BalanceAfter)) {
		return reject(model.ErrKindInvalidAmount, "balance %s has more than 2 decimal places", txn.BalanceAfter)
	}
	return nil
}

// validatePeriod checks the period declaration itself.
func validatePeriod(period model.AccountPeriod) error {
	if money.GetCurrency(strings.ToUpper(period.Currency)) == nil {
		return fmt.Errorf("unknown ledger currency %q: %w", period.Currency, model.ErrCurrencyMismatch)
	}
	seen := make(map[string]bool, len(period.Accounts))
	for _, a := range period.Accounts {
		if a.AccountID == "" {
			return fmt.Errorf("period %s declares an account without an ID", period.Key)
		}
		if seen[a.AccountID] {
			return fmt.Errorf("period %s declares account %q twice", period.Key, a.AccountID)
		}
		seen[a.AccountID] = true
		if a.Currency != "" && !strings.EqualFold(a.Currency, period.Currency) {
			return fmt.Errorf("period %s: account %s is in %s, ledger in %s: %w",
				period.Key, a.AccountID, strings.ToUpper(a.Currency), strings.ToUpper(period.Currency), model.ErrCurrencyMismatch)
		}
	}
	return nil
}
