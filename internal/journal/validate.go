package journal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
)

// ValidationError describes a single way a journal disagrees with its ledger.
type ValidationError struct {
	Check         string
	TransactionID string
	Description   string
}

func (e ValidationError) Error() string {
	if e.TransactionID == "" {
		return fmt.Sprintf("%s: %s", e.Check, e.Description)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Check, e.TransactionID, e.Description)
}

// ValidateEntries checks a journal against the ledger it was exported for.
// All checks run; every violation is returned.
func ValidateEntries(entries []Entry, led model.Ledger) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool, len(entries))
	var ownerExp, ownerPay, cpExp, cpPay decimal.Decimal
	for _, e := range entries {
		if e.Debit.IsPositive() && e.Credit.IsPositive() {
			errs = append(errs, ValidationError{
				Check:         "single-side",
				TransactionID: e.TransactionID,
				Description:   "entry has both a debit and a credit",
			})
		}
		if e.Debit.IsNegative() || e.Credit.IsNegative() {
			errs = append(errs, ValidationError{
				Check:         "single-side",
				TransactionID: e.TransactionID,
				Description:   "debit and credit must not be negative",
			})
		}
		if seen[e.TransactionID] {
			errs = append(errs, ValidationError{
				Check:         "unique",
				TransactionID: e.TransactionID,
				Description:   "transaction appears more than once",
			})
		}
		seen[e.TransactionID] = true

		if !led.Key.Period.Contains(e.Date) {
			errs = append(errs, ValidationError{
				Check:         "period",
				TransactionID: e.TransactionID,
				Description:   fmt.Sprintf("date %s not in %s", e.Date.Format(dateFormat), led.Key.Period),
			})
		}
		if !e.Owner.Valid() {
			errs = append(errs, ValidationError{
				Check:         "owner",
				TransactionID: e.TransactionID,
				Description:   fmt.Sprintf("unknown owner %q", e.Owner),
			})
			continue
		}

		amt := e.Amount()
		switch {
		case e.Kind.IsExpense() && e.Owner == model.OwnerHolder:
			ownerExp = ownerExp.Add(amt)
		case e.Kind.IsExpense():
			cpExp = cpExp.Add(amt)
		case e.Owner == model.OwnerHolder:
			ownerPay = ownerPay.Sub(amt)
		default:
			cpPay = cpPay.Sub(amt)
		}
	}

	if len(entries) != led.TransactionCount {
		errs = append(errs, ValidationError{
			Check:       "count",
			Description: fmt.Sprintf("journal has %d entries, ledger counts %d", len(entries), led.TransactionCount),
		})
	}

	buckets := []struct {
		name        string
		got, ledger decimal.Decimal
	}{
		{"owner expense", ownerExp, led.OwnerExpense},
		{"owner payment", ownerPay, led.OwnerPayment},
		{"counterparty expense", cpExp, led.CounterpartyExpense},
		{"counterparty payment", cpPay, led.CounterpartyPayment},
	}
	for _, b := range buckets {
		if !b.got.Equal(b.ledger) {
			errs = append(errs, ValidationError{
				Check:       "totals",
				Description: fmt.Sprintf("%s %s != ledger %s", b.name, b.got.StringFixed(2), b.ledger.StringFixed(2)),
			})
		}
	}

	return errs
}
