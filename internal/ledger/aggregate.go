package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
)

// Aggregate folds classified transactions into one consolidated ledger for the
// period. Every transaction must belong to the period and carry a label;
// otherwise Aggregate fails with an *model.InputError and builds nothing.
//
// Purchases and fees sum into the expense buckets with their signed amounts.
// Payments sum into the payment buckets negated, so a RM 150.00 payment
// reported as -150.00 counts as 150.00 paid.
func Aggregate(period model.AccountPeriod, txns []model.RawTransaction, labels map[string]model.Label) (model.Ledger, error) {
	if err := validatePeriod(period); err != nil {
		return model.Ledger{}, err
	}

	seen := make(map[string]bool, len(txns))
	for _, txn := range txns {
		if ierr := validateOne(period, txn, seen); ierr != nil {
			return model.Ledger{}, ierr
		}
		seen[txn.ID] = true
		if _, ok := labels[txn.ID]; !ok {
			return model.Ledger{}, &model.InputError{
				Kind:          model.ErrKindMissingLabel,
				TransactionID: txn.ID,
				Description:   "transaction has no ownership label",
			}
		}
	}

	led := model.Ledger{
		Key:      period.Key,
		Currency: strings.ToUpper(period.Currency),
		Status:   model.StatusPending,
	}

	type acc struct {
		contrib model.AccountContribution
		net     decimal.Decimal
	}
	byAccount := make(map[string]*acc, len(period.Accounts))
	for _, a := range period.Accounts {
		byAccount[a.AccountID] = &acc{contrib: model.AccountContribution{
			AccountID: a.AccountID,
			Opening:   a.Opening,
		}}
	}

	for _, txn := range txns {
		label := labels[txn.ID]
		a := byAccount[txn.AccountID]
		a.contrib.TransactionCount++
		a.net = a.net.Add(txn.Amount)

		led.TransactionCount++
		led.NetAmount = led.NetAmount.Add(txn.Amount)

		switch {
		case txn.Kind.IsExpense() && label.Owner == model.OwnerHolder:
			led.OwnerExpense = led.OwnerExpense.Add(txn.Amount)
		case txn.Kind.IsExpense():
			led.CounterpartyExpense = led.CounterpartyExpense.Add(txn.Amount)
		case label.Owner == model.OwnerHolder:
			led.OwnerPayment = led.OwnerPayment.Sub(txn.Amount)
		default:
			led.CounterpartyPayment = led.CounterpartyPayment.Sub(txn.Amount)
		}
	}

	led.OwnerBalance = led.OwnerExpense.Sub(led.OwnerPayment)
	led.CounterpartyBalance = led.CounterpartyExpense.Sub(led.CounterpartyPayment)

	for _, a := range period.Accounts {
		c := byAccount[a.AccountID].contrib
		if a.Closing != nil {
			c.Closing = *a.Closing
			c.ClosingReported = true
		} else {
			c.Closing = c.Opening.Add(byAccount[a.AccountID].net)
		}
		led.Opening = led.Opening.Add(c.Opening)
		led.Closing = led.Closing.Add(c.Closing)
		led.Accounts = append(led.Accounts, c)
	}
	sort.Slice(led.Accounts, func(i, j int) bool {
		return led.Accounts[i].AccountID < led.Accounts[j].AccountID
	})

	if period.OwnerOpening != nil || period.CounterpartyOpening != nil {
		if period.OwnerOpening != nil {
			led.OwnerOpening = *period.OwnerOpening
		}
		if period.CounterpartyOpening != nil {
			led.CounterpartyOpening = *period.CounterpartyOpening
		}
	} else {
		// Without a verified predecessor the whole opening is the holder's.
		led.OwnerOpening = led.Opening
	}

	return led, nil
}

// DerivedClosing is the closing balance implied by the opening and the period
// deltas, independent of any source-reported closing.
func DerivedClosing(l model.Ledger) decimal.Decimal {
	return l.Opening.Add(l.OwnerBalance).Add(l.CounterpartyBalance)
}

// Conservation returns closing − opening − (expenses − payments). It is zero
// when every cent of movement is accounted for in the buckets.
func Conservation(l model.Ledger) decimal.Decimal {
	moved := l.OwnerExpense.Add(l.CounterpartyExpense).Sub(l.OwnerPayment).Sub(l.CounterpartyPayment)
	return l.Closing.Sub(l.Opening).Sub(moved)
}

// CarryForward returns the opening split a following period inherits from l.
func CarryForward(l model.Ledger) (owner, counterparty decimal.Decimal) {
	return l.OwnerClosing(), l.CounterpartyClosing()
}

// String renders the six buckets for logs.
func String(l model.Ledger) string {
	return fmt.Sprintf("%s owner %s/%s counterparty %s/%s closing %s",
		l.Key,
		l.OwnerExpense.StringFixed(2), l.OwnerPayment.StringFixed(2),
		l.CounterpartyExpense.StringFixed(2), l.CounterpartyPayment.StringFixed(2),
		l.Closing.StringFixed(2))
}
