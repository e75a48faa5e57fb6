package classify

import (
	"errors"
	"fmt"

	"github.com/cleared-dev/recon/internal/model"
)

// Overrides maps transaction IDs to human-sourced labels.
type Overrides map[string]model.Label

// rule is one row of the precedence table. match returns the owner and true
// when the rule decides the transaction.
type rule struct {
	name  string
	match func(txn model.RawTransaction, reg *Registry) (model.Owner, bool)
}

// rules is evaluated in order after overrides; the first match wins.
var rules = []rule{
	{name: "supplier", match: matchSupplier},
	{name: "payment", match: matchPayment},
	{name: "spend", match: matchSpend},
}

func matchSupplier(txn model.RawTransaction, reg *Registry) (model.Owner, bool) {
	if reg.hasTag(txn.SupplierTag) || reg.matchesSupplier(txn.Description, txn.Counterparty) {
		return model.OwnerCounterparty, true
	}
	return "", false
}

func matchPayment(txn model.RawTransaction, reg *Registry) (model.Owner, bool) {
	if txn.Kind != model.KindPayment {
		return "", false
	}
	if normalize(txn.Counterparty) == "" || containsAny(txn.Counterparty, reg.selfPayers) {
		return model.OwnerHolder, true
	}
	return model.OwnerCounterparty, true
}

func matchSpend(txn model.RawTransaction, reg *Registry) (model.Owner, bool) {
	if !txn.Kind.IsExpense() {
		return "", false
	}
	if containsAny(txn.Description, reg.cpKeywords) {
		return model.OwnerCounterparty, true
	}
	return model.OwnerHolder, true
}

// Classify labels one transaction. It reads nothing but its arguments, so the
// same registry snapshot and overrides always give the same label.
func Classify(txn model.RawTransaction, reg *Registry, overrides Overrides) (model.Label, error) {
	if !txn.Kind.Valid() {
		return model.Label{}, &model.InputError{
			Kind:          model.ErrKindUnsupportedKind,
			TransactionID: txn.ID,
			Description:   fmt.Sprintf("unsupported transaction kind %q", txn.Kind),
		}
	}

	if o, ok := overrides[txn.ID]; ok && o.Owner.Valid() {
		return model.OverrideLabel(o.Owner, o.Reason, o.Actor), nil
	}

	if reg == nil {
		reg = NewRegistry(nil, nil, nil)
	}
	for _, r := range rules {
		if owner, ok := r.match(txn, reg); ok {
			return model.AutoLabel(owner), nil
		}
	}
	// Unreachable for valid kinds: matchSpend and matchPayment cover them all.
	return model.Label{}, fmt.Errorf("no classification rule matched %s", txn.ID)
}

// Batch is the result of classifying a sequence of transactions.
type Batch struct {
	Order    []string               // IDs of classified transactions, input order
	Labels   map[string]model.Label // by transaction ID
	Rejected []*model.InputError
}

// ClassifyBatch labels txns in input order. Transactions that cannot be
// classified are reported in Rejected and left out of Order and Labels.
func ClassifyBatch(txns []model.RawTransaction, reg *Registry, overrides Overrides) (Batch, error) {
	b := Batch{Labels: make(map[string]model.Label, len(txns))}
	for _, txn := range txns {
		label, err := Classify(txn, reg, overrides)
		if err != nil {
			var ierr *model.InputError
			if !errors.As(err, &ierr) {
				return Batch{}, err
			}
			b.Rejected = append(b.Rejected, ierr)
			continue
		}
		b.Order = append(b.Order, txn.ID)
		b.Labels[txn.ID] = label
	}
	return b, nil
}
