package model

// Owner is the economic owner of a transaction.
type Owner string

const (
	OwnerHolder       Owner = "owner"
	OwnerCounterparty Owner = "counterparty"
)

// Confidence records where a label came from.
type Confidence string

const (
	ConfidenceAuto     Confidence = "auto"
	ConfidenceOverride Confidence = "override"
)

// Label is the ownership classification of one transaction. Labels never
// mutate the transaction they describe.
type Label struct {
	Owner      Owner
	Confidence Confidence
	Reason     string // override only
	Actor      string // override only
}

// AutoLabel returns a rule-derived label.
func AutoLabel(o Owner) Label {
	return Label{Owner: o, Confidence: ConfidenceAuto}
}

// OverrideLabel returns a human-sourced label.
func OverrideLabel(o Owner, reason, actor string) Label {
	return Label{Owner: o, Confidence: ConfidenceOverride, Reason: reason, Actor: actor}
}

// Valid reports whether the owner is known.
func (o Owner) Valid() bool {
	return o == OwnerHolder || o == OwnerCounterparty
}
