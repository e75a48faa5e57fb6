package model

import (
	"errors"
	"fmt"
)

// ErrorKind names a class of input error.
type ErrorKind string

const (
	ErrKindUnsupportedKind    ErrorKind = "UnsupportedTransactionKind"
	ErrKindCurrencyMismatch   ErrorKind = "CurrencyMismatch"
	ErrKindAccountNotInPeriod ErrorKind = "AccountNotInPeriod"
	ErrKindOutsidePeriod      ErrorKind = "OutsidePeriod"
	ErrKindMissingLabel       ErrorKind = "MissingLabel"
	ErrKindDuplicate          ErrorKind = "DuplicateTransaction"
	ErrKindInvalidAmount      ErrorKind = "InvalidAmount"
)

// ErrDependency marks failures of an external store. Callers treat these as
// retryable infrastructure failures, distinct from reconciliation defects.
var ErrDependency = errors.New("dependency unavailable")

// ErrUnsupportedKind is returned for transactions of an unknown kind.
var ErrUnsupportedKind = errors.New("unsupported transaction kind")

// ErrCurrencyMismatch is returned when a period mixes currency units.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// InputError rejects one transaction before aggregation.
type InputError struct {
	Kind          ErrorKind
	TransactionID string
	Description   string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.TransactionID, e.Description)
}

// Is lets errors.Is match ErrUnsupportedKind.
func (e *InputError) Is(target error) bool {
	return target == ErrUnsupportedKind && e.Kind == ErrKindUnsupportedKind
}

// DependencyError wraps a store failure.
func DependencyError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDependency, err)
}
