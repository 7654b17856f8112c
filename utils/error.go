package utils

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("record not found")

	// Whitelist violations. Rejected before any storage access.
	ErrTableNotAllowed  = errors.New("table not allowed")
	ErrColumnNotAllowed = errors.New("column not allowed")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidTaxId       = errors.New("invalid cnpj")
	ErrInvalidPhone       = errors.New("invalid telefone")
	ErrInvalidEmail       = errors.New("invalid email")
)

// WriteRestrictedError rejects writes against a superseded table and points the
// caller at its canonical replacement.
type WriteRestrictedError struct {
	Table     string
	Canonical string
}

func (e *WriteRestrictedError) Error() string {
	return fmt.Sprintf("table %q is read-only; write to %q instead", e.Table, e.Canonical)
}

// ConflictError identifies the existing record a write collided with, so the
// caller can branch on semantics instead of a generic failure.
type ConflictError struct {
	Table    string
	Column   string
	Value    string
	Existing map[string]any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate %s.%s: %q already exists", e.Table, e.Column, e.Value)
}

// StatusConflictError guards the receipt state machine: any status other than
// the expected one on entry is a conflict, including retries against an
// already-received order.
type StatusConflictError struct {
	OrderNumber string
	Expected    string
	Actual      string
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("order %s has status %q, expected %q", e.OrderNumber, e.Actual, e.Expected)
}
