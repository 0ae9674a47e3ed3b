package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Engine run failures. All are fatal: a failed run returns no graph.
	ErrFormula       = errors.New("formula error")
	ErrArityMismatch = errors.New("attribute arity mismatch")
	ErrEmptyInput    = errors.New("no facts supplied")
	ErrNoFixpoint    = errors.New("fixpoint not reached")
)
