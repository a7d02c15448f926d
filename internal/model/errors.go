package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the parent of every user-input error. Validation errors
	// are reported back to the user and never mutate the ledger.
	ErrValidation = errors.New("validation failed")

	ErrInvalidAmount   = fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	ErrInvalidField    = fmt.Errorf("%w: field must be one of amount, category, note", ErrValidation)
	ErrInvalidCategory = fmt.Errorf("%w: unknown category", ErrValidation)

	// ErrNotFound means the referenced record does not exist (or is not owned by the caller).
	ErrNotFound = errors.New("record not found")

	// ErrResetNotConfirmed is returned when a destructive reset is requested without the confirm flag.
	ErrResetNotConfirmed = errors.New("reset requires explicit confirmation")

	// ErrInvariant marks stored state that can only result from a programming error.
	ErrInvariant = errors.New("ledger invariant violated")
)
