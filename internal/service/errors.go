package service

import (
	"errors"
	"fmt"
)

// Error classes. Callers match them with errors.Is; messages carry detail.
var (
	ErrValidation = errors.New("invalid input")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrIntegrity  = errors.New("cannot undo")
)

// ErrNothingToUndo is returned by Undo on an empty history.
var ErrNothingToUndo = fmt.Errorf("nothing to undo: %w", ErrNotFound)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
