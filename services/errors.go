package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/playoff-engine/brackets"
	"github.com/Dosada05/playoff-engine/repositories"
)

var (
	ErrNotFound           = brackets.ErrNotFound
	ErrResultConflict     = brackets.ErrResultConflict
	ErrInvalidResult      = brackets.ErrInvalidResult
	ErrReseedRejected     = brackets.ErrReseedRejected
	ErrInvalidSeeding     = brackets.ErrInvalidSeeding
	ErrInvalidTransition  = brackets.ErrInvalidTransition
	ErrInvariantViolation = brackets.ErrInvariantViolation

	ErrVersionConflict  = repositories.ErrVersionConflict
	ErrAlreadyExists    = errors.New("playoff already exists")
	ErrValidationFailed = errors.New("validation failed")
	ErrArchiveDisabled  = errors.New("snapshot archive is not configured")
)

// mapRepositoryError folds storage errors into the service taxonomy.
func mapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrPlayoffNotFound),
		errors.Is(err, repositories.ErrExternalMatchNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repositories.ErrPlayoffExists):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	}
	return err
}

// IsIgnorable reports errors that an event-driven caller logs and drops:
// retrying them can never succeed.
func IsIgnorable(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidResult) ||
		errors.Is(err, ErrResultConflict)
}
