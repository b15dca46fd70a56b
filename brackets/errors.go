package brackets

import "errors"

var (
	ErrNotFound           = errors.New("match or bracket not found")
	ErrResultConflict     = errors.New("result conflicts with previously recorded state")
	ErrInvalidResult      = errors.New("invalid match result")
	ErrReseedRejected     = errors.New("bracket already has progress beyond seeding")
	ErrInvalidSeeding     = errors.New("standings do not satisfy the seeding table")
	ErrInvalidTransition  = errors.New("invalid match status transition")
	ErrInvariantViolation = errors.New("bracket invariant violated")
)
