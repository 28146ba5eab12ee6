package models

import "errors"

// Sentinel errors shared by every layer. Wrap them with %w and test with errors.Is.
var (
	// ErrInvalidSplit means the split policy preconditions do not hold: missing
	// data, an unknown participant, no participants, or sums that do not match.
	ErrInvalidSplit = errors.New("invalid split")

	// ErrInvalidInput means a request field failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUserNotFound means a referenced user ID does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrExpenseNotFound means a referenced expense ID does not exist.
	ErrExpenseNotFound = errors.New("expense not found")

	// ErrAlreadyExists means a unique field (email, mobile, ID) is already taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrPersistenceConflict means a concurrent transaction touched the same
	// rows. The whole unit of work can be retried.
	ErrPersistenceConflict = errors.New("persistence conflict")
)

// IsRetryable reports whether the operation that returned err can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistenceConflict)
}
