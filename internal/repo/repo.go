package repo

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	// Callers check with errors.Is.
	ErrNotFound = errors.New("record not found")

	// ErrProfileNameConflict and ErrPhoneConflict surface unique-index
	// violations on writes that raced past the pre-insert checks.
	ErrProfileNameConflict = errors.New("profile name already in use")
	ErrPhoneConflict       = errors.New("phone number already in use")
)
