package lookup

import "errors"

// Sentinel kinds for lookup errors.
var (
	ErrConflictingKey = errors.New("conflicting lookup key")
	ErrEmptyKey       = errors.New("empty lookup key")
)
