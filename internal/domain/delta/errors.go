package delta

import "errors"

var (
	// ErrInvalidDate reports a zero capture or as-of date.
	ErrInvalidDate = errors.New("invalid snapshot date")
	// ErrNoCounterSource reports a tracker without a counter source.
	ErrNoCounterSource = errors.New("no counter source")
)
