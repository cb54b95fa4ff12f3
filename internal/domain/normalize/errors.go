package normalize

import "errors"

// Sentinel kinds for normalizer errors.
var (
	ErrUnknownPolicy = errors.New("unknown normalization policy")
	ErrInvalidCurve  = errors.New("invalid percentile curve")
	ErrInvalidPolicy = errors.New("invalid normalization policy")
)
