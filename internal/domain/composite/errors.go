package composite

import "errors"

// Sentinel kinds for composite errors.
var (
	ErrInvalidWeights = errors.New("invalid weight vector")
)
