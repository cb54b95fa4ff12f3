package registry

import "errors"

// Sentinel kinds for catalog errors. Every one of them is a configuration
// error: a run must not start with such a catalog.
var (
	ErrInvalidCatalog  = errors.New("invalid rating catalog")
	ErrMissingCategory = errors.New("factor has no category assignment")
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownKind     = errors.New("unknown formula kind")
	ErrInvalidFactor   = errors.New("invalid factor definition")
	ErrUnknownTable    = errors.New("unknown lookup table")
	ErrInvalidWeights  = errors.New("invalid weight vector")
	ErrUnknownFactor   = errors.New("unknown factor")
)
