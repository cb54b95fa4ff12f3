package source

import "errors"

var (
	// ErrSourceUnavailable reports a factor source that cannot be read. The
	// engine treats it as empty.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrEntityNotFound reports an unknown entity id.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrInvalidDataset reports an ingest file that cannot be applied.
	ErrInvalidDataset = errors.New("invalid dataset")
)
