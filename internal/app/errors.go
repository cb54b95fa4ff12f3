package service

import "errors"

// Sentinel error kinds returned by engine operations.
var (
	// ErrConfiguration wraps any fatal configuration error. A run that
	// returns it has written nothing.
	ErrConfiguration = errors.New("configuration error")
	// ErrRunFailed wraps a source, store or cancellation failure mid-run.
	ErrRunFailed = errors.New("run failed")
	// ErrUnknownMode reports an unsupported weekly mode.
	ErrUnknownMode = errors.New("unknown weekly mode")
)
