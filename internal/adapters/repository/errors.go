package repository

import "errors"

// Sentinel kinds for store and leaderboard errors.
var (
	ErrNotFound       = errors.New("entity not found")
	ErrInvalidLimit   = errors.New("invalid leaderboard limit")
	ErrNoPublishedRun = errors.New("no published run")
)
