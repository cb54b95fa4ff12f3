package scoring

import "errors"

// ErrNoEvaluator reports a formula kind missing from the dispatch table.
var ErrNoEvaluator = errors.New("no evaluator for formula kind")
