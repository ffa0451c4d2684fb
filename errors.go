package cveval

import "errors"

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrInvalidBatch indicates predictions and targets do not line up,
	// or a batch carries the wrong shape for the evaluator's task.
	ErrInvalidBatch = errors.New("cveval: invalid batch")

	// ErrInvalidValue indicates a value outside its documented domain.
	ErrInvalidValue = errors.New("cveval: invalid value")

	// ErrUnsupportedTaskType indicates an unknown evaluator variant was requested.
	ErrUnsupportedTaskType = errors.New("cveval: unsupported task type")
)
