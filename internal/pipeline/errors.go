package pipeline

import "errors"

var (
	// ErrInvalidRange indicates an empty or inverted ID range.
	ErrInvalidRange = errors.New("invalid ID range")
	// ErrInvalidBatchSize indicates a batch size below 1.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
	// ErrInvalidWorkers indicates a worker count below 1.
	ErrInvalidWorkers = errors.New("worker count must be at least 1")
	// ErrInvalidSaveEvery indicates a save cadence below 1.
	ErrInvalidSaveEvery = errors.New("save cadence must be at least 1")
	// ErrInvalidDelay indicates negative or inverted inter-batch delay bounds.
	ErrInvalidDelay = errors.New("invalid inter-batch delay bounds")
	// ErrInvalidRotateEvery indicates a negative rotation cadence.
	ErrInvalidRotateEvery = errors.New("rotation cadence must not be negative")
)
