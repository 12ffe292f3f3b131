package store

import "errors"

var (
	// ErrEmptyFile indicates an output file with no content.
	ErrEmptyFile = errors.New("output file is empty")
	// ErrCorruptFile indicates an output file that is not a JSON array of records.
	ErrCorruptFile = errors.New("output file is not a valid record array")
)
