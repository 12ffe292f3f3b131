package report

import (
	"io"
)

// Writer renders a category analysis to some destination.
type Writer interface {
	// Write outputs the analysis and returns the number of bytes written.
	Write(analysis *Analysis) (int, error)
}

// MultiWriter writes the same analysis to several Writers, for example the
// terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the analysis to every Writer in order and stops on the
// first error.
func (m *MultiWriter) Write(analysis *Analysis) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(analysis)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
