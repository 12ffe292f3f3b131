package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs the analysis as plain text for the terminal.
type SimpleWriter struct {
	baseWriter

	// limit caps the number of category lines; zero prints all.
	limit int
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithLimit prints only the n largest categories.
func WithLimit(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.limit = n
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the analysis in human-readable form.
func (w *SimpleWriter) Write(a *Analysis) (int, error) {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n")
	sb.WriteString("CATEGORY ANALYSIS\n")
	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Total articles: %d\n", a.Records)
	fmt.Fprintf(&sb, "Number of categories: %d\n", len(a.Categories))
	sb.WriteString("\nCategories by article count:\n")

	cats := a.Categories
	if w.limit > 0 && len(cats) > w.limit {
		cats = cats[:w.limit]
	}
	for _, c := range cats {
		fmt.Fprintf(&sb, "  %s: %d (%.1f%%)\n", c.Name, c.Count, a.Percentage(c))
	}
	if hidden := len(a.Categories) - len(cats); hidden > 0 {
		fmt.Fprintf(&sb, "  ... and %d more\n", hidden)
	}

	return w.output.Write([]byte(sb.String()))
}
