package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// pieSlices caps the number of named slices in the chart; the rest are
// folded into "Other".
const pieSlices = 10

// MarkdownWriter outputs the analysis as a Markdown document with a table
// and a mermaid pie chart.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the analysis in Markdown format.
func (w *MarkdownWriter) Write(analysis *Analysis) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, analysis)
	w.writeCategories(md, analysis)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, a *Analysis) {
	md.H1("Category Analysis")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Analysis Date", a.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Total Articles", strconv.Itoa(a.Records)},
			{"Number of Categories", strconv.Itoa(len(a.Categories))},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeCategories(md *markdown.Markdown, a *Analysis) {
	md.H2("Categories")
	md.PlainText("")

	if len(a.Categories) == 0 {
		md.Note("No articles to analyze.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(a.Categories))
	for i, c := range a.Categories {
		rows[i] = []string{c.Name, strconv.Itoa(c.Count), fmt.Sprintf("%.1f%%", a.Percentage(c))}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Articles", "Share"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, a)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, a *Analysis) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Articles per Category"),
		piechart.WithShowData(true),
	)

	var other uint64
	for i, c := range a.Categories {
		if i >= pieSlices {
			other += uint64(c.Count)
			continue
		}
		chart.LabelAndIntValue(c.Name, uint64(c.Count))
	}
	if other > 0 {
		chart.LabelAndIntValue("Other", other)
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by protext-scraper*")
}
