// Package report analyzes the category distribution of scraped records
// and renders it.
//
// Analyze builds an Analysis, a histogram sorted by count. Writers render
// it as plain text (SimpleWriter), as the persisted categories JSON
// (JSONWriter) or as Markdown with a mermaid pie chart (MarkdownWriter).
// MultiWriter fans one analysis out to several of them.
package report
