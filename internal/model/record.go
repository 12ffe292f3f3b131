package model

import "strings"

// DefaultCategory is the category assigned to records whose page carries none.
const DefaultCategory = "Uncategorized"

// Record is one article harvested from the site.
//
// A Record is only produced when both Title and Content are non-empty after
// normalization. The JSON field order is part of the output format and must
// not be rearranged.
type Record struct {
	// ID is the numeric article identifier taken from the canonical URL.
	// Zero means the identifier is unknown.
	ID int `json:"id"`

	// Title is the normalized headline.
	Title string `json:"title"`

	// Content is the normalized article body.
	Content string `json:"content"`

	// Link is the canonical URL the record was fetched from.
	Link string `json:"link"`

	// Date is the publication date as printed on the page.
	Date string `json:"date,omitempty"`

	// Keywords is the raw keyword line, separators preserved.
	Keywords string `json:"keywords,omitempty"`

	// Category is the site's topical label for the article.
	Category string `json:"category,omitempty"`
}

// Valid reports whether the record carries the mandatory fields.
func (r *Record) Valid() bool {
	return r != nil && strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.Content) != ""
}

// CategoryOrDefault returns the record's category, or DefaultCategory when
// the page did not carry one.
func (r *Record) CategoryOrDefault() string {
	if c := strings.TrimSpace(r.Category); c != "" {
		return c
	}
	return DefaultCategory
}

// CategoryFilter is a set of category names a scan should keep.
// A nil or empty filter accepts every record.
type CategoryFilter map[string]struct{}

// NewCategoryFilter builds a filter from the given names.
// Blank names are ignored; if nothing remains the filter is nil.
func NewCategoryFilter(names ...string) CategoryFilter {
	var f CategoryFilter
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if f == nil {
			f = make(CategoryFilter, len(names))
		}
		f[name] = struct{}{}
	}
	return f
}

// Accepts reports whether the record passes the filter.
func (f CategoryFilter) Accepts(r *Record) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[r.CategoryOrDefault()]
	return ok
}

// Names returns the filter's category names in no particular order.
func (f CategoryFilter) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	return names
}
