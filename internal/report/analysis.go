package report

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/koprjaa/protext-scraper/internal/model"
)

// TimestampLayout is the time format embedded in output file names.
const TimestampLayout = "20060102_150405"

// FileName returns "<prefix>_YYYYMMDD_HHMMSS.<ext>" for t.
func FileName(prefix string, t time.Time, ext string) string {
	return prefix + "_" + t.Format(TimestampLayout) + "." + strings.TrimPrefix(ext, ".")
}

// CategoryCount is the number of records in one category.
type CategoryCount struct {
	Name  string
	Count int
}

// Analysis is the category histogram of a record collection.
type Analysis struct {
	// GeneratedAt is when the analysis was made.
	GeneratedAt time.Time
	// Records is the number of records analyzed.
	Records int
	// Categories is sorted by count, largest first, ties by name.
	Categories []CategoryCount
}

// Analyze counts records per category. Records without a category count
// as model.DefaultCategory.
func Analyze(records []*model.Record, now time.Time) *Analysis {
	counts := make(map[string]int)
	n := 0
	for _, r := range records {
		if r == nil {
			continue
		}
		counts[r.CategoryOrDefault()]++
		n++
	}

	return &Analysis{GeneratedAt: now, Records: n, Categories: sortedCounts(counts)}
}

func sortedCounts(counts map[string]int) []CategoryCount {
	cats := make([]CategoryCount, 0, len(counts))
	for name, count := range counts {
		cats = append(cats, CategoryCount{Name: name, Count: count})
	}
	slices.SortFunc(cats, func(a, b CategoryCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Name, b.Name)
	})
	return cats
}

// Percentage returns the share of c among all analyzed records.
func (a *Analysis) Percentage(c CategoryCount) float64 {
	if a.Records == 0 {
		return 0
	}
	return float64(c.Count) / float64(a.Records) * 100
}

// Names returns the category names in histogram order.
func (a *Analysis) Names() []string {
	names := make([]string, len(a.Categories))
	for i, c := range a.Categories {
		names[i] = c.Name
	}
	return names
}

// CategoryReport is the persisted form of an Analysis.
type CategoryReport struct {
	AnalysisDate    string        `json:"analysis_date"`
	TotalCategories int           `json:"total_categories"`
	Categories      orderedCounts `json:"categories"`
}

// NewCategoryReport converts an analysis to its persisted form.
func NewCategoryReport(a *Analysis) *CategoryReport {
	return &CategoryReport{
		AnalysisDate:    a.GeneratedAt.Format(time.RFC3339),
		TotalCategories: len(a.Categories),
		Categories:      orderedCounts(a.Categories),
	}
}

// orderedCounts encodes as a JSON object that keeps histogram order.
type orderedCounts []CategoryCount

// MarshalJSON implements json.Marshaler.
func (o orderedCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(c.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Order is rebuilt by count.
func (o *orderedCounts) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*o = orderedCounts(sortedCounts(m))
	return nil
}

// FilterRecords returns the records accepted by filter, in input order.
func FilterRecords(records []*model.Record, filter model.CategoryFilter) []*model.Record {
	out := make([]*model.Record, 0, len(records))
	for _, r := range records {
		if r != nil && filter.Accepts(r) {
			out = append(out, r)
		}
	}
	return out
}

func marshalNoEscape(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
