package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/koprjaa/protext-scraper/internal/model"
)

var testTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// createTestAnalysis builds an analysis over 4 Finance, 2 Zdraví and 2
// uncategorized records.
func createTestAnalysis() *Analysis {
	var records []*model.Record
	for i := range 4 {
		records = append(records, &model.Record{ID: i + 1, Category: "Finance"})
	}
	records = append(records,
		&model.Record{ID: 10, Category: "Zdraví"},
		&model.Record{ID: 11, Category: "Zdraví"},
		&model.Record{ID: 12},
		&model.Record{ID: 13},
		nil,
	)
	return Analyze(records, testTime)
}

// TestAnalyze tests histogram construction.
func TestAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("counts and orders categories", func(t *testing.T) {
		t.Parallel()

		a := createTestAnalysis()
		if a.Records != 8 {
			t.Errorf("expected 8 records, got %d", a.Records)
		}
		want := []CategoryCount{
			{Name: "Finance", Count: 4},
			{Name: model.DefaultCategory, Count: 2},
			{Name: "Zdraví", Count: 2},
		}
		if len(a.Categories) != len(want) {
			t.Fatalf("categories = %v", a.Categories)
		}
		for i := range want {
			if a.Categories[i] != want[i] {
				t.Errorf("categories[%d] = %v, want %v", i, a.Categories[i], want[i])
			}
		}
		if got := a.Percentage(a.Categories[0]); got != 50 {
			t.Errorf("expected 50%%, got %v", got)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		a := Analyze(nil, testTime)
		if a.Records != 0 || len(a.Categories) != 0 {
			t.Errorf("unexpected analysis: %+v", a)
		}
		if got := a.Percentage(CategoryCount{Count: 1}); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})
}

// TestFilterRecords tests category filtering of a record list.
func TestFilterRecords(t *testing.T) {
	t.Parallel()

	records := []*model.Record{
		{ID: 1, Category: "Finance"},
		{ID: 2, Category: "Sport"},
		{ID: 3},
		nil,
	}

	got := FilterRecords(records, model.NewCategoryFilter("Finance", model.DefaultCategory))
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("unexpected filter result: %v", got)
	}

	all := FilterRecords(records, nil)
	if len(all) != 3 {
		t.Errorf("nil filter should keep all non-nil records, got %d", len(all))
	}
}

// TestFileName tests timestamped output names.
func TestFileName(t *testing.T) {
	t.Parallel()

	if got := FileName("categories", testTime, "json"); got != "categories_20250314_092653.json" {
		t.Errorf("unexpected name %q", got)
	}
	if got := FileName("filtered_content", testTime, ".json"); got != "filtered_content_20250314_092653.json" {
		t.Errorf("unexpected name %q", got)
	}
}

// TestJSONWriter tests the persisted categories format.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report fields in histogram order", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestAnalysis()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, `"analysis_date": "2025-03-14T09:26:53Z"`) {
			t.Errorf("missing analysis_date:\n%s", out)
		}
		if !strings.Contains(out, `"total_categories": 3`) {
			t.Errorf("missing total_categories:\n%s", out)
		}
		if !strings.Contains(out, `"Zdraví": 2`) {
			t.Errorf("non-ASCII name should be written as-is:\n%s", out)
		}
		if strings.Index(out, "Finance") > strings.Index(out, model.DefaultCategory) {
			t.Errorf("categories should be ordered by count:\n%s", out)
		}
	})

	t.Run("round trips", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestAnalysis()); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(strings.TrimSpace(buf.String()), "\n") {
			t.Error("compact output should be a single line")
		}

		var got CategoryReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.TotalCategories != 3 || len(got.Categories) != 3 || got.Categories[0].Name != "Finance" {
			t.Errorf("unexpected report: %+v", got)
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent("", "\t")).Write(createTestAnalysis()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "\t\"total_categories\"") {
			t.Errorf("expected tab indentation:\n%s", buf.String())
		}
	})
}

// TestSimpleWriter tests the terminal histogram.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes totals and percentages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestAnalysis()); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{
			"Total articles: 8",
			"Number of categories: 3",
			"  Finance: 4 (50.0%)",
			"  Zdraví: 2 (25.0%)",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("limit hides the tail", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithLimit(1)).Write(createTestAnalysis()); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if strings.Contains(out, "Zdraví") {
			t.Error("limited output should not list small categories")
		}
		if !strings.Contains(out, "... and 2 more") {
			t.Errorf("expected tail marker:\n%s", out)
		}
	})
}

// TestMarkdownWriter tests Markdown output.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes table and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(createTestAnalysis())
		if err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			t.Error("expected non-zero length")
		}
		out := buf.String()
		for _, want := range []string{"# Category Analysis", "## Categories", "```mermaid", "pie", "Finance", "50.0%"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("empty analysis has no chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(Analyze(nil, testTime)); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "mermaid") {
			t.Error("empty analysis should not render a chart")
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write(*Analysis) (int, error) { return 0, errors.New("broken pipe") }

// TestMultiWriter tests fan-out to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
		n, err := mw.Write(createTestAnalysis())
		if err != nil {
			t.Fatal(err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("expected %d bytes, got %d", text.Len()+js.Len(), n)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))
		if _, err := mw.Write(createTestAnalysis()); err == nil {
			t.Error("expected error")
		}
		if after.Len() != 0 {
			t.Error("writers after a failure should not run")
		}
	})
}
