package model

import (
	"encoding/json"
	"testing"
)

// TestCategoryFilter tests category filtering.
func TestCategoryFilter(t *testing.T) {
	t.Parallel()

	records := []*Record{
		{ID: 1, Category: "Finance"},
		{ID: 2, Category: "Health"},
		{ID: 3},
	}

	t.Run("nil filter accepts everything", func(t *testing.T) {
		t.Parallel()

		var f CategoryFilter
		for _, r := range records {
			if !f.Accepts(r) {
				t.Errorf("record %d rejected by nil filter", r.ID)
			}
		}
	})

	t.Run("keeps exactly the matching records", func(t *testing.T) {
		t.Parallel()

		f := NewCategoryFilter("Finance", "Uncategorized")

		var kept []int
		for _, r := range records {
			if f.Accepts(r) {
				kept = append(kept, r.ID)
			}
		}

		if len(kept) != 2 || kept[0] != 1 || kept[1] != 3 {
			t.Errorf("expected [1 3], got %v", kept)
		}
	})

	t.Run("blank names produce a nil filter", func(t *testing.T) {
		t.Parallel()

		if f := NewCategoryFilter(" ", ""); f != nil {
			t.Errorf("expected nil filter, got %v", f)
		}
	})
}

// TestRecordJSON tests the serialized shape of a record.
func TestRecordJSON(t *testing.T) {
	t.Parallel()

	t.Run("optional fields are omitted", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(&Record{ID: 5, Title: "T", Content: "C", Link: "L"})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		want := `{"id":5,"title":"T","content":"C","link":"L"}`
		if string(data) != want {
			t.Errorf("got %s, expected %s", data, want)
		}
	})

	t.Run("valid requires title and content", func(t *testing.T) {
		t.Parallel()

		if (&Record{Title: "x"}).Valid() {
			t.Error("record without content should be invalid")
		}
		if !(&Record{Title: "x", Content: "y"}).Valid() {
			t.Error("record with title and content should be valid")
		}
	})
}
