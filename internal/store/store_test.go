package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/koprjaa/protext-scraper/internal/model"
)

func rec(id int, title string) *model.Record {
	return &model.Record{ID: id, Title: title, Content: "content of " + title, Link: "https://www.protext.cz/zprava.php?id=1"}
}

// TestJSONStoreAppend tests merge and dedup semantics.
func TestJSONStoreAppend(t *testing.T) {
	t.Parallel()

	t.Run("creates the file and counts", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out", "content.json")
		s := NewJSONStore()

		res, err := s.Append(context.Background(), []*model.Record{rec(1, "a"), rec(2, "b")}, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res != (AppendResult{Written: 2, Skipped: 0, Total: 2}) {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("skips ids already stored or repeated in the call", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "content.json")
		s := NewJSONStore()
		ctx := context.Background()

		if _, err := s.Append(ctx, []*model.Record{rec(1, "a"), rec(2, "b")}, path); err != nil {
			t.Fatal(err)
		}
		res, err := s.Append(ctx, []*model.Record{rec(2, "b again"), rec(3, "c"), rec(3, "c again")}, path)
		if err != nil {
			t.Fatal(err)
		}
		if res != (AppendResult{Written: 1, Skipped: 2, Total: 3}) {
			t.Errorf("result = %+v", res)
		}

		stored, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if stored[1].Title != "b" {
			t.Errorf("existing record was replaced: %+v", stored[1])
		}
	})

	t.Run("flushing the same records twice is idempotent", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "content.json")
		s := NewJSONStore()
		batch := []*model.Record{rec(5, "e"), rec(6, "f")}

		for range 2 {
			if _, err := s.Append(context.Background(), batch, path); err != nil {
				t.Fatal(err)
			}
		}
		stored, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(stored) != 2 {
			t.Errorf("expected 2 stored records, got %d", len(stored))
		}
	})

	t.Run("records without id are always kept", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "content.json")
		s := NewJSONStore()

		res, err := s.Append(context.Background(), []*model.Record{rec(0, "x"), rec(0, "x")}, path)
		if err != nil {
			t.Fatal(err)
		}
		if res.Written != 2 {
			t.Errorf("expected both id-less records written, got %+v", res)
		}
		res, err = s.Append(context.Background(), []*model.Record{rec(0, "x")}, path)
		if err != nil {
			t.Fatal(err)
		}
		if res.Total != 3 {
			t.Errorf("expected 3 records total, got %+v", res)
		}
	})

	t.Run("corrupt existing file is replaced", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "content.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}
		res, err := NewJSONStore().Append(context.Background(), []*model.Record{rec(1, "a")}, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Total != 1 {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("output is indented and unescaped", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "content.json")
		r := &model.Record{ID: 9, Title: "Zpráva <b>&</b>", Content: "Obsah", Link: "https://www.protext.cz/zprava.php?id=9", Category: "Finance"}
		if _, err := NewJSONStore().Append(context.Background(), []*model.Record{r}, path); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		got := string(data)
		for _, want := range []string{
			"[\n  {\n    \"id\": 9,\n    \"title\": \"Zpráva <b>&</b>\"",
			`"link": "https://www.protext.cz/zprava.php?id=9",` + "\n    \"category\": \"Finance\"",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}
		if strings.Contains(got, `"date"`) {
			t.Errorf("empty optional field was written:\n%s", got)
		}
	})

	t.Run("no temporary files are left behind", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "content.json")
		if _, err := NewJSONStore().Append(context.Background(), []*model.Record{rec(1, "a")}, path); err != nil {
			t.Fatal(err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("expected only the output file, got %d entries", len(entries))
		}
	})

	t.Run("concurrent appends lose nothing", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "content.json")
		s := NewJSONStore()
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Go(func() {
				_, err := s.Append(context.Background(), []*model.Record{rec(i+1, "r"), rec(1, "shared")}, path)
				if err != nil {
					t.Errorf("append: %v", err)
				}
			})
		}
		wg.Wait()

		ids, err := LoadIDs(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(ids) != 20 {
			t.Errorf("expected 20 distinct ids, got %d", len(ids))
		}
	})

	t.Run("cancelled context writes nothing", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "content.json")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := NewJSONStore().Append(ctx, []*model.Record{rec(1, "a")}, path); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("file should not exist, stat error %v", err)
		}
	})
}

// TestJSONStoreCompact tests collapsing duplicates in an existing file.
func TestJSONStoreCompact(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "content.json")
	data := `[{"id":1,"title":"a","content":"x","link":"l"},{"id":1,"title":"dup","content":"x","link":"l"},{"id":2,"title":"b","content":"x","link":"l"}]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := NewJSONStore().Compact(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Original != 3 || res.Cleaned != 2 || res.Removed() != 1 {
		t.Errorf("result = %+v", res)
	}
	stored, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 || stored[0].Title != "a" {
		t.Errorf("stored = %+v", stored)
	}
}

// TestLoad tests reading output files.
func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(empty); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte(`{"id":1}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(corrupt); !errors.Is(err, ErrCorruptFile) {
		t.Errorf("expected ErrCorruptFile, got %v", err)
	}

	ids, err := LoadIDs(filepath.Join(dir, "missing.json"))
	if err != nil || ids != nil {
		t.Errorf("LoadIDs(missing) = %v, %v", ids, err)
	}
}

// TestPlaceholderKey tests keys for records without an id.
func TestPlaceholderKey(t *testing.T) {
	t.Parallel()

	r := rec(0, "x")
	a, b := placeholderKey(r, 0), placeholderKey(r, 1)
	if a == b {
		t.Error("placeholder keys must differ by position")
	}
	if !strings.HasPrefix(a, "no_id_") || !strings.HasSuffix(a, "_0") {
		t.Errorf("unexpected key format %q", a)
	}
	if len(strings.TrimSuffix(strings.TrimPrefix(a, "no_id_"), "_0")) != placeholderHashLen {
		t.Errorf("unexpected hash length in %q", a)
	}
}
