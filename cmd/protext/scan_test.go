package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koprjaa/protext-scraper/internal/config"
	"github.com/koprjaa/protext-scraper/internal/model"
	"github.com/koprjaa/protext-scraper/internal/store"
)

const articleBody = "Tisková zpráva s dostatečně dlouhým textem, aby prošla kontrolou minimální délky obsahu."

// newArticleServer serves an article for every id up to live and 404 above it.
func newArticleServer(t *testing.T, live int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		id, err := strconv.Atoi(r.URL.Query().Get("id"))
		if err != nil || id < 1 || id > live {
			http.NotFound(w, r)
			return
		}
		category := "Finance"
		if id%2 == 0 {
			category = "Zdraví"
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Protext</title></head><body>
<h1>Zpráva %d</h1>
<span itemprop="about">%s</span>
<div id="articlebody"><p>%s</p></div>
</body></html>`, id, category, articleBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func scanArgs(srv *httptest.Server, output string, extra ...string) []string {
	args := []string{
		"scan",
		"--no-tor",
		"--article-url", srv.URL + "/zprava.php?id=%d",
		"--retries", "1",
		"--delay-min", "0s",
		"--delay-max", "0s",
		"--batch", "3",
		"--workers", "2",
		"--save-every", "2",
		"--output", output,
	}
	return append(args, extra...)
}

// TestScanCmd runs complete scans against a local article server.
func TestScanCmd(t *testing.T) {
	t.Parallel()

	t.Run("stores every live article", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		srv := newArticleServer(t, 5, &hits)
		output := filepath.Join(t.TempDir(), "news.json")

		out, err := runRoot(t, scanArgs(srv, output, "--min", "1", "--max", "7")...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records, err := store.Load(output)
		if err != nil {
			t.Fatalf("failed to load output: %v", err)
		}
		if len(records) != 5 {
			t.Fatalf("expected 5 records, got %d", len(records))
		}
		seen := make(map[int]bool)
		for _, r := range records {
			if seen[r.ID] {
				t.Errorf("id %d stored twice", r.ID)
			}
			seen[r.ID] = true
			if !strings.HasPrefix(r.Title, "Zpráva") || r.Content == "" {
				t.Errorf("incomplete record: %+v", r)
			}
		}
		if hits.Load() != 7 {
			t.Errorf("expected 7 requests, got %d", hits.Load())
		}
		if !strings.Contains(out, "Records found: 5") || !strings.Contains(out, output) {
			t.Errorf("unexpected summary: %q", out)
		}
	})

	t.Run("category filter and analysis", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		srv := newArticleServer(t, 6, &hits)
		output := filepath.Join(t.TempDir(), "news.json")

		out, err := runRoot(t, scanArgs(srv, output, "--min", "1", "--max", "6", "--categories", "Zdraví", "--analyze")...)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records, err := store.Load(output)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(records))
		}
		for _, r := range records {
			if r.Category != "Zdraví" {
				t.Errorf("record %d has category %q", r.ID, r.Category)
			}
		}
		if !strings.Contains(out, "CATEGORY ANALYSIS") {
			t.Errorf("expected analysis in output, got %q", out)
		}
	})

	t.Run("skip-existing does not refetch stored ids", func(t *testing.T) {
		t.Parallel()

		output := filepath.Join(t.TempDir(), "news.json")
		writeRecords(t, output, []*model.Record{
			{ID: 1, Title: "old", Content: "c"},
			{ID: 2, Title: "old", Content: "c"},
		})

		var hits atomic.Int32
		srv := newArticleServer(t, 4, &hits)
		if _, err := runRoot(t, scanArgs(srv, output, "--min", "1", "--max", "4", "--skip-existing")...); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if hits.Load() != 2 {
			t.Errorf("expected 2 requests, got %d", hits.Load())
		}
		records, err := store.Load(output)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 4 || records[0].Title != "old" {
			t.Errorf("expected the two old records followed by two new ones, got %d", len(records))
		}
	})

	t.Run("sqlite mirror receives records", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		var hits atomic.Int32
		srv := newArticleServer(t, 3, &hits)
		output := filepath.Join(dir, "news.json")

		if _, err := runRoot(t, scanArgs(srv, output, "--min", "1", "--max", "3", "--sqlite", filepath.Join(dir, "db"))...); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		entries, err := os.ReadDir(filepath.Join(dir, "db"))
		if err != nil || len(entries) == 0 {
			t.Errorf("expected a SQLite database file, got %v (%v)", entries, err)
		}
	})

	t.Run("invalid configuration is rejected", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		srv := newArticleServer(t, 1, &hits)
		output := filepath.Join(t.TempDir(), "news.json")

		_, err := runRoot(t, scanArgs(srv, output, "--min", "1", "--max", "3", "--workers", "0")...)
		if err == nil || !strings.Contains(err.Error(), "configuration error") {
			t.Errorf("expected configuration error, got %v", err)
		}
		if hits.Load() != 0 {
			t.Error("no request should be sent for an invalid configuration")
		}
	})
}

// TestBuildConfig tests layering of defaults, preset, file and flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	parse := func(t *testing.T, args ...string) *config.Config {
		t.Helper()
		cmd := NewScanCmd()
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error: %v", err)
		}
		return cfg
	}

	t.Run("preset sizing applies", func(t *testing.T) {
		t.Parallel()

		cfg := parse(t, "--preset", "medium")
		if cfg.Workers != 20 || cfg.BatchSize != 500 || cfg.Preset != "medium" {
			t.Errorf("workers=%d batch=%d preset=%q", cfg.Workers, cfg.BatchSize, cfg.Preset)
		}
	})

	t.Run("file overrides preset and flags override file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "protext.yaml")
		yaml := "scan:\n  preset: small\n  workers: 7\n  batchSize: 40\n  delayMax: 9s\nfetch:\n  maxRetries: 5\n"
		if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg := parse(t, "-c", path, "--workers", "3", "--categories", "Finance,Zdraví")
		if cfg.Workers != 3 {
			t.Errorf("flag should win, workers = %d", cfg.Workers)
		}
		if cfg.BatchSize != 40 || cfg.MaxRetries != 5 || cfg.DelayMax != 9*time.Second {
			t.Errorf("file values not applied: %+v", cfg)
		}
		if len(cfg.Categories) != 2 || cfg.Categories[1] != "Zdraví" {
			t.Errorf("categories = %v", cfg.Categories)
		}
	})

	t.Run("unset flags keep defaults", func(t *testing.T) {
		t.Parallel()

		cfg := parse(t)
		def := config.NewConfig()
		if cfg.Workers != def.Workers || cfg.TorProxyAddress != def.TorProxyAddress || cfg.RotateEvery != def.RotateEvery {
			t.Errorf("defaults changed: %+v", cfg)
		}
	})

	t.Run("missing explicit config file fails", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "none.yaml")}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd); err == nil {
			t.Error("expected error for a missing config file")
		}
	})
}

// TestCategoryFilter tests merging --categories with a manifest file.
func TestCategoryFilter(t *testing.T) {
	t.Parallel()

	t.Run("no names means no filter", func(t *testing.T) {
		t.Parallel()

		f, err := categoryFilter(config.NewConfig())
		if err != nil || f != nil {
			t.Errorf("categoryFilter() = %v, %v", f, err)
		}
	})

	t.Run("flag and manifest names are merged", func(t *testing.T) {
		t.Parallel()

		manifest := filepath.Join(t.TempDir(), "categories.json")
		if err := config.SaveCategoryManifest(manifest, []string{"Zdraví"}); err != nil {
			t.Fatal(err)
		}
		cfg := config.NewConfig()
		cfg.Categories = []string{"Finance"}
		cfg.CategoryManifest = manifest

		f, err := categoryFilter(cfg)
		if err != nil {
			t.Fatal(err)
		}
		if !f.Accepts(&model.Record{Category: "Finance"}) || !f.Accepts(&model.Record{Category: "Zdraví"}) {
			t.Error("expected both categories to be accepted")
		}
		if f.Accepts(&model.Record{Category: "Sport"}) {
			t.Error("unexpected category accepted")
		}
	})
}
