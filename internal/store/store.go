package store

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/koprjaa/protext-scraper/internal/model"
)

const (
	// filePerm is the mode of written output files.
	filePerm = 0o644
	// dirPerm is the mode of created output directories.
	dirPerm = 0o755
	// writeBufferSize is the buffered writer size for output files.
	writeBufferSize = 64 * 1024
	// placeholderHashLen is the number of hex characters of the content hash
	// used in placeholder keys.
	placeholderHashLen = 12
)

// AppendResult summarizes one Append call.
type AppendResult struct {
	// Written is the number of incoming records that were new.
	Written int
	// Skipped is the number of incoming records whose id was already stored.
	Skipped int
	// Total is the size of the collection after the write.
	Total int
}

// JSONStore persists records as a single JSON array per destination file.
//
// All Append calls on one JSONStore are serialized, covering the whole
// load-merge-write cycle. Processes sharing a file are not coordinated.
type JSONStore struct {
	mutex  sync.Mutex
	logger *slog.Logger
}

// Option configures a JSONStore.
type Option func(*JSONStore)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *JSONStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewJSONStore creates a JSONStore.
func NewJSONStore(opts ...Option) *JSONStore {
	s := &JSONStore{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append merges records into the collection at destination and rewrites
// the file atomically.
//
// Records whose id is already present, in the file or earlier in records,
// are skipped. Records with id 0 are always kept. A missing, empty or
// corrupt destination counts as an empty collection.
func (s *JSONStore) Append(ctx context.Context, records []*model.Record, destination string) (AppendResult, error) {
	if err := ctx.Err(); err != nil {
		return AppendResult{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	existing := s.load(destination)
	merged, seen := dedupe(existing)

	var res AppendResult
	for _, rec := range records {
		if rec == nil {
			continue
		}
		key := recordKey(rec, len(merged))
		if _, dup := seen[key]; dup {
			res.Skipped++
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, rec)
		res.Written++
	}
	res.Total = len(merged)

	if err := writeAtomic(ctx, destination, merged); err != nil {
		return AppendResult{}, fmt.Errorf("write %s: %w", destination, err)
	}
	s.logger.Debug("records appended",
		"path", destination, "written", res.Written, "skipped", res.Skipped, "total", res.Total)
	return res, nil
}

// CompactResult summarizes a Compact call.
type CompactResult struct {
	Original int
	Cleaned  int
}

// Removed returns the number of collapsed duplicates.
func (r CompactResult) Removed() int {
	return r.Original - r.Cleaned
}

// Compact collapses duplicate ids in the file at path, keeping the first
// occurrence of each. The file is rewritten only when something changed.
func (s *JSONStore) Compact(ctx context.Context, path string) (CompactResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	records, err := Load(path)
	if err != nil {
		return CompactResult{}, err
	}
	cleaned, _ := dedupe(records)
	res := CompactResult{Original: len(records), Cleaned: len(cleaned)}
	if res.Removed() == 0 {
		return res, nil
	}
	if err := writeAtomic(ctx, path, cleaned); err != nil {
		return CompactResult{}, fmt.Errorf("write %s: %w", path, err)
	}
	return res, nil
}

// load reads destination for a merge, treating any failure as empty.
func (s *JSONStore) load(destination string) []*model.Record {
	records, err := Load(destination)
	switch {
	case err == nil:
		return records
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case errors.Is(err, ErrEmptyFile):
		return nil
	default:
		s.logger.Warn("existing output unreadable, starting a new collection",
			"path", destination, "error", err)
		return nil
	}
}

// Load reads the JSON array stored at path.
func Load(path string) ([]*model.Record, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	var records []*model.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptFile, err)
	}
	return records, nil
}

// LoadIDs returns the distinct non-zero ids stored at path.
// A missing file yields no ids and no error.
func LoadIDs(path string) ([]int, error) {
	records, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, ErrEmptyFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	seen := make(map[int]struct{}, len(records))
	ids := make([]int, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.ID == 0 {
			continue
		}
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

// dedupe drops later records sharing an id with an earlier one and
// returns the survivors with their key set.
func dedupe(records []*model.Record) ([]*model.Record, map[string]struct{}) {
	seen := make(map[string]struct{}, len(records))
	out := make([]*model.Record, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		key := recordKey(rec, len(out))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out, seen
}

// recordKey is the dedup key of rec. Records without an id get a
// placeholder unique to their position in the collection.
func recordKey(rec *model.Record, seq int) string {
	if rec.ID != 0 {
		return strconv.Itoa(rec.ID)
	}
	return placeholderKey(rec, seq)
}

func placeholderKey(rec *model.Record, seq int) string {
	sum := sha3.Sum256([]byte(rec.Link + "\x00" + rec.Title))
	return fmt.Sprintf("no_id_%s_%d", hex.EncodeToString(sum[:])[:placeholderHashLen], seq)
}

// writeAtomic replaces path with the encoded records through a temporary
// file in the same directory.
func writeAtomic(ctx context.Context, path string, records []*model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []*model.Record{}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, filePerm) //nolint:errcheck

	fail := func(err error) error {
		_ = tmp.Close()        //nolint:errcheck
		_ = os.Remove(tmpPath) //nolint:errcheck
		return err
	}

	bw := bufio.NewWriterSize(tmp, writeBufferSize)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck
		return err
	}
	_ = syncDir(dir) //nolint:errcheck // best effort
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir) //nolint:gosec // directory of the output file
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
