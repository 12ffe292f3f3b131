package store

import (
	"context"
	"log/slog"

	"github.com/koprjaa/protext-scraper/internal/model"
)

// Sink receives batches of newly found records.
type Sink interface {
	Save(ctx context.Context, records []*model.Record) (AppendResult, error)
}

// FileSink appends to one destination file through a JSONStore.
type FileSink struct {
	store *JSONStore
	path  string
}

// Sink binds the store to destination.
func (s *JSONStore) Sink(destination string) *FileSink {
	return &FileSink{store: s, path: destination}
}

// Path returns the destination file.
func (f *FileSink) Path() string {
	return f.path
}

// Save appends records to the destination file.
func (f *FileSink) Save(ctx context.Context, records []*model.Record) (AppendResult, error) {
	return f.store.Append(ctx, records, f.path)
}

// MultiSink saves to a primary sink and then to best-effort mirrors.
//
// Only the primary decides the outcome. A mirror that fails is logged and
// does not fail the save, since the records are already durable.
type MultiSink struct {
	primary Sink
	mirrors []Sink
	logger  *slog.Logger
}

// NewMultiSink creates a MultiSink. A nil logger uses slog.Default().
func NewMultiSink(logger *slog.Logger, primary Sink, mirrors ...Sink) *MultiSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiSink{primary: primary, mirrors: mirrors, logger: logger}
}

// Save implements Sink.
func (m *MultiSink) Save(ctx context.Context, records []*model.Record) (AppendResult, error) {
	res, err := m.primary.Save(ctx, records)
	if err != nil {
		return res, err
	}
	for _, mirror := range m.mirrors {
		if mres, merr := mirror.Save(ctx, records); merr != nil {
			m.logger.Warn("mirror save failed", "records", len(records), "error", merr)
		} else {
			m.logger.Debug("mirror saved", "written", mres.Written, "skipped", mres.Skipped)
		}
	}
	return res, nil
}
