package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/koprjaa/protext-scraper/internal/crawler"
	"github.com/koprjaa/protext-scraper/internal/fetch"
	"github.com/koprjaa/protext-scraper/internal/identity"
	"github.com/koprjaa/protext-scraper/internal/metrics"
	"github.com/koprjaa/protext-scraper/internal/model"
	"github.com/koprjaa/protext-scraper/internal/store"
)

// Plan defaults.
const (
	DefaultBatchSize   = 50
	DefaultWorkers     = 10
	DefaultSaveEvery   = 100
	DefaultDelayMin    = 2 * time.Second
	DefaultDelayMax    = 5 * time.Second
	DefaultRotateEvery = 15
)

// RecordSource fetches the record for one ID. A nil record with a nil error
// means there is no article. *crawler.RecordFetcher implements it.
type RecordSource interface {
	FetchRecord(ctx context.Context, id int) (*model.Record, error)
}

// EgressRotator changes the apparent source address.
// *identity.Rotator implements it.
type EgressRotator interface {
	RotateEgress(ctx context.Context, reason string) bool
}

// Plan describes one scan.
type Plan struct {
	// Range is the ID space to probe, in traversal order.
	Range model.IDRange
	// BatchSize is the maximum number of IDs per batch.
	BatchSize int
	// Workers is the number of concurrent probes inside a batch.
	Workers int
	// SaveEvery is the number of new records that triggers a flush.
	SaveEvery int
	// Filter keeps only records in these categories; nil keeps all.
	Filter model.CategoryFilter
	// DelayMin and DelayMax bound the pause between batches.
	DelayMin time.Duration
	DelayMax time.Duration
	// RotateEvery requests a new egress identity after every n-th batch.
	// Zero disables periodic rotation.
	RotateEvery int
}

// DefaultPlan returns a plan over r with default sizing.
func DefaultPlan(r model.IDRange) Plan {
	return Plan{
		Range:       r,
		BatchSize:   DefaultBatchSize,
		Workers:     DefaultWorkers,
		SaveEvery:   DefaultSaveEvery,
		DelayMin:    DefaultDelayMin,
		DelayMax:    DefaultDelayMax,
		RotateEvery: DefaultRotateEvery,
	}
}

// Validate returns the first problem with the plan.
func (p Plan) Validate() error {
	switch {
	case p.Range.Min < 0 || p.Range.Max < p.Range.Min:
		return fmt.Errorf("%w: %s", ErrInvalidRange, p.Range)
	case p.Range.Step < 1:
		return fmt.Errorf("%w: step %d", ErrInvalidRange, p.Range.Step)
	case p.BatchSize < 1:
		return ErrInvalidBatchSize
	case p.Workers < 1:
		return ErrInvalidWorkers
	case p.SaveEvery < 1:
		return ErrInvalidSaveEvery
	case p.DelayMin < 0 || p.DelayMax < p.DelayMin:
		return ErrInvalidDelay
	case p.RotateEvery < 0:
		return ErrInvalidRotateEvery
	}
	return nil
}

// Stats counts what happened during a scan.
type Stats struct {
	Batches       int
	Probed        int
	AlreadyClaims int
	Found         int
	Filtered      int
	Failed        int
	Kept          int
	Flushes       int
	FlushFailures int
	Written       int
	Duplicates    int
	Rotations     int
	Elapsed       time.Duration
}

// Result is the outcome of a scan.
type Result struct {
	// Records holds every record kept during this run, whether or not it
	// was new to the store.
	Records []*model.Record
	Stats   Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSink sets where records are flushed. Without a sink records are
// only returned.
func WithSink(sink store.Sink) Option {
	return func(s *Scheduler) {
		s.sink = sink
	}
}

// WithRotator sets the rotator used for periodic egress rotation.
func WithRotator(r EgressRotator) Option {
	return func(s *Scheduler) {
		s.rotator = r
	}
}

// WithSleeper replaces the pause function, mainly for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// Scheduler walks an ID range batch by batch.
//
// Batches run strictly one after another. Inside a batch up to
// Plan.Workers probes run at once; each claims its ID from the ledger,
// fetches the record and applies the category filter. New records are
// flushed to the sink every Plan.SaveEvery records and once more at the end.
type Scheduler struct {
	source  RecordSource
	sink    store.Sink
	rotator EgressRotator
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewScheduler creates a Scheduler over source.
func NewScheduler(source RecordSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		source: source,
		sleep:  identity.Sleep,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan probes every ID of plan.Range once.
//
// On cancellation no further IDs are dispatched, pending records are
// flushed with a context that is no longer cancelled, and ctx.Err() is
// returned together with the partial result.
func (s *Scheduler) Scan(ctx context.Context, plan Plan, claimer crawler.Claimer) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	res := &Result{}
	fl := &flusher{scheduler: s, every: plan.SaveEvery, stats: &res.Stats}
	total := plan.Range.NumBatches(plan.BatchSize)

	s.logger.Info("scan started",
		"range", plan.Range.String(),
		"ids", plan.Range.Len(),
		"batches", total,
		"batch_size", plan.BatchSize,
		"workers", plan.Workers,
		"save_every", plan.SaveEvery,
	)

	for i, ids := range plan.Range.Batches(plan.BatchSize) {
		if ctx.Err() != nil {
			break
		}

		kept := s.runBatch(ctx, ids, plan, claimer, &res.Stats, func(rec *model.Record) {
			res.Records = append(res.Records, rec)
			fl.add(ctx, rec)
		})
		res.Stats.Batches++

		s.logger.Info("batch complete",
			"batch", i+1,
			"of", total,
			"first_id", ids[0],
			"last_id", ids[len(ids)-1],
			"kept", kept,
			"total_kept", len(res.Records),
		)

		if i == total-1 || ctx.Err() != nil {
			break
		}
		if plan.RotateEvery > 0 && (i+1)%plan.RotateEvery == 0 && s.rotator != nil {
			if s.rotator.RotateEgress(ctx, "periodic") {
				res.Stats.Rotations++
			}
		}
		if err := s.sleep(ctx, fetch.UniformDuration(plan.DelayMin, plan.DelayMax)); err != nil {
			break
		}
	}

	flushCtx := ctx
	if ctx.Err() != nil {
		flushCtx = context.WithoutCancel(ctx)
	}
	fl.flush(flushCtx)

	res.Stats.Kept = len(res.Records)
	res.Stats.Elapsed = time.Since(started)
	s.logger.Info("scan finished",
		"kept", res.Stats.Kept,
		"probed", res.Stats.Probed,
		"written", res.Stats.Written,
		"unflushed", len(fl.pending),
		"elapsed", res.Stats.Elapsed.Round(time.Second),
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// flusher accumulates records and hands them to the sink in groups.
// It is only used from the scan's controlling goroutine.
type flusher struct {
	scheduler *Scheduler
	every     int
	pending   []*model.Record
	stats     *Stats
}

func (f *flusher) add(ctx context.Context, rec *model.Record) {
	f.pending = append(f.pending, rec)
	if len(f.pending) >= f.every {
		f.flush(ctx)
	}
}

// flush saves pending records. On failure they stay pending and are
// retried with the next flush.
func (f *flusher) flush(ctx context.Context) {
	s := f.scheduler
	if len(f.pending) == 0 {
		return
	}
	if s.sink == nil {
		f.pending = nil
		return
	}

	res, err := s.sink.Save(ctx, f.pending)
	if err != nil {
		f.stats.FlushFailures++
		s.metrics.ObserveFlush(false, 0)
		s.logger.Error("flush failed, records kept for the next attempt",
			"pending", len(f.pending), "error", err)
		return
	}

	f.stats.Flushes++
	f.stats.Written += res.Written
	f.stats.Duplicates += res.Skipped
	s.metrics.ObserveFlush(true, res.Written)
	s.logger.Info("records saved",
		"written", res.Written, "duplicates", res.Skipped, "total_stored", res.Total)
	f.pending = nil
}
