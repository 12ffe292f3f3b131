package pipeline

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/koprjaa/protext-scraper/internal/crawler"
	"github.com/koprjaa/protext-scraper/internal/model"
)

// batchCounters are updated by workers and folded into Stats afterwards.
type batchCounters struct {
	probed        atomic.Int64
	alreadyClaims atomic.Int64
	found         atomic.Int64
	filtered      atomic.Int64
	failed        atomic.Int64
}

// runBatch probes ids with at most plan.Workers concurrent workers and
// calls keep, from the calling goroutine, for every record that survives
// the filter, in completion order. It returns the number of kept records.
//
// No new probe starts once ctx is done; probes already running finish.
func (s *Scheduler) runBatch(
	ctx context.Context,
	ids []int,
	plan Plan,
	claimer crawler.Claimer,
	stats *Stats,
	keep func(*model.Record),
) int {
	var (
		counters batchCounters
		results  = make(chan *model.Record)
		g        errgroup.Group
	)
	g.SetLimit(plan.Workers)

	go func() {
		defer close(results)
		for _, id := range ids {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if rec := s.probe(ctx, id, plan.Filter, claimer, &counters); rec != nil {
					results <- rec
				}
				// A failed probe is "no result"; it never stops the batch.
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // workers never return errors
	}()

	kept := 0
	for rec := range results {
		keep(rec)
		kept++
	}

	stats.Probed += int(counters.probed.Load())
	stats.AlreadyClaims += int(counters.alreadyClaims.Load())
	stats.Found += int(counters.found.Load())
	stats.Filtered += int(counters.filtered.Load())
	stats.Failed += int(counters.failed.Load())
	return kept
}

// probe claims, fetches and filters one id. A panic inside the fetch is
// recovered and counted as a failure.
func (s *Scheduler) probe(
	ctx context.Context,
	id int,
	filter model.CategoryFilter,
	claimer crawler.Claimer,
	counters *batchCounters,
) (rec *model.Record) {
	defer func() {
		if r := recover(); r != nil {
			counters.failed.Add(1)
			s.logger.Error("worker panicked", "id", id, "panic", r)
			rec = nil
		}
	}()

	if !claimer.TryClaim(id) {
		counters.alreadyClaims.Add(1)
		return nil
	}
	counters.probed.Add(1)
	s.metrics.AddProbed(1)

	rec, err := s.source.FetchRecord(ctx, id)
	if err != nil {
		if ctx.Err() == nil {
			counters.failed.Add(1)
			s.logger.Warn("probe failed", "id", id, "error", err)
		}
		return nil
	}
	if rec == nil {
		return nil
	}

	counters.found.Add(1)
	s.metrics.AddFound(1)
	if !filter.Accepts(rec) {
		counters.filtered.Add(1)
		s.logger.Debug("record filtered out", "id", id, "category", rec.CategoryOrDefault())
		return nil
	}
	s.logger.Debug("record found", "id", id, "title", rec.Title)
	return rec
}
