package identity

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/koprjaa/protext-scraper/internal/metrics"
)

// DefaultSettle is how long a successful rotation waits for the new circuit.
const DefaultSettle = 3 * time.Second

// EgressController changes the network address requests leave from.
// tor.Controller implements it.
type EgressController interface {
	NewIdentity(ctx context.Context) error
}

// Rotator hands out request signatures and rotates the egress identity.
type Rotator struct {
	signatures []Signature
	controller EgressController
	settle     time.Duration
	pick       func(n int) int
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
	metrics    *metrics.Metrics

	group     singleflight.Group
	rotations atomic.Int64
}

// Option configures a Rotator.
type Option func(*Rotator)

// WithController sets the egress controller. Without one, RotateEgress is a no-op.
func WithController(c EgressController) Option {
	return func(r *Rotator) {
		r.controller = c
	}
}

// WithSettle overrides the post-rotation wait.
func WithSettle(d time.Duration) Option {
	return func(r *Rotator) {
		if d >= 0 {
			r.settle = d
		}
	}
}

// WithSignatures replaces the built-in pool.
func WithSignatures(sigs []Signature) Option {
	return func(r *Rotator) {
		if len(sigs) > 0 {
			r.signatures = sigs
		}
	}
}

// WithPicker sets the index chooser used by Next.
func WithPicker(pick func(n int) int) Option {
	return func(r *Rotator) {
		if pick != nil {
			r.pick = pick
		}
	}
}

// WithSleeper sets the context-aware sleep used for the settle wait.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Rotator) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rotator) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Rotator) {
		r.metrics = m
	}
}

// NewRotator creates a Rotator over the built-in signature pool.
func NewRotator(opts ...Option) *Rotator {
	r := &Rotator{
		signatures: pool,
		settle:     DefaultSettle,
		pick:       rand.IntN,
		sleep:      Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Next returns a signature drawn uniformly at random from the pool.
func (r *Rotator) Next() Signature {
	return r.signatures[r.pick(len(r.signatures))]
}

// RotateEgress asks the controller for a new egress identity and reports
// whether it succeeded. Concurrent callers share one control-port exchange.
// Failure is logged and never fatal.
func (r *Rotator) RotateEgress(ctx context.Context, reason string) bool {
	if r.controller == nil {
		return false
	}

	v, _, _ := r.group.Do("newnym", func() (any, error) {
		if err := r.controller.NewIdentity(ctx); err != nil {
			r.logger.Warn("egress rotation failed", "reason", reason, "error", err)
			r.metrics.ObserveRotation(reason, false)
			return false, nil
		}

		n := r.rotations.Add(1)
		r.metrics.ObserveRotation(reason, true)
		r.logger.Info("egress identity rotated", "reason", reason, "rotations", n)

		// The circuit is already new; a cancelled settle does not undo it.
		_ = r.sleep(ctx, r.settle) //nolint:errcheck
		return true, nil
	})

	ok, _ := v.(bool)
	return ok
}

// Rotations returns the number of successful rotations so far.
func (r *Rotator) Rotations() int64 {
	return r.rotations.Load()
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
