// Package metrics exposes scan counters in Prometheus format.
//
// Every method is safe to call on a nil *Metrics, so components can take an
// optional collector without guarding each call site.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "protext"

// Metrics groups the scanner's collectors.
type Metrics struct {
	registry *prometheus.Registry

	attempts      *prometheus.CounterVec
	attemptTime   prometheus.Histogram
	rotations     *prometheus.CounterVec
	idsProbed     prometheus.Counter
	recordsFound  prometheus.Counter
	flushes       *prometheus.CounterVec
	recordsStored prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "HTTP fetch attempts by classified outcome.",
		}, []string{"outcome"}),
		attemptTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_attempt_duration_seconds",
			Help:      "Duration of single fetch attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		rotations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "egress_rotations_total",
			Help:      "Egress identity rotation requests by reason and result.",
		}, []string{"reason", "ok"}),
		idsProbed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ids_probed_total",
			Help:      "Article IDs claimed and probed.",
		}),
		recordsFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_found_total",
			Help:      "Valid records extracted and kept by the category filter.",
		}),
		flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_flushes_total",
			Help:      "Flushes of pending records to the sink by result.",
		}, []string{"ok"}),
		recordsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_total",
			Help:      "Records newly written to the output collection.",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAttempt records one fetch attempt.
func (m *Metrics) ObserveAttempt(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
	m.attemptTime.Observe(elapsed.Seconds())
}

// ObserveRotation records one egress rotation request.
func (m *Metrics) ObserveRotation(reason string, ok bool) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(reason, strconv.FormatBool(ok)).Inc()
}

// AddProbed counts claimed IDs.
func (m *Metrics) AddProbed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.idsProbed.Add(float64(n))
}

// AddFound counts kept records.
func (m *Metrics) AddFound(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsFound.Add(float64(n))
}

// ObserveFlush records a flush and the number of records it newly stored.
func (m *Metrics) ObserveFlush(ok bool, written int) {
	if m == nil {
		return
	}
	m.flushes.WithLabelValues(strconv.FormatBool(ok)).Inc()
	if written > 0 {
		m.recordsStored.Add(float64(written))
	}
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // best effort on exit
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
