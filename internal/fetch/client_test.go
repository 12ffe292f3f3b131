package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/koprjaa/protext-scraper/internal/identity"
)

// fakeIdentity records rotations and hands out one fixed signature.
type fakeIdentity struct {
	mu      sync.Mutex
	reasons []string
}

func (f *fakeIdentity) Next() identity.Signature {
	return identity.Signature{UserAgent: "test-agent/1.0"}
}

func (f *fakeIdentity) RotateEgress(_ context.Context, reason string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
	return true
}

func (f *fakeIdentity) rotations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reasons...)
}

// sleepRecorder collects requested waits without sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) contains(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.waits {
		if w == d {
			return true
		}
	}
	return false
}

func newTestClient(id *fakeIdentity, sleeper *sleepRecorder, opts ...Option) *Client {
	p := DefaultPolicy()
	p.Uniform = fixedUniform
	base := []Option{
		WithIdentity(id),
		WithSleeper(sleeper.sleep),
		WithPolicy(p),
		WithJitter(0, 0),
		WithAttemptTimeout(2*time.Second, 2*time.Second),
	}
	return New(append(base, opts...)...)
}

// TestClientFetch tests the retrying fetch.
func TestClientFetch(t *testing.T) {
	t.Parallel()

	t.Run("returns body on success", func(t *testing.T) {
		t.Parallel()

		gotUA := make(chan string, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA <- r.Header.Get("User-Agent")
			_, _ = w.Write([]byte("<html>ok</html>"))
		}))
		defer server.Close()

		c := newTestClient(&fakeIdentity{}, &sleepRecorder{})
		resp, err := c.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.Body) != "<html>ok</html>" {
			t.Errorf("body = %q", resp.Body)
		}
		if ua := <-gotUA; ua != "test-agent/1.0" {
			t.Errorf("User-Agent = %q", ua)
		}
	})

	t.Run("429 then 200 honors retry-after and rotates", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte("article"))
		}))
		defer server.Close()

		id := &fakeIdentity{}
		sleeper := &sleepRecorder{}
		c := newTestClient(id, sleeper)

		resp, err := c.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.Body) != "article" {
			t.Errorf("body = %q", resp.Body)
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 requests, got %d", calls.Load())
		}
		if !sleeper.contains(7 * time.Second) {
			t.Errorf("expected a 7s wait, got %v", sleeper.waits)
		}
		if got := id.rotations(); len(got) != 1 || got[0] != "rate_limited" {
			t.Errorf("rotations = %v", got)
		}
	})

	t.Run("exhausts after max retries", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		id := &fakeIdentity{}
		c := newTestClient(id, &sleepRecorder{})

		_, err := c.Fetch(context.Background(), server.URL)
		if !errors.Is(err, ErrExhausted) {
			t.Fatalf("expected ErrExhausted, got %v", err)
		}
		if calls.Load() != DefaultMaxRetries {
			t.Errorf("expected %d requests, got %d", DefaultMaxRetries, calls.Load())
		}
		if got := id.rotations(); len(got) != 0 {
			t.Errorf("a missing page must not rotate, got %v", got)
		}
	})

	t.Run("transport failures rotate after two in a row", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := server.URL
		server.Close()

		id := &fakeIdentity{}
		c := newTestClient(id, &sleepRecorder{})

		if _, err := c.Fetch(context.Background(), url); !errors.Is(err, ErrExhausted) {
			t.Fatalf("expected ErrExhausted, got %v", err)
		}
		// The second failure rotates; the third is final and has no attempt left to use it.
		if got := id.rotations(); len(got) != 1 || got[0] != "failure" {
			t.Errorf("expected one failure rotation, got %v", got)
		}
	})

	t.Run("zero retry-after retries without the default wait", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte("article"))
		}))
		defer server.Close()

		sleeper := &sleepRecorder{}
		c := newTestClient(&fakeIdentity{}, sleeper)

		if _, err := c.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sleeper.contains(DefaultRetryAfter) {
			t.Errorf("explicit zero must not fall back to the default, waits = %v", sleeper.waits)
		}
	})

	t.Run("429 without retry-after waits the default", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte("article"))
		}))
		defer server.Close()

		sleeper := &sleepRecorder{}
		c := newTestClient(&fakeIdentity{}, sleeper)

		if _, err := c.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !sleeper.contains(DefaultRetryAfter) {
			t.Errorf("expected the default wait, got %v", sleeper.waits)
		}
	})

	t.Run("per-call options override the budget", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		sleeper := &sleepRecorder{}
		c := newTestClient(&fakeIdentity{}, sleeper)

		_, err := c.FetchWith(context.Background(), server.URL, Options{MaxRetries: 2, BaseDelay: 500 * time.Millisecond})
		if !errors.Is(err, ErrExhausted) {
			t.Fatalf("expected ErrExhausted, got %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 requests, got %d", calls.Load())
		}
		if !sleeper.contains(500*time.Millisecond + DefaultBackoffJitterMin) {
			t.Errorf("expected base-delay backoff, got %v", sleeper.waits)
		}
	})

	t.Run("403 rotates each time", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		id := &fakeIdentity{}
		c := newTestClient(id, &sleepRecorder{})

		if _, err := c.Fetch(context.Background(), server.URL); !errors.Is(err, ErrExhausted) {
			t.Fatalf("expected ErrExhausted, got %v", err)
		}
		if got := id.rotations(); len(got) != DefaultMaxRetries {
			t.Errorf("expected %d rotations, got %v", DefaultMaxRetries, got)
		}
	})

	t.Run("cancelled context returns immediately", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := newTestClient(&fakeIdentity{}, &sleepRecorder{})
		if _, err := c.Fetch(ctx, server.URL); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("decodes gzip and brotli bodies", func(t *testing.T) {
		t.Parallel()

		var gz, br bytes.Buffer
		zw := gzip.NewWriter(&gz)
		_, _ = zw.Write([]byte("gzip body"))
		_ = zw.Close()
		bw := brotli.NewWriter(&br)
		_, _ = bw.Write([]byte("brotli body"))
		_ = bw.Close()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/br" {
				w.Header().Set("Content-Encoding", "br")
				_, _ = w.Write(br.Bytes())
				return
			}
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(gz.Bytes())
		}))
		defer server.Close()

		c := newTestClient(&fakeIdentity{}, &sleepRecorder{})
		for path, want := range map[string]string{"/gz": "gzip body", "/br": "brotli body"} {
			resp, err := c.Fetch(context.Background(), server.URL+path)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", path, err)
			}
			if string(resp.Body) != want {
				t.Errorf("%s: body = %q, expected %q", path, resp.Body, want)
			}
		}
	})
}

// TestDecodeBody tests content decoding edge cases.
func TestDecodeBody(t *testing.T) {
	t.Parallel()

	t.Run("identity passes through", func(t *testing.T) {
		t.Parallel()

		got, err := decodeBody([]byte("plain"), "", 1024)
		if err != nil || string(got) != "plain" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("unknown encoding is rejected", func(t *testing.T) {
		t.Parallel()

		if _, err := decodeBody([]byte("x"), "zstd", 1024); !errors.Is(err, ErrUnsupportedEncoding) {
			t.Errorf("expected ErrUnsupportedEncoding, got %v", err)
		}
	})
}
