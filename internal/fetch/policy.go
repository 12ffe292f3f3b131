package fetch

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// State is a node of the retry state machine.
type State int

const (
	// Attempting is the state while a request is in flight.
	Attempting State = iota
	// Backoff waits exponentially after a transport failure or an error status.
	Backoff
	// RateLimited waits for the server's Retry-After after a 429.
	RateLimited
	// Forbidden waits after a 403.
	Forbidden
	// Unavailable waits after a 503.
	Unavailable
	// Succeeded is terminal: the response is returned.
	Succeeded
	// Exhausted is terminal: the attempt budget is spent.
	Exhausted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Backoff:
		return "backoff"
	case RateLimited:
		return "rate_limited"
	case Forbidden:
		return "forbidden"
	case Unavailable:
		return "unavailable"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome classifies the result of one attempt.
type Outcome int

const (
	// OutcomeSuccess is any status below 400.
	OutcomeSuccess Outcome = iota
	// OutcomeRateLimited is a 429.
	OutcomeRateLimited
	// OutcomeForbidden is a 403.
	OutcomeForbidden
	// OutcomeUnavailable is a 503.
	OutcomeUnavailable
	// OutcomeHTTPError is any other status of 400 and above. The server
	// answered, so it never counts toward rotation.
	OutcomeHTTPError
	// OutcomeFailure is a transport, read or decode error.
	OutcomeFailure
)

// String returns the outcome name used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Classify maps an attempt's status code or transport error to an Outcome.
func Classify(status int, err error) Outcome {
	if err != nil {
		return OutcomeFailure
	}
	switch {
	case status == http.StatusTooManyRequests:
		return OutcomeRateLimited
	case status == http.StatusForbidden:
		return OutcomeForbidden
	case status == http.StatusServiceUnavailable:
		return OutcomeUnavailable
	case status <= 0:
		return OutcomeFailure
	case status >= 400:
		return OutcomeHTTPError
	default:
		return OutcomeSuccess
	}
}

// Transition is the policy's decision after an attempt.
type Transition struct {
	State  State
	Wait   time.Duration
	Rotate bool
}

// Policy defaults.
const (
	DefaultMaxRetries       = 3
	DefaultBaseDelay        = time.Second
	DefaultRetryAfter       = 180 * time.Second
	DefaultMaxRetryAfter    = 15 * time.Minute
	DefaultBlockWaitMin     = 10 * time.Second
	DefaultBlockWaitMax     = 20 * time.Second
	DefaultBackoffJitterMin = 2 * time.Second
	DefaultBackoffJitterMax = 8 * time.Second

	// rotateAfterFailures is the run of consecutive transport failures that
	// justifies a new egress identity.
	rotateAfterFailures = 2
)

// NoRetryAfter tells Next that a 429 carried no usable Retry-After.
const NoRetryAfter time.Duration = -1

// Policy is the retry state machine's configuration.
type Policy struct {
	MaxRetries       int
	BaseDelay        time.Duration
	RetryAfter       time.Duration
	MaxRetryAfter    time.Duration
	BlockWaitMin     time.Duration
	BlockWaitMax     time.Duration
	BackoffJitterMin time.Duration
	BackoffJitterMax time.Duration

	// Uniform draws a duration in [lo, hi]. Nil uses UniformDuration.
	Uniform func(lo, hi time.Duration) time.Duration
}

// DefaultPolicy returns the policy used when nothing is overridden.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:       DefaultMaxRetries,
		BaseDelay:        DefaultBaseDelay,
		RetryAfter:       DefaultRetryAfter,
		MaxRetryAfter:    DefaultMaxRetryAfter,
		BlockWaitMin:     DefaultBlockWaitMin,
		BlockWaitMax:     DefaultBlockWaitMax,
		BackoffJitterMin: DefaultBackoffJitterMin,
		BackoffJitterMax: DefaultBackoffJitterMax,
	}
}

// Next decides what follows attempt (zero-based) given its outcome.
//
// failures is the number of consecutive OutcomeFailure results ending with
// this attempt. retryAfter is the server's hint for a 429, NoRetryAfter if
// absent or invalid; an explicit zero retries at once.
// On the final attempt the state becomes Exhausted and the wait is dropped.
// A rotation for a block signal is kept so the next caller benefits; one for
// transport failures is not, since no attempt remains to use it.
func (p Policy) Next(attempt, failures int, outcome Outcome, retryAfter time.Duration) Transition {
	var tr Transition

	switch outcome {
	case OutcomeSuccess:
		return Transition{State: Succeeded}
	case OutcomeRateLimited:
		tr.State = RateLimited
		tr.Rotate = true
		tr.Wait = retryAfter
		if tr.Wait < 0 {
			tr.Wait = p.RetryAfter
		}
		if p.MaxRetryAfter > 0 && tr.Wait > p.MaxRetryAfter {
			tr.Wait = p.MaxRetryAfter
		}
	case OutcomeForbidden:
		tr.State = Forbidden
		tr.Rotate = true
		tr.Wait = p.uniform(p.BlockWaitMin, p.BlockWaitMax)
	case OutcomeUnavailable:
		tr.State = Unavailable
		tr.Rotate = attempt >= 1
		tr.Wait = p.uniform(p.BlockWaitMin, p.BlockWaitMax)
	case OutcomeHTTPError:
		tr.State = Backoff
		tr.Wait = p.backoff(attempt)
	default:
		tr.State = Backoff
		tr.Rotate = failures >= rotateAfterFailures
		tr.Wait = p.backoff(attempt)
	}

	if attempt+1 >= p.MaxRetries {
		tr.State = Exhausted
		tr.Wait = 0
		if outcome == OutcomeFailure {
			tr.Rotate = false
		}
	}
	return tr
}

func (p Policy) backoff(attempt int) time.Duration {
	return p.BaseDelay<<min(attempt, 20) + p.uniform(p.BackoffJitterMin, p.BackoffJitterMax)
}

func (p Policy) uniform(lo, hi time.Duration) time.Duration {
	if p.Uniform != nil {
		return p.Uniform(lo, hi)
	}
	return UniformDuration(lo, hi)
}

// UniformDuration draws a duration uniformly from [lo, hi].
func UniformDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

var (
	// ErrNoRetryAfter is returned by ParseRetryAfter for an empty header.
	ErrNoRetryAfter = errors.New("no Retry-After value")
	// ErrInvalidRetryAfter is returned by ParseRetryAfter for unparseable values.
	ErrInvalidRetryAfter = errors.New("invalid Retry-After value")
)

// ParseRetryAfter interprets a Retry-After header given in delta-seconds or
// as an HTTP date relative to now. Zero and dates in the past yield zero.
func ParseRetryAfter(value string, now time.Time) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrNoRetryAfter
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, ErrInvalidRetryAfter
		}
		return time.Duration(secs) * time.Second, nil
	}
	when, err := http.ParseTime(value)
	if err != nil {
		return 0, ErrInvalidRetryAfter
	}
	return max(when.Sub(now), 0), nil
}
