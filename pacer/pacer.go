// Package pacer implements the engine's bounded, jittered exponential
// backoff retry policy. The call shape — Call(func() (bool,
// error)) error, where the callback reports whether its error is worth
// retrying — follows the teacher's lib/pacer, used throughout rclone's
// backends (e.g. b2's largeUpload.sendChunk: "up.f.pacer.Call(func()
// (bool, error) { ...; return shouldRetry(resp, err) })").
package pacer

import (
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/cloudxfer/gcsmedia/mlog"
)

// DefaultMaxCumulativeRetry is the default ceiling on the total time spent
// sleeping between retries of a single operation.
const DefaultMaxCumulativeRetry = 600 * time.Second

// retryableStatus is the set of HTTP status codes treated as transient
// and worth retrying: 408, 429, 500, 502, 503, 504.
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:     true,
	http.StatusTooManyRequests:    true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// IsRetryableStatus reports whether code is one of the transient statuses
// the retry loop should retry on its own (as opposed to connection-level
// errors, which the transport surfaces directly as non-nil err values;
// the download and upload doWithRetry callbacks report those as
// retryable to Call).
func IsRetryableStatus(code int) bool {
	return retryableStatus[code]
}

// Option configures a Pacer, following the teacher's functional-options
// constructor shape (pacer.New(RetriesOption(n), ...)).
type Option func(*Pacer)

// MaxCumulativeRetry bounds the total sleep time across all attempts of a
// single Call. The default is DefaultMaxCumulativeRetry.
func MaxCumulativeRetry(d time.Duration) Option {
	return func(p *Pacer) { p.maxCumulative = d }
}

// intnSource is the jitter capability Pacer.Backoff draws on: anything with
// an Intn(n) method, including *rand.Rand, so tests can substitute a fixed
// replay sequence without needing a real math/rand.Source underneath.
type intnSource interface {
	Intn(n int) int
}

// RandSource overrides the source of jitter, primarily for deterministic
// tests that feed a fixed random-int stream to assert an exact backoff
// sequence.
func RandSource(r intnSource) Option {
	return func(p *Pacer) { p.rand = r }
}

// Pacer runs an operation, retrying on transient failure with jittered
// exponential backoff until either the operation succeeds, returns a
// non-retryable error, or the cumulative wait would exceed maxCumulative.
type Pacer struct {
	maxCumulative time.Duration
	rand          intnSource
}

// New builds a Pacer with DefaultMaxCumulativeRetry unless overridden.
func New(opts ...Option) *Pacer {
	p := &Pacer{
		maxCumulative: DefaultMaxCumulativeRetry,
		rand:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Backoff computes wait(n) = min(2^n, 64) + U(0,1) seconds, where n is the
// zero-based retry count. The jitter is a random integer in [0,1000)
// divided by 1000, giving millisecond resolution.
func (p *Pacer) Backoff(n int) time.Duration {
	base := math.Min(math.Pow(2, float64(n)), 64)
	jitterMillis := p.rand.Intn(1000)
	return time.Duration(base*float64(time.Second)) + time.Duration(jitterMillis)*time.Millisecond
}

// Sleeper abstracts time.Sleep so tests can run the retry loop without
// real delays (the engine's own callers pass time.Sleep in production). It
// takes no context, so a sleep in progress is not cancelled.
type Sleeper func(time.Duration)

// Call runs fn, retrying while fn reports retry == true, until fn
// succeeds, reports non-retryable, or the cumulative backoff would exceed
// p.maxCumulative. At most the last error is returned to the caller. Call
// itself does not classify HTTP responses; fn owns that decision (typically
// via IsRetryableStatus) so the loop stays agnostic to transport shape.
func (p *Pacer) Call(fn func() (retry bool, err error)) error {
	return p.call(fn, time.Sleep)
}

// CallWithSleeper is Call with an injectable sleep function, used by tests
// to assert the exact backoff sequence without waiting in real time.
func (p *Pacer) CallWithSleeper(fn func() (retry bool, err error), sleep Sleeper) error {
	return p.call(fn, sleep)
}

func (p *Pacer) call(fn func() (retry bool, err error), sleep Sleeper) error {
	var cumulative time.Duration
	var lastErr error
	for attempt := 0; ; attempt++ {
		retry, err := fn()
		lastErr = err
		if !retry {
			return err
		}
		wait := p.Backoff(attempt)
		if cumulative+wait > p.maxCumulative {
			mlog.Debugf(nil, "retry budget exhausted after %d attempt(s), cumulative %s", attempt+1, cumulative)
			return lastErr
		}
		cumulative += wait
		mlog.Debugf(nil, "retrying (attempt %d) after %s: %v", attempt+1, wait, err)
		sleep(wait)
	}
}
