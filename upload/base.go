// Package upload implements the SimpleUpload, MultipartUpload, and
// ResumableUpload state machines, grounded on the teacher's
// b2/upload.go largeUpload (chunked transmission against a pacer.Call
// retry loop) generalized from B2's large-file protocol to GCS's
// resumable-session protocol, and on the official Go API client's
// internal/gensupport.ResumableUpload for content-range/308 handling
// conventions.
package upload

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cloudxfer/gcsmedia/pacer"
	"github.com/cloudxfer/gcsmedia/rest"
	"github.com/cloudxfer/gcsmedia/transport"
)

// Base is the data shared by every upload kind: the absolute upload URL,
// the caller-owned header map the engine mutates in place, and the
// monotonic false->true Finished flag.
type Base struct {
	UploadURL string
	Headers   http.Header
	Finished  bool

	// Retry governs the bounded jittered backoff wrapped around every
	// POST/PUT this upload emits. A nil Retry gets pacer.New()'s defaults
	// lazily via retryPacer.
	Retry *pacer.Pacer

	// Sleep overrides the backoff sleeper, primarily for tests that need
	// to assert an exact backoff sequence without waiting in real time.
	// Defaults to time.Sleep.
	Sleep pacer.Sleeper
}

func ensureHeaders(h http.Header) http.Header {
	if h == nil {
		return make(http.Header)
	}
	return h
}

func (b *Base) retryPacer() *pacer.Pacer {
	if b.Retry == nil {
		b.Retry = pacer.New()
	}
	return b.Retry
}

func (b *Base) sleeper() pacer.Sleeper {
	if b.Sleep == nil {
		return time.Sleep
	}
	return b.Sleep
}

// doWithRetry mirrors download.Transfer.doWithRetry: retries the same
// request while the response status is retryable (by plain status code or
// by the googleapi error reason a non-retryable status still carries) or
// the transport itself errors, surfacing only the last attempt. A seekable
// Body is rewound before each attempt, since the transport consumes it on
// send. The request is stamped with a correlation header once, up front,
// so every retry of the same logical request carries the same token.
func (b *Base) doWithRetry(ctx context.Context, tr transport.Transport, opts *rest.Opts) (*transport.Response, error) {
	if opts.Headers != nil {
		rest.WithCorrelationID(opts.Headers)
	}
	seeker, _ := opts.Body.(io.Seeker)
	var resp *transport.Response
	var err error
	callErr := b.retryPacer().CallWithSleeper(func() (bool, error) {
		if seeker != nil {
			if _, serr := seeker.Seek(0, io.SeekStart); serr != nil {
				return false, serr
			}
		}
		resp, err = tr.Do(ctx, opts)
		if err != nil {
			return true, err
		}
		retry := pacer.IsRetryableStatus(resp.StatusCode) || transport.PeekRetryableAPIError(resp)
		return retry, err
	}, b.sleeper())
	if callErr != nil && resp == nil {
		return nil, callErr
	}
	return resp, err
}
