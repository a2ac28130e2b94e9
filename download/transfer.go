// Package download implements the one-shot Download and sequential
// ChunkedDownload state machines, grounded on the teacher's
// googlecloudstorage backend for GCS media-request shape and on
// b2/upload.go's pacer.Call + fs.Debugf idiom for the surrounding control
// flow (applied here to the download side of the protocol).
package download

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudxfer/gcsmedia/pacer"
	"github.com/cloudxfer/gcsmedia/rest"
	"github.com/cloudxfer/gcsmedia/transport"
)

// Transfer is the data shared by every download kind: the absolute media
// URL, the optional inclusive byte range, the caller-owned header map the
// engine mutates in place, and the monotonic false->true Finished flag.
type Transfer struct {
	MediaURL string
	Start    *int64
	End      *int64
	Headers  http.Header
	Finished bool

	// Retry governs the bounded jittered backoff wrapped around every GET
	// this transfer emits. A nil Retry gets pacer.New()'s defaults lazily
	// via retryPacer.
	Retry *pacer.Pacer

	// Sleep overrides the backoff sleeper, primarily for tests that need
	// to assert an exact backoff sequence without waiting in real time.
	// Defaults to time.Sleep.
	Sleep pacer.Sleeper
}

func (t *Transfer) retryPacer() *pacer.Pacer {
	if t.Retry == nil {
		t.Retry = pacer.New()
	}
	return t.Retry
}

func (t *Transfer) sleeper() pacer.Sleeper {
	if t.Sleep == nil {
		return time.Sleep
	}
	return t.Sleep
}

// doWithRetry emits opts, retrying the same request while the response
// status is retryable (by plain status code or by the googleapi error
// reason a non-retryable status still carries) or the transport itself
// errors, which is always worth retrying since it signals a connection
// never got a response at all. Only the last attempt's response/error is
// returned. The request is stamped with a correlation header once, up
// front, so every retry of the same logical request carries the same
// token.
func (t *Transfer) doWithRetry(ctx context.Context, tr transport.Transport, opts *rest.Opts) (*transport.Response, error) {
	if opts.Headers != nil {
		rest.WithCorrelationID(opts.Headers)
	}
	var resp *transport.Response
	var err error
	callErr := t.retryPacer().CallWithSleeper(func() (bool, error) {
		resp, err = tr.Do(ctx, opts)
		if err != nil {
			return true, err
		}
		retry := pacer.IsRetryableStatus(resp.StatusCode) || transport.PeekRetryableAPIError(resp)
		return retry, err
	}, t.sleeper())
	if callErr != nil && resp == nil {
		return nil, callErr
	}
	return resp, err
}

// SingleGetChunkSize is the implementation-defined chunk size the one-shot
// Download streams the response body in; 8 KiB keeps memory use low
// without adding much syscall overhead.
const SingleGetChunkSize = 8 * 1024
