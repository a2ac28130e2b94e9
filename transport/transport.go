// Package transport defines the engine's HTTP transport adapter: a single
// capability the download and upload state machines call to perform a
// request, independent of blocking vs cooperative scheduling. This
// mirrors the teacher's approach of keeping backends (googlecloudstorage,
// b2, s3) ignorant of the underlying http.Client wiring — they all call
// through srv.Call/CallJSON built on a shared *http.Client.
package transport

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/cloudxfer/gcsmedia/rest"
)

// Response is the transport-agnostic result of a request: status, headers,
// and the response body exactly as received on the wire (no transparent
// gzip decoding — the download state machine decides whether to install a
// decoder, treating decoded-vs-raw as a configuration bit rather than a
// distinct transport shape).
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Transport performs a single HTTP request described by opts. Both the
// blocking (HTTPTransport) and cooperative (ContextTransport) adapters
// implement this one signature; ctx is the only suspension point besides
// the caller's own stream reads/writes.
type Transport interface {
	Do(ctx context.Context, opts *rest.Opts) (*Response, error)
}

// HTTPTransport is the blocking adapter: each Do call runs to completion on
// the caller's goroutine using a standard *http.Client.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport wraps client (which may already be an
// oauth2.NewClient-built client carrying credentials — this package never
// acquires credentials itself, only uses whatever client it's handed). A
// nil client uses http.DefaultClient.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{Client: client}
}

func (t *HTTPTransport) Do(ctx context.Context, opts *rest.Opts) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.EffectiveTimeout())

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, opts.Body)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "building request")
	}
	if opts.Headers != nil {
		req.Header = opts.Headers.Clone()
	}
	if opts.ContentLength >= 0 {
		req.ContentLength = opts.ContentLength
	}
	// Ask the transport not to auto-decompress so Content-Encoding: gzip
	// bodies reach the download state machine as the wire bytes the
	// server actually sent; it decides whether to install a decoder.
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := t.Client.Do(req)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "performing request")
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       &cancelReadCloser{rc: resp.Body, cancel: cancel},
	}, nil
}

// cancelReadCloser releases opts.Timeout's derived context once the
// response body is closed, rather than as soon as Do returns — the
// timeout is meant to bound the whole request/response exchange,
// including a caller still streaming the body, not just reaching the
// status line.
type cancelReadCloser struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Read(p []byte) (int, error) {
	return c.rc.Read(p)
}

func (c *cancelReadCloser) Close() error {
	err := c.rc.Close()
	c.cancel()
	return err
}

// ContextTransport is the cooperative adapter: functionally identical to
// HTTPTransport, but every read from the response body is a suspension
// point that also observes ctx cancellation. Go's goroutines make
// blocking and cooperative scheduling the same mechanism underneath; what
// differs here is that body reads are wrapped so a cancelled ctx unblocks
// a stalled read immediately instead of waiting for the next chunk to
// arrive.
type ContextTransport struct {
	inner *HTTPTransport
}

// NewContextTransport builds the cooperative adapter over the same
// *http.Client shape as NewHTTPTransport.
func NewContextTransport(client *http.Client) *ContextTransport {
	return &ContextTransport{inner: NewHTTPTransport(client)}
}

func (t *ContextTransport) Do(ctx context.Context, opts *rest.Opts) (*Response, error) {
	resp, err := t.inner.Do(ctx, opts)
	if err != nil {
		return nil, err
	}
	resp.Body = &ctxReadCloser{ctx: ctx, rc: resp.Body}
	return resp, nil
}

// ctxReadCloser aborts a Read as soon as ctx is done rather than blocking
// until the underlying connection yields more bytes or EOF.
type ctxReadCloser struct {
	ctx context.Context
	rc  io.ReadCloser
}

func (c *ctxReadCloser) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := c.rc.Read(p)
		done <- result{n, err}
	}()
	select {
	case <-c.ctx.Done():
		return 0, c.ctx.Err()
	case r := <-done:
		return r.n, r.err
	}
}

func (c *ctxReadCloser) Close() error {
	return c.rc.Close()
}
