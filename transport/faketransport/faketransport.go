// Package faketransport provides a scripted transport.Transport for tests,
// following the teacher's pattern of small in-package fakes (e.g.
// fstest) rather than pulling in an HTTP mocking library for a protocol
// this narrow.
package faketransport

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/cloudxfer/gcsmedia/rest"
	"github.com/cloudxfer/gcsmedia/transport"
)

// ScriptedResponse is one canned response to return from Do.
type ScriptedResponse struct {
	StatusCode int
	Header     http.Header
	Body       string
	Err        error
}

// Transport replays Responses in order, recording every Opts it was
// called with in Requests for assertions.
type Transport struct {
	Responses []ScriptedResponse
	Requests  []*rest.Opts
	calls     int
}

var _ transport.Transport = (*Transport)(nil)

func (t *Transport) Do(_ context.Context, opts *rest.Opts) (*transport.Response, error) {
	t.Requests = append(t.Requests, opts)
	if t.calls >= len(t.Responses) {
		panic("faketransport: ran out of scripted responses")
	}
	sr := t.Responses[t.calls]
	t.calls++
	if sr.Err != nil {
		return nil, sr.Err
	}
	h := sr.Header
	if h == nil {
		h = make(http.Header)
	}
	return &transport.Response{
		StatusCode: sr.StatusCode,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(sr.Body)),
	}, nil
}

// LastRequest returns the most recently recorded Opts, or nil if none yet.
func (t *Transport) LastRequest() *rest.Opts {
	if len(t.Requests) == 0 {
		return nil
	}
	return t.Requests[len(t.Requests)-1]
}
