package transport

import (
	"bytes"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/cloudxfer/gcsmedia/mediaerr"
)

// ClassifyError turns a non-2xx Response into a mediaerr.InvalidResponse
// whose Reason carries the server's own error message, following the
// teacher's googlecloudstorage backend precedent of running every
// response through googleapi.CheckResponse rather than hand-rolling a
// status-code-to-string mapping. Returns nil for a 2xx resp.
//
// resp.Body is consumed by this call (CheckResponse reads it to parse the
// JSON error payload); callers must only invoke ClassifyError on a
// response they are about to discard, never one they still intend to
// stream from a Sink.
func ClassifyError(url string, resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	httpResp := &http.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}
	err := googleapi.CheckResponse(httpResp)
	if err == nil {
		return nil
	}
	return mediaerr.NewInvalidResponse(url, httpResp, err.Error())
}

// IsRetryableAPIError reports whether err, if it is a *googleapi.Error,
// names a condition the teacher's googlecloudstorage backend retries on
// top of the plain status-code classification in pacer.IsRetryableStatus:
// any 5xx, or a rate-limit reason on an otherwise-non-retryable code.
func IsRetryableAPIError(err error) bool {
	gerr, ok := err.(*googleapi.Error)
	if !ok {
		return false
	}
	if gerr.Code >= 500 && gerr.Code < 600 {
		return true
	}
	for _, e := range gerr.Errors {
		if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}

// PeekRetryableAPIError reads resp's body far enough to run it through
// googleapi's error classification, then replaces resp.Body with a fresh
// reader over the same bytes so a caller further down the chain can still
// consume it. Used by the retry loop to catch a retryable condition a
// bare status code misses — a 403 carrying rateLimitExceeded, say —
// without permanently draining the response a non-retryable outcome still
// needs to report on.
func PeekRetryableAPIError(resp *Response) bool {
	if resp.StatusCode < 300 {
		return false
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	httpResp := &http.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
	gerr := googleapi.CheckResponse(httpResp)
	return IsRetryableAPIError(gerr)
}
