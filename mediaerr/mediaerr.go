// Package mediaerr defines the domain error taxonomy shared by the download
// and upload state machines: invalid server responses, checksum mismatches,
// and caller precondition violations.
package mediaerr

import (
	"fmt"
	"net/http"
)

// InvalidResponse means the server returned a status code or headers that
// are incompatible with the protocol at the transfer's current state
// (unexpected status, missing Location, malformed Range, duplicate hash
// pair). When the error was classified from a non-2xx status
// (transport.ClassifyError), the response is attached for diagnostics;
// errors raised while validating a response's headers or body carry a nil
// Response and a zero StatusCode.
type InvalidResponse struct {
	URL        string
	StatusCode int
	Reason     string
	Response   *http.Response
}

func (e *InvalidResponse) Error() string {
	return fmt.Sprintf("invalid response from %s (status %d): %s", e.URL, e.StatusCode, e.Reason)
}

// NewInvalidResponse builds an InvalidResponse, tolerating a nil resp (e.g.
// for validation performed before a request was ever sent).
func NewInvalidResponse(url string, resp *http.Response, reason string) *InvalidResponse {
	ir := &InvalidResponse{URL: url, Reason: reason, Response: resp}
	if resp != nil {
		ir.StatusCode = resp.StatusCode
	}
	return ir
}

// DataCorruption means the end-of-body checksum did not match the value the
// server advertised in X-Goog-Hash.
type DataCorruption struct {
	URL       string
	Algorithm string
	Expected  string
	Computed  string
}

func (e *DataCorruption) Error() string {
	return fmt.Sprintf("checksum mismatch for %s (%s): expected %s, computed %s",
		e.URL, e.Algorithm, e.Expected, e.Computed)
}

// InvalidState means a caller precondition was violated: an operation on a
// finished transfer, a chunk size that isn't a multiple of 256 KiB, a
// non-byte payload handed to a multipart upload, a stream position that
// disagrees with bytes_uploaded, or an unrecognized checksum label.
type InvalidState struct {
	Op     string
	Reason string
}

func (e *InvalidState) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// NewInvalidState is a small constructor so call sites read like
// mediaerr.NewInvalidState("TransmitNextChunk", "stream position ...").
func NewInvalidState(op, reason string) *InvalidState {
	return &InvalidState{Op: op, Reason: reason}
}

// ErrHeaderCollision is returned when a caller-supplied header would
// collide with one the engine computes itself (e.g. a hand-set Range
// header on a Download that also specifies Start/End). The original
// Python implementation treats this as a hard error rather than silently
// overwriting the caller's value.
type ErrHeaderCollision struct {
	Header string
}

func (e *ErrHeaderCollision) Error() string {
	return fmt.Sprintf("caller-supplied header %q collides with an engine-managed header", e.Header)
}
