// Package rest builds the HTTP requests the download and upload state
// machines hand to a transport.Transport, following the teacher's lib/rest
// "Opts" pattern for assembling method/URL/headers/body in one place.
package rest

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/cloudxfer/gcsmedia/mediaerr"
)

// DefaultConnectTimeout and DefaultReadTimeout are the paired defaults
// assigned to every request absent an explicit timeout.
const (
	DefaultConnectTimeout = 61 * time.Second
	DefaultReadTimeout    = 60 * time.Second
)

// Opts describes a single HTTP request to be issued by a transport.Transport.
// Headers is the map sent with the request. The download requests and the
// simple, multipart and resumable-initiate uploads pass the transfer's own
// caller-owned header map, mutated in place rather than cloned per
// attempt; ResumableUpload's chunk and recovery PUTs build a fresh map.
type Opts struct {
	Method        string
	URL           string
	Headers       http.Header
	Body          io.Reader
	ContentLength int64 // -1 if unknown
	Timeout       time.Duration
}

// EnsureHeaders returns o.Headers, allocating an empty map if the caller
// passed nil, so downstream code can always call Set/Get without a nil
// check — matching the engine's "mutate the caller's map in place" policy.
func (o *Opts) EnsureHeaders() http.Header {
	if o.Headers == nil {
		o.Headers = make(http.Header)
	}
	return o.Headers
}

// SetManaged sets a header the engine computes itself (e.g. Range,
// Content-Range), returning ErrHeaderCollision if the caller already set a
// conflicting value for that header, rejecting rather than silently
// overwriting a value the caller set by hand.
func SetManaged(h http.Header, key, value string) error {
	if existing := h.Get(key); existing != "" && existing != value {
		return &mediaerr.ErrHeaderCollision{Header: key}
	}
	h.Set(key, value)
	return nil
}

// WithCorrelationID stamps a random request-correlation header, mirroring
// the pattern the official Go client library's gensupport.ResumableUpload
// uses (X-Goog-Gcs-Idempotency-Token) for log correlation across retries.
func WithCorrelationID(h http.Header) string {
	id := uuid.NewString()
	h.Set("X-Goog-Gcs-Idempotency-Token", id)
	return id
}

// MergeQuery merges params into rawURL's existing query string without
// duplicating any parameter the caller already set by hand — so a caller
// who already quoted uploadType (or any other param) into the URL wins
// over the engine's own default.
func MergeQuery(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	existing := u.Query()
	for k, vs := range params {
		if existing.Get(k) != "" {
			continue
		}
		for _, v := range vs {
			existing.Add(k, v)
		}
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}

// EffectiveTimeout returns o.Timeout if set, otherwise the default
// connect+read pair summed.
func (o *Opts) EffectiveTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultConnectTimeout + DefaultReadTimeout
}

// ResolveLocation resolves a response Location header against base,
// following the teacher's lib/rest URLJoin precedent of tolerating both
// absolute and relative forms: a resumable initiate response may return
// either shape for the session URL.
func ResolveLocation(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}
