package upload

import (
	"bytes"
	"context"
	"net/url"

	"github.com/cloudxfer/gcsmedia/mediaerr"
	"github.com/cloudxfer/gcsmedia/rest"
	"github.com/cloudxfer/gcsmedia/transport"
)

// SimpleUpload carries a whole object body in a single POST. It is
// stateless beyond Finished.
type SimpleUpload struct {
	Base
}

// NewSimpleUpload builds a SimpleUpload against uploadURL.
func NewSimpleUpload(uploadURL string, headers map[string][]string) *SimpleUpload {
	return &SimpleUpload{Base{UploadURL: uploadURL, Headers: headers}}
}

// Transmit performs the POST. Finished transitions to true regardless of
// outcome, since the caller always inspects the returned response; a
// non-200 status is still surfaced as an error for callers that want to
// fail fast.
func (s *SimpleUpload) Transmit(ctx context.Context, tr transport.Transport, data []byte, contentType string) (*transport.Response, error) {
	s.Headers = ensureHeaders(s.Headers)
	s.Headers.Set("Content-Type", contentType)

	reqURL, err := rest.MergeQuery(s.UploadURL, url.Values{"uploadType": {"media"}})
	if err != nil {
		return nil, err
	}

	opts := &rest.Opts{
		Method:        "POST",
		URL:           reqURL,
		Headers:       s.Headers,
		Body:          bytes.NewReader(data),
		ContentLength: int64(len(data)),
	}
	resp, err := s.doWithRetry(ctx, tr, opts)
	s.Finished = true
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		cerr := transport.ClassifyError(s.UploadURL, resp)
		if cerr == nil {
			cerr = mediaerr.NewInvalidResponse(s.UploadURL, nil, "simple upload did not return 200")
		}
		return resp, cerr
	}
	return resp, nil
}
