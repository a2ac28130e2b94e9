package upload

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"

	"github.com/cloudxfer/gcsmedia/mediaerr"
	"github.com/cloudxfer/gcsmedia/rest"
	"github.com/cloudxfer/gcsmedia/transport"
)

// boundaryMax bounds the 19-digit decimal boundary token: a uniform
// random integer in [0, boundaryMax).
var boundaryMax = new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil)

// MultipartUpload carries a JSON metadata part and a media part in one
// multipart/related POST. It is stateless beyond Finished.
type MultipartUpload struct {
	Base

	// Boundary overrides the randomly generated boundary token; primarily
	// for tests that need an exact literal to assert the body layout
	// against. Left empty, Transmit generates one.
	Boundary string
}

// NewMultipartUpload builds a MultipartUpload against uploadURL.
func NewMultipartUpload(uploadURL string, headers map[string][]string) *MultipartUpload {
	return &MultipartUpload{Base: Base{UploadURL: uploadURL, Headers: headers}}
}

func randomBoundary() (string, error) {
	n, err := rand.Int(rand.Reader, boundaryMax)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("===============%019d==", n), nil
}

// Transmit assembles and posts the multipart/related body. data must be a
// []byte; any other dynamic type (e.g. a Go string, mirroring the
// original's rejection of str in favor of bytes) is an InvalidState error.
func (m *MultipartUpload) Transmit(ctx context.Context, tr transport.Transport, data interface{}, metadata interface{}, contentType string) (*transport.Response, error) {
	body, ok := data.([]byte)
	if !ok {
		return nil, mediaerr.NewInvalidState("Transmit", "multipart upload data must be a byte buffer")
	}

	boundary := m.Boundary
	if boundary == "" {
		b, err := randomBoundary()
		if err != nil {
			return nil, err
		}
		boundary = b
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	payload := buildMultipartBody(boundary, metadataJSON, body, contentType)

	m.Headers = ensureHeaders(m.Headers)
	m.Headers.Set("Content-Type", fmt.Sprintf("multipart/related; boundary=%q", boundary))

	reqURL, err := rest.MergeQuery(m.UploadURL, url.Values{"uploadType": {"multipart"}})
	if err != nil {
		return nil, err
	}

	opts := &rest.Opts{
		Method:        "POST",
		URL:           reqURL,
		Headers:       m.Headers,
		Body:          bytes.NewReader(payload),
		ContentLength: int64(len(payload)),
	}
	resp, err := m.doWithRetry(ctx, tr, opts)
	m.Finished = true
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		cerr := transport.ClassifyError(m.UploadURL, resp)
		if cerr == nil {
			cerr = mediaerr.NewInvalidResponse(m.UploadURL, nil, "multipart upload did not return 200")
		}
		return resp, cerr
	}
	return resp, nil
}

// buildMultipartBody assembles a multipart/related body with a JSON
// metadata part followed by the media part, CRLF line terminators
// throughout, matching the GCS JSON API's expected layout.
func buildMultipartBody(boundary string, metadataJSON, data []byte, contentType string) []byte {
	var buf []byte
	buf = append(buf, "--"...)
	buf = append(buf, boundary...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "content-type: application/json; charset=UTF-8\r\n"...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, metadataJSON...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "--"...)
	buf = append(buf, boundary...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "content-type: "...)
	buf = append(buf, contentType...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, data...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "--"...)
	buf = append(buf, boundary...)
	buf = append(buf, "--"...)
	return buf
}
