package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/cloudxfer/gcsmedia/mediaerr"
	"github.com/cloudxfer/gcsmedia/mlog"
	"github.com/cloudxfer/gcsmedia/rangeio"
	"github.com/cloudxfer/gcsmedia/rest"
	"github.com/cloudxfer/gcsmedia/transport"
)

// MinChunkSize is the smallest (and the required multiple of) chunk size
// a ResumableUpload will accept: 256 KiB, the GCS resumable protocol's
// own chunk-size granularity.
const MinChunkSize = 256 * 1024

// ResumableUpload is the richest upload entity: a session-based upload
// that survives interruption via Recover, modeled on the teacher's b2
// largeUpload chunking loop generalized to GCS's initiate/PUT-chunk/308
// protocol (as implemented, for the official client, by
// gensupport.ResumableUpload's doUploadRequest/statusResumeIncomplete).
type ResumableUpload struct {
	Base

	ChunkSize int64

	ContentType  string
	TotalBytes   *int64
	StreamFinal  bool
	ResumableURL string
	BytesUploaded int64
	Invalid      bool

	stream io.ReadSeeker
}

// NewResumableUpload validates chunkSize (must be a positive multiple of
// MinChunkSize) and builds a ResumableUpload in its pre-initiation state.
func NewResumableUpload(uploadURL string, chunkSize int64, headers map[string][]string) (*ResumableUpload, error) {
	if chunkSize <= 0 || chunkSize%MinChunkSize != 0 {
		return nil, mediaerr.NewInvalidState("NewResumableUpload", "chunk_size must be a positive multiple of 256 KiB")
	}
	return &ResumableUpload{
		Base:      Base{UploadURL: uploadURL, Headers: headers},
		ChunkSize: chunkSize,
	}, nil
}

func (r *ResumableUpload) streamPosition() (int64, error) {
	return r.stream.Seek(0, io.SeekCurrent)
}

// Initiate POSTs metadata and records the server-assigned resumable
// session URL.
func (r *ResumableUpload) Initiate(ctx context.Context, tr transport.Transport, stream io.ReadSeeker, metadata interface{}, contentType string, totalBytes *int64, streamFinal bool) (*transport.Response, error) {
	if r.ResumableURL != "" {
		return nil, mediaerr.NewInvalidState("Initiate", "resumable upload already initiated")
	}
	pos, err := stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if pos != 0 {
		return nil, mediaerr.NewInvalidState("Initiate", "stream must be at position 0 before initiate")
	}

	var effectiveTotal *int64
	if streamFinal {
		size, err := stream.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, err
		}
		if _, err := stream.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		effectiveTotal = &size
	} else {
		effectiveTotal = totalBytes
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	r.Headers = ensureHeaders(r.Headers)
	r.Headers.Set("Content-Type", "application/json; charset=UTF-8")
	r.Headers.Set("X-Upload-Content-Type", contentType)
	if effectiveTotal != nil {
		r.Headers.Set("X-Upload-Content-Length", fmt.Sprintf("%d", *effectiveTotal))
	} else {
		r.Headers.Set("X-Upload-Content-Length", "*")
	}

	reqURL, err := rest.MergeQuery(r.UploadURL, url.Values{"uploadType": {"resumable"}})
	if err != nil {
		return nil, err
	}

	opts := &rest.Opts{
		Method:        "POST",
		URL:           reqURL,
		Headers:       r.Headers,
		Body:          bytes.NewReader(metadataJSON),
		ContentLength: int64(len(metadataJSON)),
	}
	resp, err := r.doWithRetry(ctx, tr, opts)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		cerr := transport.ClassifyError(r.UploadURL, resp)
		if cerr == nil {
			cerr = mediaerr.NewInvalidResponse(r.UploadURL, nil, "resumable initiate did not return 200")
		}
		return resp, cerr
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return resp, mediaerr.NewInvalidResponse(r.UploadURL, nil, "resumable initiate response missing Location")
	}
	resolved, err := rest.ResolveLocation(r.UploadURL, location)
	if err != nil {
		return resp, mediaerr.NewInvalidResponse(r.UploadURL, nil, "resumable initiate Location header is not a valid URL")
	}
	r.ResumableURL = resolved
	r.stream = stream
	r.ContentType = contentType
	r.TotalBytes = effectiveTotal
	r.StreamFinal = streamFinal
	return resp, nil
}

// contentRangeFor computes the Content-Range header for a chunk of n bytes
// starting at a, including the zero-byte edge where the declared total
// collapses to "bytes */<t>" (a stream that turned out empty once
// StreamFinal forced a length probe).
func contentRangeFor(a, n, chunkSize int64, total *int64) string {
	if n == 0 {
		t := a
		if total != nil {
			t = *total
		}
		return fmt.Sprintf("bytes */%d", t)
	}
	b := a + n - 1
	if total != nil {
		return rangeio.FormatContentRange(a, b, total)
	}
	if n == chunkSize {
		return rangeio.FormatContentRange(a, b, nil)
	}
	declared := a + n
	return rangeio.FormatContentRange(a, b, &declared)
}

// TransmitNextChunk reads up to ChunkSize bytes from the stream and PUTs
// them with the computed Content-Range. timeout, in seconds, overrides
// the request's default connect+read timeout pair when positive.
func (r *ResumableUpload) TransmitNextChunk(ctx context.Context, tr transport.Transport, timeout int64) (*transport.Response, error) {
	if r.ResumableURL == "" {
		return nil, mediaerr.NewInvalidState("TransmitNextChunk", "upload has not been initiated")
	}
	if r.Finished {
		return nil, mediaerr.NewInvalidState("TransmitNextChunk", "upload already finished")
	}
	if r.Invalid {
		return nil, mediaerr.NewInvalidState("TransmitNextChunk", "upload is invalid; call Recover first")
	}
	pos, err := r.streamPosition()
	if err != nil {
		return nil, err
	}
	if pos != r.BytesUploaded {
		return nil, mediaerr.NewInvalidState("TransmitNextChunk", "stream position disagrees with bytes_uploaded")
	}

	buf := make([]byte, r.ChunkSize)
	n, err := io.ReadFull(r.stream, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	data := buf[:n]

	contentRange := contentRangeFor(r.BytesUploaded, int64(n), r.ChunkSize, r.TotalBytes)

	headers := ensureHeaders(nil)
	headers.Set("Content-Range", contentRange)
	headers.Set("Content-Type", r.ContentType)

	opts := &rest.Opts{
		Method:        "PUT",
		URL:           r.ResumableURL,
		Headers:       headers,
		Body:          bytes.NewReader(data),
		ContentLength: int64(len(data)),
	}
	if timeout > 0 {
		opts.Timeout = time.Duration(timeout) * time.Second
	}
	resp, err := r.doWithRetry(ctx, tr, opts)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case 200, 201:
		if r.TotalBytes == nil {
			t := r.BytesUploaded + int64(n)
			r.TotalBytes = &t
		}
		r.BytesUploaded = *r.TotalBytes
		r.Finished = true
		return resp, nil
	case 308:
		rangeHeader := resp.Header.Get("Range")
		if rangeHeader == "" {
			r.Invalid = true
			return resp, mediaerr.NewInvalidResponse(r.ResumableURL, nil, "308 response missing Range header")
		}
		accepted, err := rangeio.ParseAcceptedRange(r.ResumableURL, rangeHeader)
		if err != nil {
			r.Invalid = true
			return resp, err
		}
		r.BytesUploaded = accepted
		return resp, nil
	default:
		r.Invalid = true
		cerr := transport.ClassifyError(r.ResumableURL, resp)
		if cerr == nil {
			cerr = mediaerr.NewInvalidResponse(r.ResumableURL, nil, "unexpected status for resumable chunk")
		}
		return resp, cerr
	}
}

// Recover queries the server for its accepted-byte position after an
// Invalid transition, re-aligning the local stream.
func (r *ResumableUpload) Recover(ctx context.Context, tr transport.Transport) (*transport.Response, error) {
	if !r.Invalid {
		return nil, mediaerr.NewInvalidState("Recover", "upload is not invalid")
	}

	headers := ensureHeaders(nil)
	headers.Set("Content-Range", rangeio.FormatUnknownRange())

	opts := &rest.Opts{
		Method:        "PUT",
		URL:           r.ResumableURL,
		Headers:       headers,
		Body:          bytes.NewReader(nil),
		ContentLength: 0,
	}
	resp, err := r.doWithRetry(ctx, tr, opts)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 308 {
		return resp, mediaerr.NewInvalidResponse(r.ResumableURL, nil, "recover did not return 308")
	}

	bytesUploaded := int64(0)
	if rangeHeader := resp.Header.Get("Range"); rangeHeader != "" {
		accepted, err := rangeio.ParseAcceptedRange(r.ResumableURL, rangeHeader)
		if err != nil {
			return resp, err
		}
		bytesUploaded = accepted
	}
	r.BytesUploaded = bytesUploaded
	if _, err := r.stream.Seek(bytesUploaded, io.SeekStart); err != nil {
		return resp, err
	}
	r.Invalid = false
	mlog.Debugf(r.ResumableURL, "resumable upload recovered at byte %d", bytesUploaded)
	return resp, nil
}
