package download

import (
	"context"
	"io"
	"time"

	"github.com/cloudxfer/gcsmedia/checksum"
	"github.com/cloudxfer/gcsmedia/mediaerr"
	"github.com/cloudxfer/gcsmedia/rangeio"
	"github.com/cloudxfer/gcsmedia/rest"
	"github.com/cloudxfer/gcsmedia/transport"
)

// ChunkedDownload sequentially downloads an object in fixed-size ranged
// GETs: states pending -> active (<->active) -> finished, with a sideband
// Invalid flag a caller may need to recover from with a fresh
// ChunkedDownload.
type ChunkedDownload struct {
	Transfer

	ChunkSize       int64
	BytesDownloaded int64
	TotalBytes      *int64
	Invalid         bool

	Sink         io.Writer
	ChecksumKind checksum.Kind
	Raw          bool

	verifier *checksum.Verifier
}

// NewChunkedDownload builds a ChunkedDownload. chunkSize and start must be
// positive/non-negative respectively.
func NewChunkedDownload(mediaURL string, chunkSize int64, start *int64, end *int64, headers map[string][]string) (*ChunkedDownload, error) {
	if chunkSize <= 0 {
		return nil, mediaerr.NewInvalidState("NewChunkedDownload", "chunk_size must be positive")
	}
	if start != nil && *start < 0 {
		return nil, mediaerr.NewInvalidState("NewChunkedDownload", "start must be >= 0")
	}
	return &ChunkedDownload{
		Transfer:  Transfer{MediaURL: mediaURL, Start: start, End: end, Headers: headers},
		ChunkSize: chunkSize,
	}, nil
}

func (cd *ChunkedDownload) effectiveStart() int64 {
	if cd.Start == nil {
		return 0
	}
	return *cd.Start
}

// ConsumeNextChunk requests and applies the next range of bytes. It
// returns the raw transport response for diagnostics alongside any error.
// timeout, in seconds, overrides the request's default connect+read
// timeout pair when positive.
func (cd *ChunkedDownload) ConsumeNextChunk(ctx context.Context, tr transport.Transport, timeout int64) (*transport.Response, error) {
	if cd.Finished {
		return nil, mediaerr.NewInvalidState("ConsumeNextChunk", "chunked download already finished")
	}

	base := cd.effectiveStart()
	a := base + cd.BytesDownloaded
	b := a + cd.ChunkSize - 1
	if cd.End != nil && b > *cd.End {
		b = *cd.End
	}
	if cd.TotalBytes != nil && b > *cd.TotalBytes-1 {
		b = *cd.TotalBytes - 1
	}

	if cd.Headers == nil {
		cd.Headers = make(map[string][]string)
	}
	opts := &rest.Opts{Method: "GET", URL: cd.MediaURL, Headers: cd.Headers}
	h := opts.Headers
	startPtr, endPtr := a, b
	// After the first chunk, Range holds the value this download set for
	// the previous chunk; clear it so SetManaged only rejects a Range the
	// caller set by hand.
	if cd.BytesDownloaded > 0 {
		h.Del("Range")
	}
	if err := rest.SetManaged(h, "Range", rangeio.FormatRange(&startPtr, &endPtr)); err != nil {
		return nil, err
	}
	if timeout > 0 {
		opts.Timeout = time.Duration(timeout) * time.Second
	}

	resp, err := cd.doWithRetry(ctx, tr, opts)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case 416:
		return cd.handle416(resp)
	case 200, 206:
		return cd.handle2xx(resp)
	default:
		cd.Invalid = true
		err := transport.ClassifyError(cd.MediaURL, resp)
		resp.Body.Close()
		if err == nil {
			err = mediaerr.NewInvalidResponse(cd.MediaURL, nil, "unexpected status for chunked download")
		}
		return resp, err
	}
}

// handle416 treats a range-not-satisfiable response as a terminal,
// successful empty object: a fresh ChunkedDownload whose first request
// comes back 416 has nothing left to read, so it terminates rather than
// propagating an error.
func (cd *ChunkedDownload) handle416(resp *transport.Response) (*transport.Response, error) {
	defer resp.Body.Close()
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if parsed, err := rangeio.ParseContentRange(cd.MediaURL, cr); err == nil {
			total := parsed.Total
			cd.TotalBytes = &total
		}
	}
	if cd.TotalBytes == nil {
		zero := int64(0)
		cd.TotalBytes = &zero
	}
	cd.Finished = true
	return resp, nil
}

func (cd *ChunkedDownload) handle2xx(resp *transport.Response) (*transport.Response, error) {
	defer resp.Body.Close()

	cr := resp.Header.Get("Content-Range")
	if cr == "" {
		cd.Invalid = true
		return resp, mediaerr.NewInvalidResponse(cd.MediaURL, nil, "missing Content-Range on chunked response")
	}
	parsed, err := rangeio.ParseContentRange(cd.MediaURL, cr)
	if err != nil {
		cd.Invalid = true
		return resp, err
	}

	if cd.verifier == nil {
		gh, err := checksum.ParseGoogHash(cd.MediaURL, resp.Header.Get("X-Goog-Hash"))
		if err != nil {
			cd.Invalid = true
			return resp, err
		}
		cd.verifier = checksum.NewVerifier(cd.MediaURL, cd.ChecksumKind, gh)
	}

	if cd.Sink != nil {
		if err := cd.streamChunk(resp); err != nil {
			cd.Invalid = true
			return resp, err
		}
	}

	cd.BytesDownloaded += parsed.End - parsed.Start + 1

	if cd.TotalBytes == nil {
		total := parsed.Total
		cd.TotalBytes = &total
	} else if *cd.TotalBytes != parsed.Total {
		cd.Invalid = true
		return resp, mediaerr.NewInvalidResponse(cd.MediaURL, nil, "Content-Range total disagrees with earlier chunk")
	}

	reachedEnd := cd.End != nil && cd.BytesDownloaded-1+cd.effectiveStart() >= *cd.End
	if cd.BytesDownloaded == *cd.TotalBytes || reachedEnd {
		cd.Finished = true
		if err := cd.verifier.Finish(); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func (cd *ChunkedDownload) streamChunk(resp *transport.Response) error {
	if !cd.Raw && resp.Header.Get("Content-Encoding") == "gzip" {
		decoded, err := checksum.WrapGzip(resp.Body, cd.verifier)
		if err != nil {
			return mediaerr.NewInvalidResponse(cd.MediaURL, nil, "failed to open gzip decoder: "+err.Error())
		}
		_, err = io.Copy(cd.Sink, decoded)
		return err
	}
	buf := make([]byte, SingleGetChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			cd.verifier.Feed(buf[:n])
			if _, werr := cd.Sink.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
