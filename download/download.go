package download

import (
	"context"
	"io"
	"time"

	"github.com/cloudxfer/gcsmedia/checksum"
	"github.com/cloudxfer/gcsmedia/mediaerr"
	"github.com/cloudxfer/gcsmedia/mlog"
	"github.com/cloudxfer/gcsmedia/rangeio"
	"github.com/cloudxfer/gcsmedia/rest"
	"github.com/cloudxfer/gcsmedia/transport"
)

// Download is the one-shot ranged download entity: states
// pending -> in_flight -> finished, a single terminal response.
type Download struct {
	Transfer

	// Sink receives the response body, if set. A nil Sink is valid when
	// the caller only wants the response (e.g. a HEAD-like probe via
	// Range: bytes=0-0).
	Sink io.Writer

	// ChecksumKind selects MD5, CRC32C, or None.
	ChecksumKind checksum.Kind

	// Raw requests verification (and, when applicable, sink content) over
	// the still-compressed wire bytes rather than gzip-decoded content.
	Raw bool
}

// NewDownload builds a Download against mediaURL. headers may be nil; the
// engine allocates and mutates it in place.
func NewDownload(mediaURL string, headers map[string][]string) *Download {
	return &Download{Transfer: Transfer{MediaURL: mediaURL, Headers: headers}}
}

// Consume performs the single GET and drives the download to completion.
// Once the GET has been issued, Finished becomes true whether the call
// succeeds or fails; a Download object supports exactly one attempt. A
// Range header collision is reported before any request is sent and
// leaves Finished false. timeout, in seconds,
// overrides the request's default connect+read timeout pair when positive.
func (d *Download) Consume(ctx context.Context, tr transport.Transport, timeout int64) (*transport.Response, error) {
	if d.Finished {
		return nil, mediaerr.NewInvalidState("Consume", "download already finished")
	}

	if d.Headers == nil {
		d.Headers = make(map[string][]string)
	}
	opts := &rest.Opts{Method: "GET", URL: d.MediaURL, Headers: d.Headers}
	h := opts.Headers
	if rng := rangeio.FormatRange(d.Start, d.End); rng != "" {
		if err := rest.SetManaged(h, "Range", rng); err != nil {
			return nil, err
		}
	}
	if timeout > 0 {
		opts.Timeout = time.Duration(timeout) * time.Second
	}

	resp, err := d.doWithRetry(ctx, tr, opts)
	if err != nil {
		d.Finished = true
		return nil, err
	}

	if resp.StatusCode != 200 && resp.StatusCode != 206 {
		d.Finished = true
		err := transport.ClassifyError(d.MediaURL, resp)
		resp.Body.Close()
		if err == nil {
			err = mediaerr.NewInvalidResponse(d.MediaURL, nil, "unexpected status for download")
		}
		return resp, err
	}

	gh, err := checksum.ParseGoogHash(d.MediaURL, resp.Header.Get("X-Goog-Hash"))
	if err != nil {
		d.Finished = true
		return resp, err
	}
	if d.ChecksumKind != checksum.None {
		_, ok := gh.Select(d.ChecksumKind)
		if d.ChecksumKind == checksum.Auto {
			_, md5OK := gh.Select(checksum.MD5)
			_, crcOK := gh.Select(checksum.CRC32C)
			ok = md5OK || crcOK
		}
		if !ok {
			mlog.Infof(d.MediaURL, "checksum verification skipped: X-Goog-Hash missing requested algorithm")
		}
	}
	verifier := checksum.NewVerifier(d.MediaURL, d.ChecksumKind, gh)

	if d.Sink != nil {
		if err := d.streamBody(resp, verifier); err != nil {
			d.Finished = true
			return resp, err
		}
	}

	if err := verifier.Finish(); err != nil {
		d.Headers.Del("Range")
		d.Finished = true
		return resp, err
	}

	d.Finished = true
	return resp, nil
}

// streamBody copies resp.Body into d.Sink in SingleGetChunkSize slices,
// installing a gzip decoder ahead of the sink (and feeding the verifier
// from the compressed side) when the response is gzip-encoded and the
// caller wants decoded content.
func (d *Download) streamBody(resp *transport.Response, verifier *checksum.Verifier) error {
	defer resp.Body.Close()

	if !d.Raw && resp.Header.Get("Content-Encoding") == "gzip" {
		decoded, err := checksum.WrapGzip(resp.Body, verifier)
		if err != nil {
			return mediaerr.NewInvalidResponse(d.MediaURL, nil, "failed to open gzip decoder: "+err.Error())
		}
		_, err = io.Copy(d.Sink, decoded)
		return err
	}

	buf := make([]byte, SingleGetChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			verifier.Feed(buf[:n])
			if _, werr := d.Sink.Write(buf[:n]); werr != nil {
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
