package checksum

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// feedWriter adapts a Verifier's Feed to io.Writer so it can sit on the
// compressed side of an io.TeeReader.
type feedWriter struct{ v *Verifier }

func (w feedWriter) Write(p []byte) (int, error) {
	w.v.Feed(p)
	return len(p), nil
}

// WrapGzip installs a gzip decoder between wire (the raw, still-compressed
// HTTP body) and the sink: the server-side checksum is computed over
// compressed bytes, so the Verifier is fed from the compressed-input side
// of the decoder via io.TeeReader, while the returned reader yields decoded
// bytes for the sink to consume. Using klauspost/compress/gzip instead of
// the standard library's compress/gzip matches the teacher's go.mod
// preference for the faster drop-in.
func WrapGzip(wire io.Reader, v *Verifier) (io.Reader, error) {
	tee := io.TeeReader(wire, feedWriter{v: v})
	return gzip.NewReader(tee)
}
