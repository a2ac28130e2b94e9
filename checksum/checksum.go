// Package checksum implements the engine's integrity-verification layer:
// stream-oriented MD5 and CRC32C accumulators behind a single
// "update+digest" capability, X-Goog-Hash header parsing, and the gzip
// subtlety where the server's advertised digest is computed over the
// compressed wire bytes even when the caller wants decoded content.
package checksum

import (
	"crypto/md5" // #nosec G501 -- required to match the server's advertised algorithm, not used for security
	"encoding/base64"
	"fmt"
	"hash"
	"hash/crc32"
	"strings"

	"github.com/cloudxfer/gcsmedia/mediaerr"
)

// Kind selects which algorithm a transfer verifies against.
type Kind int

const (
	// None disables verification; the Hasher it produces is a no-op so the
	// hot path never branches on "verification enabled?" per chunk.
	None Kind = iota
	MD5
	CRC32C
	// Auto defers the algorithm choice to whatever the response's
	// X-Goog-Hash header actually carries, preferring MD5 when both labels
	// are present (the original's download tests feed a header carrying
	// only one of the two even when the caller pinned neither).
	Auto
)

// label is the X-Goog-Hash key for each Kind.
func (k Kind) label() string {
	switch k {
	case MD5:
		return "md5"
	case CRC32C:
		return "crc32c"
	default:
		return ""
	}
}

// ParseKind maps a caller-supplied string to a Kind: the empty string
// means None, and values other than "md5", "crc32c", "auto", or "none"
// (case-insensitive) are an InvalidState/ArgumentError.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "md5":
		return MD5, nil
	case "crc32c":
		return CRC32C, nil
	case "none", "":
		return None, nil
	case "auto":
		return Auto, nil
	default:
		return None, mediaerr.NewInvalidState("ParseKind", fmt.Sprintf("unknown checksum algorithm %q", s))
	}
}

// Hasher is the uniform streaming-verification capability: Update is fed
// every chunk as it is written to the sink, and Sum returns the
// base64-encoded digest once all chunks have been fed.
type Hasher interface {
	Update(p []byte)
	Sum() string
}

// NewHasher returns the Hasher for kind. The None kind returns a
// zero-allocation no-op so disabling verification costs nothing per chunk.
func NewHasher(kind Kind) Hasher {
	switch kind {
	case MD5:
		return &hashWrapper{h: md5.New()}
	case CRC32C:
		return &hashWrapper{h: crc32.New(crc32.MakeTable(crc32.Castagnoli))}
	default:
		return nullHasher{}
	}
}

type hashWrapper struct{ h hash.Hash }

func (w *hashWrapper) Update(p []byte) { w.h.Write(p) } //nolint:errcheck // hash.Hash.Write never errors

func (w *hashWrapper) Sum() string {
	return base64.StdEncoding.EncodeToString(w.h.Sum(nil))
}

type nullHasher struct{}

func (nullHasher) Update([]byte) {}
func (nullHasher) Sum() string   { return "" }

// GoogHash is the parsed form of an X-Goog-Hash response header: a
// comma-separated list of "<label>=<base64>" pairs, at most one per label.
type GoogHash struct {
	pairs map[string]string
}

// ParseGoogHash parses header's "label=base64,label=base64" form. A label
// appearing more than once is an InvalidResponse ("ambiguous").
func ParseGoogHash(url, header string) (GoogHash, error) {
	gh := GoogHash{pairs: map[string]string{}}
	if header == "" {
		return gh, nil
	}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return GoogHash{}, mediaerr.NewInvalidResponse(url, nil, fmt.Sprintf("malformed X-Goog-Hash pair: %q", part))
		}
		label, value := strings.TrimSpace(part[:eq]), part[eq+1:]
		if _, dup := gh.pairs[label]; dup {
			return GoogHash{}, mediaerr.NewInvalidResponse(url, nil, fmt.Sprintf("ambiguous X-Goog-Hash: duplicate label %q", label))
		}
		gh.pairs[label] = value
	}
	return gh, nil
}

// Lookup returns the base64 digest for label and whether it was present.
func (gh GoogHash) Lookup(label string) (string, bool) {
	v, ok := gh.pairs[label]
	return v, ok
}

// Select returns the expected digest for kind. If kind is None, or the
// header didn't carry that label, ok is false and the caller should skip
// verification (logging an informational notice) rather than fail.
func (gh GoogHash) Select(kind Kind) (expected string, ok bool) {
	label := kind.label()
	if label == "" {
		return "", false
	}
	return gh.Lookup(label)
}

// Verifier ties a Hasher to the expected digest extracted from a response,
// comparing on Finish.
type Verifier struct {
	url      string
	kind     Kind
	hasher   Hasher
	expected string
	active   bool
}

// NewVerifier builds a Verifier for kind against the X-Goog-Hash header
// value googHash. When kind is None, or the header lacks that algorithm,
// the returned Verifier is inert: Feed costs nothing and Finish never
// fails (the caller is expected to have logged the skip already via
// mlog).
func NewVerifier(url string, kind Kind, gh GoogHash) *Verifier {
	if kind == Auto {
		kind = gh.negotiate()
	}
	v := &Verifier{url: url, kind: kind, hasher: NewHasher(kind)}
	if kind == None {
		return v
	}
	expected, ok := gh.Select(kind)
	if !ok {
		v.hasher = nullHasher{}
		return v
	}
	v.expected = expected
	v.active = true
	return v
}

// negotiate picks the algorithm an Auto verifier settles on: MD5 if the
// response advertised it, else CRC32C if that's the only one present, else
// None (verification skipped, logged and not treated as an error).
func (gh GoogHash) negotiate() Kind {
	if _, ok := gh.Lookup(MD5.label()); ok {
		return MD5
	}
	if _, ok := gh.Lookup(CRC32C.label()); ok {
		return CRC32C
	}
	return None
}

// Feed accumulates p into the running digest.
func (v *Verifier) Feed(p []byte) {
	v.hasher.Update(p)
}

// Finish compares the accumulated digest against the expected value. It is
// a no-op success when verification was never active (disabled, or the
// header lacked the requested label).
func (v *Verifier) Finish() error {
	if !v.active {
		return nil
	}
	computed := v.hasher.Sum()
	if computed != v.expected {
		return &mediaerr.DataCorruption{
			URL:       v.url,
			Algorithm: v.kind.label(),
			Expected:  v.expected,
			Computed:  computed,
		}
	}
	return nil
}
