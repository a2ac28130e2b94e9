package checksum

import (
	"bytes"
	"crypto/md5" //#nosec G501 -- test fixture, matching the production package's own justification
	"encoding/base64"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipCompress(t *testing.T, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(plain)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// TestWrapGzip feeds the verifier from the compressed side while the
// returned reader yields decoded bytes, matching the server's own
// checksum being computed over the wire (compressed) representation.
func TestWrapGzip(t *testing.T) {
	plain := []byte("the quick brown fox jumps over the lazy dog, repeatedly")
	compressed := gzipCompress(t, plain)

	sum := md5.Sum(compressed) //#nosec G401 -- matches the server's advertised algorithm
	expected := base64.StdEncoding.EncodeToString(sum[:])

	gh, err := ParseGoogHash("u", "md5="+expected)
	require.NoError(t, err)
	v := NewVerifier("u", MD5, gh)

	decoded, err := WrapGzip(bytes.NewReader(compressed), v)
	require.NoError(t, err)

	got, err := io.ReadAll(decoded)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
	assert.NoError(t, v.Finish())
}

// TestWrapGzip_ChecksumOverWireBytes confirms the verifier does not see
// decoded bytes: feeding it the expected digest of the plaintext instead
// of the compressed bytes fails verification.
func TestWrapGzip_ChecksumOverWireBytes(t *testing.T) {
	plain := []byte("some payload")
	compressed := gzipCompress(t, plain)

	sum := md5.Sum(plain) //#nosec G401 -- deliberately the wrong (decoded) digest for this test
	wrongExpected := base64.StdEncoding.EncodeToString(sum[:])

	gh, err := ParseGoogHash("u", "md5="+wrongExpected)
	require.NoError(t, err)
	v := NewVerifier("u", MD5, gh)

	decoded, err := WrapGzip(bytes.NewReader(compressed), v)
	require.NoError(t, err)
	_, err = io.ReadAll(decoded)
	require.NoError(t, err)

	assert.Error(t, v.Finish())
}
