package rangeio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(n int64) *int64 { return &n }

func TestFormatRange(t *testing.T) {
	for _, test := range []struct {
		name  string
		start *int64
		end   *int64
		want  string
	}{
		{"neither", nil, nil, ""},
		{"both", i64(0), i64(65536), "bytes=0-65536"},
		{"only end", nil, i64(499), "bytes=0-499"},
		{"only start nonneg", i64(500), nil, "bytes=500-"},
		{"only start suffix", i64(-1000), nil, "bytes=-1000"},
	} {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, FormatRange(test.start, test.end))
		})
	}
}

func TestParseContentRange(t *testing.T) {
	cr, err := ParseContentRange("https://example", "bytes 0-999/1000")
	require.NoError(t, err)
	assert.Equal(t, ContentRange{Start: 0, End: 999, Total: 1000}, cr)

	// case-insensitive leading token
	cr, err = ParseContentRange("https://example", "Bytes 0-0/1")
	require.NoError(t, err)
	assert.Equal(t, ContentRange{Start: 0, End: 0, Total: 1}, cr)
}

func TestParseContentRange_RoundTrip(t *testing.T) {
	cr, err := ParseContentRange("u", "bytes 10-20/100")
	require.NoError(t, err)
	assert.Equal(t, "bytes 10-20/100", cr.String())
}

func TestParseContentRange_Invalid(t *testing.T) {
	for _, bad := range []string{
		"",
		"bytes 10-20",
		"bytes 20-10/100", // a > b
		"bytes 10-20/15",  // b >= c
		"chunks 10-20/100",
	} {
		_, err := ParseContentRange("u", bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatContentRange(t *testing.T) {
	assert.Equal(t, "bytes 0-9/31", FormatContentRange(0, 9, i64(31)))
	assert.Equal(t, "bytes 0-9/*", FormatContentRange(0, 9, nil))
}

func TestParseAcceptedRange(t *testing.T) {
	k, err := ParseAcceptedRange("u", "bytes=0-55555")
	require.NoError(t, err)
	assert.EqualValues(t, 55556, k)

	_, err = ParseAcceptedRange("u", "nonsense")
	assert.Error(t, err)
}
