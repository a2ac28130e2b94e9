package rest

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetManaged(t *testing.T) {
	h := make(http.Header)
	require.NoError(t, SetManaged(h, "Range", "bytes=0-9"))
	assert.Equal(t, "bytes=0-9", h.Get("Range"))

	// same value twice is fine (idempotent)
	require.NoError(t, SetManaged(h, "Range", "bytes=0-9"))

	// conflicting value is a collision
	err := SetManaged(h, "Range", "bytes=10-19")
	assert.Error(t, err)
}

func TestMergeQuery(t *testing.T) {
	merged, err := MergeQuery("https://storage.googleapis.com/upload/b/bucket/o?uploadType=resumable",
		url.Values{"uploadType": {"media"}})
	require.NoError(t, err)
	u, err := url.Parse(merged)
	require.NoError(t, err)
	assert.Equal(t, "resumable", u.Query().Get("uploadType"))
}

func TestEffectiveTimeout(t *testing.T) {
	o := Opts{}
	assert.Equal(t, DefaultConnectTimeout+DefaultReadTimeout, o.EffectiveTimeout())

	o.Timeout = 5
	assert.EqualValues(t, 5, o.EffectiveTimeout())
}

func TestEnsureHeaders(t *testing.T) {
	o := Opts{}
	h := o.EnsureHeaders()
	h.Set("X-Test", "1")
	assert.Equal(t, "1", o.Headers.Get("X-Test"))
}
