package download

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudxfer/gcsmedia/transport/faketransport"
)

func TestChunkedDownload_SingleChunkWhenChunkSizeExceedsTotal(t *testing.T) {
	h := make(http.Header)
	h.Set("Content-Range", "bytes 0-9/10")
	tr := &faketransport.Transport{Responses: []faketransport.ScriptedResponse{
		{StatusCode: 200, Header: h, Body: "0123456789"},
	}}
	var sink bytes.Buffer
	cd, err := NewChunkedDownload("https://example.com/obj", 1024, nil, nil, nil)
	require.NoError(t, err)
	cd.Sink = &sink

	_, err = cd.ConsumeNextChunk(context.Background(), tr, 0)
	require.NoError(t, err)
	assert.True(t, cd.Finished)
	assert.EqualValues(t, 10, cd.BytesDownloaded)
	assert.Equal(t, "0123456789", sink.String())
}

func TestChunkedDownload_416OnFirstChunk(t *testing.T) {
	h := make(http.Header)
	h.Set("Content-Range", "bytes */0")
	tr := &faketransport.Transport{Responses: []faketransport.ScriptedResponse{
		{StatusCode: 416, Header: h},
	}}
	var sink bytes.Buffer
	cd, err := NewChunkedDownload("https://example.com/obj", 1024, nil, nil, nil)
	require.NoError(t, err)
	cd.Sink = &sink

	_, err = cd.ConsumeNextChunk(context.Background(), tr, 0)
	require.NoError(t, err)
	assert.True(t, cd.Finished)
	require.NotNil(t, cd.TotalBytes)
	assert.EqualValues(t, 0, *cd.TotalBytes)
	assert.Equal(t, "", sink.String())
}

func TestChunkedDownload_MultiChunk(t *testing.T) {
	h1 := make(http.Header)
	h1.Set("Content-Range", "bytes 0-4/10")
	h2 := make(http.Header)
	h2.Set("Content-Range", "bytes 5-9/10")
	tr := &faketransport.Transport{Responses: []faketransport.ScriptedResponse{
		{StatusCode: 206, Header: h1, Body: "01234"},
		{StatusCode: 206, Header: h2, Body: "56789"},
	}}
	var sink bytes.Buffer
	cd, err := NewChunkedDownload("https://example.com/obj", 5, nil, nil, nil)
	require.NoError(t, err)
	cd.Sink = &sink

	_, err = cd.ConsumeNextChunk(context.Background(), tr, 0)
	require.NoError(t, err)
	assert.False(t, cd.Finished)
	assert.EqualValues(t, 5, cd.BytesDownloaded)

	_, err = cd.ConsumeNextChunk(context.Background(), tr, 0)
	require.NoError(t, err)
	assert.True(t, cd.Finished)
	assert.EqualValues(t, 10, cd.BytesDownloaded)
	assert.Equal(t, "0123456789", sink.String())
}

func TestChunkedDownload_PreconditionFinished(t *testing.T) {
	cd, err := NewChunkedDownload("u", 10, nil, nil, nil)
	require.NoError(t, err)
	cd.Finished = true
	_, err = cd.ConsumeNextChunk(context.Background(), &faketransport.Transport{}, 0)
	assert.Error(t, err)
}

func TestNewChunkedDownload_InvalidChunkSize(t *testing.T) {
	_, err := NewChunkedDownload("u", 0, nil, nil, nil)
	assert.Error(t, err)
}
