package download

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudxfer/gcsmedia/checksum"
	"github.com/cloudxfer/gcsmedia/pacer"
	"github.com/cloudxfer/gcsmedia/transport/faketransport"
)

// fixedIntnSource replays a fixed sequence of Intn(1000) results, letting a
// test drive pacer's jitter deterministically.
type fixedIntnSource struct {
	values []int
	i      int
}

func (f *fixedIntnSource) Intn(int) int {
	v := f.values[f.i]
	f.i++
	return v
}

// TestDownload_Retry exercises a retry sequence: four responses 503,
// 429, 503, 200 with random-int stream [125, 625, 375] produce three
// sleeps of 1.125s, 2.625s, 4.375s before the download succeeds.
func TestDownload_Retry(t *testing.T) {
	tr := &faketransport.Transport{Responses: []faketransport.ScriptedResponse{
		{StatusCode: 503},
		{StatusCode: 429},
		{StatusCode: 503},
		{StatusCode: 206, Body: "ok"},
	}}
	var sink bytes.Buffer
	d := NewDownload("https://example.com/obj", nil)
	d.Sink = &sink
	d.Retry = pacer.New(pacer.RandSource(&fixedIntnSource{values: []int{125, 625, 375}}))
	var sleeps []time.Duration
	d.Sleep = func(dur time.Duration) { sleeps = append(sleeps, dur) }

	resp, err := d.Consume(context.Background(), tr, 0)
	require.NoError(t, err)
	assert.Equal(t, 206, resp.StatusCode)
	assert.Equal(t, "ok", sink.String())
	require.Len(t, sleeps, 3)
	assert.Equal(t, 1125*time.Millisecond, sleeps[0])
	assert.Equal(t, 2625*time.Millisecond, sleeps[1])
	assert.Equal(t, 4375*time.Millisecond, sleeps[2])
}

func i64(n int64) *int64 { return &n }

// TestDownload_Consume covers the basic ranged GET.
func TestDownload_Consume(t *testing.T) {
	tr := &faketransport.Transport{Responses: []faketransport.ScriptedResponse{
		{StatusCode: 206, Body: "up down charlie brown"},
	}}
	var sink bytes.Buffer
	d := NewDownload("https://example.com/obj?alt=media", nil)
	d.Start, d.End = i64(0), i64(65536)
	d.Sink = &sink

	resp, err := d.Consume(context.Background(), tr, 0)
	require.NoError(t, err)
	assert.Equal(t, 206, resp.StatusCode)
	assert.Equal(t, "up down charlie brown", sink.String())
	assert.True(t, d.Finished)
	assert.Equal(t, "bytes=0-65536", tr.LastRequest().Headers.Get("Range"))
}

// TestDownload_ChecksumMismatch covers a checksum mismatch.
func TestDownload_ChecksumMismatch(t *testing.T) {
	h := make(http.Header)
	h.Set("X-Goog-Hash", "md5=anVzdCBub3QgdGhpcyAxLA==")
	tr := &faketransport.Transport{Responses: []faketransport.ScriptedResponse{
		{StatusCode: 200, Header: h, Body: "zero zeroniner tango"},
	}}
	var sink bytes.Buffer
	d := NewDownload("https://example.com/obj", nil)
	d.ChecksumKind = checksum.MD5
	d.Sink = &sink

	_, err := d.Consume(context.Background(), tr, 0)
	require.Error(t, err)
	assert.True(t, d.Finished)
	assert.Equal(t, "", d.Headers.Get("Range"))
}

func TestDownload_UnexpectedStatus(t *testing.T) {
	tr := &faketransport.Transport{Responses: []faketransport.ScriptedResponse{
		{StatusCode: 404, Body: ""},
	}}
	d := NewDownload("https://example.com/obj", nil)
	_, err := d.Consume(context.Background(), tr, 0)
	assert.Error(t, err)
	assert.True(t, d.Finished)
}

func TestDownload_AlreadyFinished(t *testing.T) {
	d := NewDownload("u", nil)
	d.Finished = true
	_, err := d.Consume(context.Background(), &faketransport.Transport{}, 0)
	assert.Error(t, err)
}
