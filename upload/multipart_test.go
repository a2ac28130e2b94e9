package upload

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudxfer/gcsmedia/transport/faketransport"
)

// TestMultipartUpload_Transmit exercises the multipart body layout with a fixed
// boundary so the body layout can be asserted byte-for-byte.
func TestMultipartUpload_Transmit(t *testing.T) {
	tr := &faketransport.Transport{Responses: []faketransport.ScriptedResponse{
		{StatusCode: 200, Body: `{"name":"obj"}`},
	}}
	m := NewMultipartUpload("https://example.com/upload?uploadType=multipart", nil)
	m.Boundary = "==4=="

	metadata := map[string]string{"Hey": "You", "Guys": "90909"}
	resp, err := m.Transmit(context.Background(), tr, []byte("Mock data here and there."), metadata, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, m.Finished)

	assert.Equal(t, `multipart/related; boundary="==4=="`, tr.LastRequest().Headers.Get("Content-Type"))

	body, err := io.ReadAll(tr.LastRequest().Body)
	require.NoError(t, err)
	expected := "--==4==\r\n" +
		"content-type: application/json; charset=UTF-8\r\n" +
		"\r\n" +
		`{"Guys":"90909","Hey":"You"}` + "\r\n" +
		"--==4==\r\n" +
		"content-type: text/plain\r\n" +
		"\r\n" +
		"Mock data here and there.\r\n" +
		"--==4==--"
	assert.Equal(t, expected, string(body))
}

func TestMultipartUpload_RejectsNonBytePayload(t *testing.T) {
	tr := &faketransport.Transport{}
	m := NewMultipartUpload("https://example.com/upload", nil)

	_, err := m.Transmit(context.Background(), tr, "not bytes", map[string]string{}, "text/plain")
	require.Error(t, err)
	assert.Empty(t, tr.Requests)
}

func TestMultipartUpload_NonOKStatus(t *testing.T) {
	tr := &faketransport.Transport{Responses: []faketransport.ScriptedResponse{
		{StatusCode: 403, Body: "forbidden"},
	}}
	m := NewMultipartUpload("https://example.com/upload", nil)
	m.Boundary = "==1=="

	_, err := m.Transmit(context.Background(), tr, []byte("x"), map[string]string{}, "text/plain")
	require.Error(t, err)
	assert.True(t, m.Finished)
}
