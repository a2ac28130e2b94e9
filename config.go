// Package gcsmedia holds the engine's shared configuration and the
// oauth2-authorized HTTP client construction, grounded on the teacher's
// googlecloudstorage backend's getServiceAccountClient/oauth2.NewClient
// pattern (backend/googlecloudstorage/googlecloudstorage.go). The
// download, upload, checksum, pacer, and transport packages each take
// their inputs as plain fields or constructor args; Config is the single
// place a caller assembles sensible defaults for all of them at once and
// gets back entities already wired with that pacer and chunk size. The
// request timeout is not stored on those entities; TimeoutSeconds renders
// it for the caller to pass to each Consume/ConsumeNextChunk/
// TransmitNextChunk call.
package gcsmedia

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/cloudxfer/gcsmedia/download"
	"github.com/cloudxfer/gcsmedia/pacer"
	"github.com/cloudxfer/gcsmedia/transport"
	"github.com/cloudxfer/gcsmedia/upload"
)

// Config bundles the engine's tunables: there is no flag/env binding — a
// caller builds one directly or via DefaultConfig.
type Config struct {
	// RequestTimeout bounds a single HTTP round trip (rest.Opts.Timeout).
	// Zero means the transport's own connect+read default applies.
	RequestTimeout time.Duration

	// MaxCumulativeRetry bounds the total backoff sleep across retries of
	// a single operation.
	MaxCumulativeRetry time.Duration

	// DefaultChunkSize is the chunk size new ChunkedDownload/Resumable
	// uploads use unless the caller overrides it.
	DefaultChunkSize int64
}

// DefaultChunkSize of 8 MiB matches the teacher's googlecloudstorage
// backend's chunk size default, a reasonable balance between request
// overhead and retry cost on a single chunk.
const DefaultChunkSize = 8 * 1024 * 1024

// DefaultConfig returns a Config with the engine's baked-in defaults: no
// per-request timeout, pacer's 600s cumulative retry ceiling, and an 8
// MiB chunk size.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:     0,
		MaxCumulativeRetry: pacer.DefaultMaxCumulativeRetry,
		DefaultChunkSize:   DefaultChunkSize,
	}
}

// Pacer builds a pacer.Pacer honoring c.MaxCumulativeRetry, falling back
// to pacer.New()'s own default if c is the zero Config.
func (c Config) Pacer() *pacer.Pacer {
	if c.MaxCumulativeRetry <= 0 {
		return pacer.New()
	}
	return pacer.New(pacer.MaxCumulativeRetry(c.MaxCumulativeRetry))
}

// chunkSize returns c.DefaultChunkSize, falling back to DefaultChunkSize
// for the zero Config.
func (c Config) chunkSize() int64 {
	if c.DefaultChunkSize <= 0 {
		return DefaultChunkSize
	}
	return c.DefaultChunkSize
}

// TimeoutSeconds renders c.RequestTimeout in the whole-seconds form the
// download/upload Consume/TransmitNextChunk calls accept; 0 leaves the
// transport's own default in effect.
func (c Config) TimeoutSeconds() int64 {
	return int64(c.RequestTimeout / time.Second)
}

// NewAuthenticatedClient builds an *http.Client that attaches ts's tokens
// to every outgoing request, the same shape the teacher's
// getServiceAccountClient produces via oauth2.NewClient(ctx,
// conf.TokenSource(ctx)) before handing the client to the transport
// layer.
func NewAuthenticatedClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	return oauth2.NewClient(ctx, ts)
}

// NewHTTPTransport builds the blocking transport adapter over client (see
// NewAuthenticatedClient). client may be nil to use http.DefaultClient.
func (c Config) NewHTTPTransport(client *http.Client) *transport.HTTPTransport {
	return transport.NewHTTPTransport(client)
}

// NewContextTransport builds the cooperative transport adapter over
// client.
func (c Config) NewContextTransport(client *http.Client) *transport.ContextTransport {
	return transport.NewContextTransport(client)
}

// NewDownload builds a Download against mediaURL with its retry pacer
// taken from c.
func (c Config) NewDownload(mediaURL string, headers map[string][]string) *download.Download {
	d := download.NewDownload(mediaURL, headers)
	d.Retry = c.Pacer()
	return d
}

// NewChunkedDownload builds a ChunkedDownload against mediaURL, using
// c.DefaultChunkSize (or DefaultChunkSize if unset) and c's retry pacer.
func (c Config) NewChunkedDownload(mediaURL string, start, end *int64, headers map[string][]string) (*download.ChunkedDownload, error) {
	cd, err := download.NewChunkedDownload(mediaURL, c.chunkSize(), start, end, headers)
	if err != nil {
		return nil, err
	}
	cd.Retry = c.Pacer()
	return cd, nil
}

// NewSimpleUpload builds a SimpleUpload against uploadURL with its retry
// pacer taken from c.
func (c Config) NewSimpleUpload(uploadURL string, headers map[string][]string) *upload.SimpleUpload {
	s := upload.NewSimpleUpload(uploadURL, headers)
	s.Retry = c.Pacer()
	return s
}

// NewMultipartUpload builds a MultipartUpload against uploadURL with its
// retry pacer taken from c.
func (c Config) NewMultipartUpload(uploadURL string, headers map[string][]string) *upload.MultipartUpload {
	m := upload.NewMultipartUpload(uploadURL, headers)
	m.Retry = c.Pacer()
	return m
}

// NewResumableUpload builds a ResumableUpload against uploadURL, using
// c.DefaultChunkSize (or DefaultChunkSize if unset), rounded up to the
// next MinChunkSize multiple, and c's retry pacer.
func (c Config) NewResumableUpload(uploadURL string, headers map[string][]string) (*upload.ResumableUpload, error) {
	size := c.chunkSize()
	if rem := size % upload.MinChunkSize; rem != 0 {
		size += upload.MinChunkSize - rem
	}
	r, err := upload.NewResumableUpload(uploadURL, size, headers)
	if err != nil {
		return nil, err
	}
	r.Retry = c.Pacer()
	return r, nil
}
