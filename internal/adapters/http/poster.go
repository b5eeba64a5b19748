package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/klauspost/compress/gzip"

	"github.com/bft-labs/perfship/internal/ports"
)

// maxDrain bounds how much of an ignored response body is read so the
// connection can be reused.
const maxDrain = 4 << 10

// Poster issues the fallback POST of a serialized stat package.
type Poster struct {
	client   ports.HTTPClient
	compress bool
}

// NewPoster creates a Poster. With compress set, bodies are gzip-encoded and
// sent with Content-Encoding: gzip.
func NewPoster(client ports.HTTPClient, compress bool) *Poster {
	if client == nil {
		client = http.DefaultClient
	}
	return &Poster{client: client, compress: compress}
}

// Post sends body to url. The response status is reported as an error when it
// is not 2xx; the body is drained and discarded either way.
func (p *Poster) Post(ctx context.Context, url, contentType string, body []byte) error {
	var reader io.Reader = bytes.NewReader(body)
	if p.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return fmt.Errorf("gzip body: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("gzip body: %w", err)
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if p.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}
