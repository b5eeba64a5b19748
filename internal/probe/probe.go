// Package probe issues the synthetic cold-name request: a GET to a random,
// never-before-seen subdomain of a collected host, so that its timing entry
// carries a full DNS resolution.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/bft-labs/perfship/internal/ports"
)

// Target returns the probe URL for the first usable prefix, e.g.
// "https://3f1c...e2.cdn.example.com/" for the prefix "cdn.example.com".
// It reports false when no prefix names a host.
func Target(prefixes []string) (string, bool) {
	return target(prefixes, uuid.NewString)
}

func target(prefixes []string, newID func() string) (string, bool) {
	for _, p := range prefixes {
		host := hostOf(p)
		if host == "" {
			continue
		}
		return "https://" + newID() + "." + host + "/", true
	}
	return "", false
}

func hostOf(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	if !strings.Contains(prefix, "://") {
		prefix = "https://" + prefix
	}
	u, err := url.Parse(prefix)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Prober implements ports.Prober with an HTTP client, normally one whose
// transport records timings.
type Prober struct {
	client ports.HTTPClient
}

// New creates a Prober.
func New(client ports.HTTPClient) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return &Prober{client: client}
}

// Probe requests url and discards the response. A resolution failure is the
// common outcome for a random name and is returned only for logging.
func (p *Prober) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	return nil
}
