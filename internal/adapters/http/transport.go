// Package http delivers stat packages to the collection endpoint.
package http

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/internal/ports"
	"github.com/bft-labs/perfship/pkg/log"
)

// ContentType is the media type of a serialized stat package.
const ContentType = "application/json"

// Transport implements ports.PackageSender. It prefers the beacon and falls
// back to an asynchronous POST whose outcome is only logged. There are no
// retries.
type Transport struct {
	beacon ports.Beacon
	poster *Poster
	logger log.Logger

	inflight sync.WaitGroup
}

// NewTransport creates a Transport. beacon may be nil.
func NewTransport(beacon ports.Beacon, poster *Poster, logger log.Logger) *Transport {
	if poster == nil {
		poster = NewPoster(nil, false)
	}
	return &Transport{
		beacon: beacon,
		poster: poster,
		logger: log.OrNoop(logger),
	}
}

// Send serializes pkg and hands it off. It never blocks on the network.
func (t *Transport) Send(ctx context.Context, url string, pkg domain.StatPackage) {
	if len(pkg.Resources) == 0 {
		t.logger.Debug("package not sent", log.String("url", url), log.Err(domain.ErrEmptyPackage))
		return
	}

	body, err := json.Marshal(pkg)
	if err != nil {
		t.logger.Debug("encode stat package", log.Err(err))
		return
	}

	if t.beacon != nil && t.beacon.SendBeacon(url, ContentType, body) {
		t.logger.Debug("package queued on beacon", log.Int("bytes", len(body)))
		return
	}

	// The POST must outlive a page (or run) that is being torn down.
	ctx = context.WithoutCancel(ctx)
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		if err := t.poster.Post(ctx, url, ContentType, body); err != nil {
			t.logger.Debug("fallback post failed", log.String("url", url), log.Err(err))
			return
		}
		t.logger.Debug("package posted", log.String("url", url), log.Int("bytes", len(body)))
	}()
}

// Wait blocks until fallback posts started by Send have finished or ctx is
// done.
func (t *Transport) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return domain.ErrShutdownTimeout
	}
}
