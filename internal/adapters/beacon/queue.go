// Package beacon implements ports.Beacon: payloads are accepted without
// blocking and delivered later by a background worker.
package beacon

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/pkg/log"
)

// Defaults mirror the browser beacon quota.
const (
	DefaultQueueSize  = 16
	DefaultMaxPayload = 64 << 10
)

// Poster performs the actual delivery.
type Poster interface {
	Post(ctx context.Context, url, contentType string, body []byte) error
}

// QueueConfig configures a Queue.
type QueueConfig struct {
	// Size is the number of payloads that can wait for delivery.
	Size int

	// MaxPayload rejects larger bodies, as sendBeacon does.
	MaxPayload int
}

type item struct {
	url         string
	contentType string
	body        []byte
}

// Queue is a bounded in-memory beacon queue drained by one worker. Close
// delivers everything still queued, which is what lets a payload survive the
// end of the run that produced it.
type Queue struct {
	cfg    QueueConfig
	poster Poster
	logger log.Logger

	mu     sync.RWMutex
	closed bool
	items  chan item
	done   chan struct{}
}

// NewQueue creates a Queue and starts its worker.
func NewQueue(poster Poster, cfg QueueConfig, logger log.Logger) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = DefaultQueueSize
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = DefaultMaxPayload
	}
	q := &Queue{
		cfg:    cfg,
		poster: poster,
		logger: log.OrNoop(logger),
		items:  make(chan item, cfg.Size),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// SendBeacon queues body for delivery. It reports false when the queue is
// closed or full, or the payload exceeds the quota; the caller then falls back
// to its own request.
func (q *Queue) SendBeacon(url, contentType string, body []byte) bool {
	if len(body) > q.cfg.MaxPayload {
		return false
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}

	select {
	case q.items <- item{url: url, contentType: contentType, body: body}:
		return true
	default:
		return false
	}
}

// Close stops accepting payloads and waits until the queued ones are
// delivered or ctx is done.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain beacon queue: %w", domain.ErrShutdownTimeout)
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for it := range q.items {
		if err := q.poster.Post(context.Background(), it.url, it.contentType, it.body); err != nil {
			q.logger.Debug("beacon delivery failed", log.String("url", it.url), log.Err(err))
			continue
		}
		q.logger.Debug("beacon delivered", log.String("url", it.url), log.Int("bytes", len(it.body)))
	}
}

// Writer is a Beacon that prints payloads instead of sending them, one JSON
// document per line.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SendBeacon writes body followed by a newline.
func (w *Writer) SendBeacon(_, _ string, body []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(append(append([]byte(nil), body...), '\n')); err != nil {
		return false
	}
	return true
}
