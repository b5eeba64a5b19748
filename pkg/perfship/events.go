package perfship

import (
	"time"

	"github.com/bft-labs/perfship/internal/app"
)

// State is the lifecycle state of a Collector.
type State int

const (
	// StateIdle means Start has not been called.
	StateIdle State = iota

	// StateCollecting means entries are being gathered.
	StateCollecting

	// StateFlushed means the package was delivered or skipped as empty.
	StateFlushed

	// StateStopped means Stop completed.
	StateStopped

	// StateFailed means the host misbehaved and collection was abandoned.
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCollecting:
		return "Collecting"
	case StateFlushed:
		return "Flushed"
	case StateStopped:
		return "Stopped"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// FlushEvent reports the single delivery decision of a run.
type FlushEvent struct {
	// Reason is "count", "timeout", "stop" or "snapshot".
	Reason string

	// Entries is the number of matching entries accumulated.
	Entries int

	// Resources is the number of resources in the package after
	// deduplication.
	Resources int

	// Sent is false when the package was empty and therefore skipped.
	Sent bool

	// Duration is the time from Start to the flush.
	Duration time.Duration
}

// EventHandler receives collector events. Calls are synchronous; keep them
// short.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnFlush(event FlushEvent)
}

// BaseEventHandler provides no-op implementations for embedding.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnFlush(FlushEvent)             {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnFlush(event app.FlushEvent) {
	if e.handler == nil {
		return
	}
	e.handler.OnFlush(FlushEvent{
		Reason:    string(event.Reason),
		Entries:   event.Entries,
		Resources: event.Resources,
		Sent:      event.Sent,
		Duration:  event.Duration,
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateIdle:
		return StateIdle
	case app.StateCollecting:
		return StateCollecting
	case app.StateFlushed:
		return StateFlushed
	case app.StateStopped:
		return StateStopped
	case app.StateFailed:
		return StateFailed
	default:
		return StateIdle
	}
}
