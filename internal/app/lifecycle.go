package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/pkg/log"
)

// ShutdownTimeout bounds how long Stop waits for in-flight deliveries.
const ShutdownTimeout = 10 * time.Second

// State represents the lifecycle state of a collector.
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateFlushed
	StateStopped
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

// Lifecycle manages the state machine for a collector. A collector covers one
// page load: once it has left StateIdle it can never collect again.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       log.Logger
	eventEmitter EventEmitter
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// NewLifecycle creates a new lifecycle manager.
func NewLifecycle(logger log.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateIdle,
		logger:       log.OrNoop(logger),
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to transition to a new state.
// Returns an error if the transition is not valid.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	if err := validTransition(oldState, newState); err != nil {
		l.mu.Unlock()
		return err
	}

	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Debug("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}

func validTransition(from, to State) error {
	if to == StateCollecting {
		if from == StateIdle {
			return nil
		}
		return domain.ErrAlreadyStarted
	}

	switch from {
	case StateCollecting:
		if to == StateFlushed || to == StateFailed || to == StateStopped {
			return nil
		}
	case StateFlushed, StateFailed:
		if to == StateStopped {
			return nil
		}
	}
	return domain.ErrNotRunning
}

// CanStart returns true if Start() can be called.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateIdle
}

// CanStop returns true if Stop() can be called.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateCollecting || l.state == StateFlushed || l.state == StateFailed
}

// SetCancel stores the cancel function for graceful shutdown.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel triggers graceful shutdown.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// AddWorker increments the worker count.
func (l *Lifecycle) AddWorker() {
	l.wg.Add(1)
}

// WorkerDone decrements the worker count.
func (l *Lifecycle) WorkerDone() {
	l.wg.Done()
}

// WaitWithTimeout waits for all workers to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, abandoning in-flight delivery",
			log.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
