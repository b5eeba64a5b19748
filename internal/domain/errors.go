package domain

import "errors"

// Domain errors represent error conditions in the perfship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyStarted is returned when Start() is called twice. A collector
	// covers exactly one page load and is not restartable.
	ErrAlreadyStarted = errors.New("perfship: collector already started")

	// ErrNotRunning is returned when Stop() is called on a collector that never started.
	ErrNotRunning = errors.New("perfship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("perfship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("perfship: invalid configuration")

	// ErrUnsupported is returned when the host exposes no timing capability.
	// Callers degrade to an empty source instead of failing.
	ErrUnsupported = errors.New("perfship: timing observation unsupported")

	// ErrEmptyPackage reports a package with no resources; such packages are
	// never sent.
	ErrEmptyPackage = errors.New("perfship: empty stat package")
)
