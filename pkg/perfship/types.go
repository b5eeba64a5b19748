package perfship

import (
	"github.com/bft-labs/perfship/internal/domain"
	"github.com/bft-labs/perfship/internal/hostconfig"
	"github.com/bft-labs/perfship/internal/ports"
	"github.com/bft-labs/perfship/pkg/log"
)

// Re-exported so embedders can implement the host side without importing
// internal packages.
type (
	// TimingEntry is one resource or navigation timing record.
	TimingEntry = domain.TimingEntry

	// EntryKind selects resource or navigation entries.
	EntryKind = domain.EntryKind

	// StatPackage is the delivered payload.
	StatPackage = domain.StatPackage

	// ConnectionInfo carries Network Information API style hints.
	ConnectionInfo = domain.ConnectionInfo

	// TimingSource supplies buffered timing entries. Implementations may also
	// provide ClearResourceTimings() and Observe to push entries.
	TimingSource = ports.TimingSource

	// NetworkInfo supplies connection-quality hints.
	NetworkInfo = ports.NetworkInfo

	// Beacon queues payloads for non-blocking delivery.
	Beacon = ports.Beacon

	// HTTPClient is satisfied by *http.Client.
	HTTPClient = ports.HTTPClient

	// AttributeSource supplies host configuration attributes.
	AttributeSource = ports.AttributeSource

	// Attributes is a map-backed AttributeSource.
	Attributes = hostconfig.Attributes

	// Logger is the structured logger interface from pkg/log.
	Logger = log.Logger
)

// Errors returned by the public API.
var (
	ErrAlreadyStarted  = domain.ErrAlreadyStarted
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
)
