package ports

import "github.com/bft-labs/perfship/internal/domain"

// NetworkInfo reports the host's view of the current connection.
type NetworkInfo interface {
	// Connection returns the connection hints and whether any are available.
	Connection() (domain.ConnectionInfo, bool)
}
