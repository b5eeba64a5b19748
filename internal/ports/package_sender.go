package ports

import (
	"context"

	"github.com/bft-labs/perfship/internal/domain"
)

// PackageSender delivers a stat package to the collection endpoint.
// Delivery is fire-and-forget: failures are absorbed by the implementation.
type PackageSender interface {
	Send(ctx context.Context, url string, pkg domain.StatPackage)
}

// Prober issues one synthetic request so the host records its timing.
type Prober interface {
	Probe(ctx context.Context, url string) error
}
