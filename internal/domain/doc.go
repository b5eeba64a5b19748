// Package domain contains the core domain entities and value objects for perfship.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, file system, logging) and
// contains only pure business logic.
//
// # Entities
//
//   - [TimingEntry]: A resource or navigation timing record read from the host
//   - [StatPackage]: The wire-ready aggregate shipped to the collection endpoint
//   - [ConnectionInfo]: Ambient network-quality hints reported by the host
//
// # Design Principles
//
// Timing entries are owned by the host and treated as read-only. A StatPackage
// only ever carries integer milliseconds; rounding happens in internal/stats.
package domain
