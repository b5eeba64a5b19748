// Package ports defines the interfaces (ports) that connect the application
// layer to the host environment and to infrastructure adapters.
//
// A browser page exposes its timing data through process-wide singletons
// (performance, navigator.connection, navigator.sendBeacon). perfship treats
// each of them as an injected, read-only collaborator so the pipeline can run
// against an instrumented Go HTTP client, an entry file, or test fakes.
//
// # Port Interfaces
//
//   - [TimingSource]: Snapshot access to buffered timing entries
//   - [TimingClearer]: Optional clear operation on the host buffer
//   - [TimingObserver]: Optional entry-arrival notifications
//   - [NetworkInfo]: Ambient connection-quality hints
//   - [Beacon]: Unload-safe, queued best-effort delivery
//   - [HTTPClient]: HTTP request abstraction for the fallback POST
//   - [PackageSender]: Fire-and-forget stat package delivery
//   - [Prober]: Synthetic cold-name request
//   - [AttributeSource]: Host-supplied configuration attributes
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them.
package ports
