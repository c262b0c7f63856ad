// Package internal documents the EventOps server internals.
//
// The internal tree is organized by responsibility:
// - api: routing, the authentication gate, handlers and middleware
// - domain: business logic for events, staff, equipment, accounts,
//   permissions and the change history
// - storage: PostgreSQL repositories and in-memory fakes
// - jobs: River workers, including the history retention sweep
// - app: service composition shared by the server and the CLI
// - auth, config, metrics, telemetry, sanitize: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
