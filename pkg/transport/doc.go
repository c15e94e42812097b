// Package transport defines the handler interfaces and middleware chain
// for the datafrage HTTP transport layer.
//
// The transport layer bridges external clients and the internal query
// orchestrator. It deserializes incoming requests into the core types
// defined in pkg/api, dispatches them for processing, and serializes
// query responses back to the client as JSON.
//
// # Handler Interfaces
//
// Two interfaces define the contract between the transport layer and
// the processing core:
//
//   - QueryHandler runs one natural-language query end to end and is
//     available in every deployment.
//   - ResultStore handles get, list, and delete operations for stored
//     query results, available only when persistence is configured.
//
// # Middleware
//
// The middleware chain wraps QueryHandler with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog. Custom middleware
// can be added for application-specific concerns.
package transport
