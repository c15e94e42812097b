// Package api defines the core request/response types for the datafrage
// query service: query requests, execution results composed of ordered
// output blocks (text, table, figure), the error taxonomy used by the
// orchestrator's retry logic, and ID generation.
//
// The package has zero external dependencies (Go standard library only)
// and performs no I/O. All types serialize to the JSON wire format of the
// caller-facing surface.
package api
