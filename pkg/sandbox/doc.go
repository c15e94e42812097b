// Package sandbox executes externally generated analysis code against a
// request-local working dataset inside an isolated JavaScript namespace.
//
// Each execution gets a fresh goja VM that exposes only the working
// frame (as "df"), a small statistics surface ("stats"), and output
// capture functions (print, table, plot). No file-system, network, or
// process capability is reachable from inside the namespace; eval and
// the Function constructor are disabled, the call stack is bounded, and
// the random source is deterministic. The VM is discarded after each
// execution, so no state leaks between requests.
//
// Execution is bounded by a wall-clock timeout enforced through the
// VM's interrupt mechanism; context cancellation interrupts a running
// execution the same way. Failures are classified into the error kinds
// the orchestrator uses to decide retry eligibility.
package sandbox
