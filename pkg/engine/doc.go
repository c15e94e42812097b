// Package engine implements the query orchestrator. The Engine struct
// implements transport.QueryHandler, driving one query through its
// state machine: resolve terms against the semantic layer, obtain code
// from the code-generation collaborator, prepare a fresh working
// dataset, execute in the sandbox, and render the capture. Recoverable
// execution errors loop back to code generation within a bounded retry
// budget; the failed fragment and its classified error travel with the
// regeneration request. Optional capabilities (result storage) use
// nil-safe composition for graceful degradation.
package engine
