// Package generator defines the external code-generation collaborator:
// the component that turns a resolved query into an executable analysis
// fragment for the sandbox.
//
// The orchestrator depends only on the CodeGenerator interface. The
// concrete Ollama implementation speaks the /api/generate protocol of a
// local model server; prompts describe the sandbox's df/stats/output
// surface and, on retries, carry the previous fragment and its
// classified error so the model can correct itself.
package generator
