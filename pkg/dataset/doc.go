// Package dataset holds the raw dataset snapshot and the preprocessing
// pipeline that derives an execution-ready working copy per request.
//
// The Snapshot is loaded once per session, never mutated, and safely
// shared across concurrent requests. Preprocess always produces a new
// Working frame: missing values imputed by a per-type policy, optional
// categorical encoding (one-hot or ordinal), and an audit trail that
// maps encoded column names back to their semantic-layer labels. Every
// column in the modeling view is guaranteed numeric.
package dataset
