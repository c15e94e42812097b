// Package semantic loads the semantic layer artifact and resolves
// natural-language query terms to concrete dataset columns and values.
//
// The artifact is a YAML document with two top-level mappings:
//
//	columns:        raw column name -> description, type tag, synonyms, missing count
//	value_mappings: raw column name -> raw category value -> human-readable label
//
// Declaration order in the document is preserved at load time and drives
// the resolver's deterministic tie-break between synonym candidates.
// The loaded Layer is immutable and safe for concurrent use.
package semantic
