package api

import "encoding/json"

// Encoding selects how categorical columns are expanded during
// preprocessing.
type Encoding string

const (
	EncodingNone    Encoding = "none"
	EncodingOneHot  Encoding = "one-hot"
	EncodingOrdinal Encoding = "ordinal"
)

// PreprocessOverrides carries optional caller overrides for the
// preprocessing pipeline. Nil fields fall back to the engine's policy
// (which may itself be decided from the query, e.g. modeling intent).
type PreprocessOverrides struct {
	ImputeMissing          *bool     `json:"impute_missing,omitempty"`
	EncodeCategoricals     *Encoding `json:"encode_categoricals,omitempty"`
	NumericOnlyForModeling *bool     `json:"numeric_only_for_modeling,omitempty"`
}

// QueryRequest is the caller-facing request surface: a natural-language
// query plus optional preprocessing overrides.
type QueryRequest struct {
	Query      string               `json:"query"`
	Preprocess *PreprocessOverrides `json:"preprocess,omitempty"`
}

// Resolution maps a recognized span of the query to a concrete dataset
// column and, when the span named a category label, the raw value.
type Resolution struct {
	Span   string `json:"span"`
	Column string `json:"column"`
	Value  string `json:"value,omitempty"`
}

// QueryStatus is the terminal status of a processed query.
type QueryStatus string

const (
	QueryStatusSucceeded QueryStatus = "succeeded"
	QueryStatusFailed    QueryStatus = "failed"
)

// BlockType tags an output block produced during execution.
type BlockType string

const (
	BlockTypeText   BlockType = "text"
	BlockTypeTable  BlockType = "table"
	BlockTypeFigure BlockType = "figure"
)

// Block is a single unit of captured output. Exactly one of Text, Table,
// or Figure is populated according to Type. Blocks appear in creation
// order and that order is stable through rendering.
type Block struct {
	Type   BlockType `json:"type"`
	Text   string    `json:"text,omitempty"`
	Table  *Table    `json:"table,omitempty"`
	Figure *Figure   `json:"figure,omitempty"`
}

// Table is a captured tabular result. Cells are strings on the wire;
// numeric formatting happens at capture time.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Figure is an opaque figure artifact captured during execution. The
// spec payload is whatever the generated code passed to plot(); it is
// never mutated after capture and is only written to disk when the
// caller explicitly asks for it.
type Figure struct {
	ID    string          `json:"id"`
	Kind  string          `json:"kind"`
	Title string          `json:"title,omitempty"`
	Spec  json.RawMessage `json:"spec,omitempty"`
}

// QueryResponse is the result of a processed query. On success Blocks
// holds the rendered output; on failure Error holds the structured
// error record and Blocks is empty. Attempts counts sandbox executions,
// including retries.
type QueryResponse struct {
	ID          string       `json:"id"`
	Object      string       `json:"object"`
	Status      QueryStatus  `json:"status"`
	Query       string       `json:"query"`
	Resolutions []Resolution `json:"resolutions,omitempty"`
	Blocks      []Block      `json:"blocks,omitempty"`
	Attempts    int          `json:"attempts"`
	Error       *Error       `json:"error,omitempty"`
	CreatedAt   int64        `json:"created_at"`
}

// ErrorResponse wraps an Error for JSON serialization as the top-level
// error body.
type ErrorResponse struct {
	Error *Error `json:"error"`
}
