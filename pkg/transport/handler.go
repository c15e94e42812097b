package transport

import (
	"context"

	"github.com/datafrage-dev/datafrage/pkg/api"
)

// QueryHandler runs one natural-language query end to end: resolve,
// generate code, execute, render. The query ID is assigned by the
// transport layer before processing starts so in-flight work can be
// addressed (and cancelled) by ID; the handler must use it as the
// response ID.
type QueryHandler interface {
	HandleQuery(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error)
}

// QueryHandlerFunc is an adapter that allows using an ordinary function
// as a QueryHandler.
type QueryHandlerFunc func(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error)

// HandleQuery calls f(ctx, id, req).
func (f QueryHandlerFunc) HandleQuery(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error) {
	return f(ctx, id, req)
}

// ListOptions controls pagination, filtering, and ordering for list
// operations.
type ListOptions struct {
	After  string // Cursor: return items after this ID.
	Limit  int    // Maximum number of items to return (default 20, max 100).
	Status string // Filter by terminal status ("succeeded" or "failed").
	Order  string // Sort order: "asc" or "desc" (default "desc").
}

// QueryList holds a paginated list of stored query results.
type QueryList struct {
	Object  string               `json:"object"`
	Data    []*api.QueryResponse `json:"data"`
	HasMore bool                 `json:"has_more"`
	FirstID string               `json:"first_id,omitempty"`
	LastID  string               `json:"last_id,omitempty"`
}

// ResultStore handles persistence, retrieval, and deletion of processed
// query results. It is only available in deployments with persistence
// configured.
type ResultStore interface {
	// SaveQuery persists a processed query result.
	SaveQuery(ctx context.Context, resp *api.QueryResponse) error

	// GetQuery retrieves a result by ID. Returns storage.ErrNotFound if
	// the result does not exist.
	GetQuery(ctx context.Context, id string) (*api.QueryResponse, error)

	// DeleteQuery removes a result by ID. Returns storage.ErrNotFound if
	// the result does not exist.
	DeleteQuery(ctx context.Context, id string) error

	// ListQueries returns a paginated list of stored results, supporting
	// cursor-based pagination and ordering.
	ListQueries(ctx context.Context, opts ListOptions) (*QueryList, error)

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases database connections and resources.
	Close() error
}
