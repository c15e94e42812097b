// Package postgres provides a PostgreSQL implementation of
// transport.ResultStore. It uses pgx/v5 for connection pooling and
// JSONB for structured block storage.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/storage"
	"github.com/datafrage-dev/datafrage/pkg/transport"
)

// Store is a PostgreSQL-backed ResultStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements transport.ResultStore at compile time.
var _ transport.ResultStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveQuery persists a processed query result.
func (s *Store) SaveQuery(ctx context.Context, resp *api.QueryResponse) error {
	resolutionsJSON, err := json.Marshal(resp.Resolutions)
	if err != nil {
		return fmt.Errorf("marshaling resolutions: %w", err)
	}

	blocksJSON, err := json.Marshal(resp.Blocks)
	if err != nil {
		return fmt.Errorf("marshaling blocks: %w", err)
	}

	var errorJSON []byte
	if resp.Error != nil {
		errorJSON, err = json.Marshal(resp.Error)
		if err != nil {
			return fmt.Errorf("marshaling error: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO queries (
			id, status, query, resolutions, blocks, attempts, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		resp.ID, string(resp.Status), resp.Query,
		resolutionsJSON, blocksJSON, resp.Attempts,
		nullJSON(errorJSON), resp.CreatedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting query: %w", err)
	}

	return nil
}

// GetQuery retrieves a result by ID.
func (s *Store) GetQuery(ctx context.Context, id string) (*api.QueryResponse, error) {
	var resp api.QueryResponse
	var status string
	var resolutionsJSON, blocksJSON []byte
	var errorJSON *[]byte

	err := s.pool.QueryRow(ctx, `
		SELECT id, status, query, resolutions, blocks, attempts, error, created_at
		FROM queries
		WHERE id = $1
	`, id).Scan(
		&resp.ID, &status, &resp.Query,
		&resolutionsJSON, &blocksJSON, &resp.Attempts,
		&errorJSON, &resp.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying result: %w", err)
	}

	resp.Object = "query"
	resp.Status = api.QueryStatus(status)

	if err := json.Unmarshal(resolutionsJSON, &resp.Resolutions); err != nil {
		return nil, fmt.Errorf("unmarshaling resolutions: %w", err)
	}
	if err := json.Unmarshal(blocksJSON, &resp.Blocks); err != nil {
		return nil, fmt.Errorf("unmarshaling blocks: %w", err)
	}
	if errorJSON != nil {
		var apiErr api.Error
		if err := json.Unmarshal(*errorJSON, &apiErr); err == nil {
			resp.Error = &apiErr
		}
	}

	return &resp, nil
}

// DeleteQuery removes a result by ID.
func (s *Store) DeleteQuery(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM queries WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting query: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListQueries returns a paginated list of stored results with optional
// status filtering, cursor-based pagination, and ordering.
func (s *Store) ListQueries(ctx context.Context, opts transport.ListOptions) (*transport.QueryList, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	asc := opts.Order == "asc"
	order, cmp := "DESC", "<"
	if asc {
		order, cmp = "ASC", ">"
	}

	query := `
		SELECT id, status, query, resolutions, blocks, attempts, error, created_at
		FROM queries
		WHERE ($1 = '' OR status = $1)
	`
	args := []any{opts.Status}

	if opts.After != "" {
		query += fmt.Sprintf(
			" AND (created_at, id) %s (SELECT created_at, id FROM queries WHERE id = $2)", cmp)
		args = append(args, opts.After)
	}

	// One extra row decides has_more.
	query += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT %d", order, order, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}
	defer rows.Close()

	var matches []*api.QueryResponse
	for rows.Next() {
		var resp api.QueryResponse
		var status string
		var resolutionsJSON, blocksJSON []byte
		var errorJSON *[]byte

		if err := rows.Scan(
			&resp.ID, &status, &resp.Query,
			&resolutionsJSON, &blocksJSON, &resp.Attempts,
			&errorJSON, &resp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}

		resp.Object = "query"
		resp.Status = api.QueryStatus(status)
		if err := json.Unmarshal(resolutionsJSON, &resp.Resolutions); err != nil {
			return nil, fmt.Errorf("unmarshaling resolutions: %w", err)
		}
		if err := json.Unmarshal(blocksJSON, &resp.Blocks); err != nil {
			return nil, fmt.Errorf("unmarshaling blocks: %w", err)
		}
		if errorJSON != nil {
			var apiErr api.Error
			if err := json.Unmarshal(*errorJSON, &apiErr); err == nil {
				resp.Error = &apiErr
			}
		}
		matches = append(matches, &resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}

	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	result := &transport.QueryList{
		Object:  "list",
		Data:    matches,
		HasMore: hasMore,
	}
	if len(matches) > 0 {
		result.FirstID = matches[0].ID
		result.LastID = matches[len(matches)-1].ID
	}
	if result.Data == nil {
		result.Data = []*api.QueryResponse{}
	}
	return result, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
