// Package memory provides an in-memory implementation of
// transport.ResultStore for testing and lightweight deployments.
// Results are stored in memory and lost when the process restarts.
// Optional LRU eviction limits memory usage.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/storage"
	"github.com/datafrage-dev/datafrage/pkg/transport"
)

// entry holds a stored result and its position in the eviction list.
type entry struct {
	resp    *api.QueryResponse
	lruElem *list.Element
}

// Store is an in-memory ResultStore with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently stored, back = oldest
	maxSize int        // 0 = unlimited
}

// Ensure Store implements transport.ResultStore at compile time.
var _ transport.ResultStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the oldest entry is evicted when the
// limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// SaveQuery persists a result in memory.
func (s *Store) SaveQuery(ctx context.Context, resp *api.QueryResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[resp.ID]; exists {
		return storage.ErrConflict
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(resp.ID)
	s.entries[resp.ID] = &entry{resp: resp, lruElem: elem}
	return nil
}

// GetQuery retrieves a result by ID. Returns ErrNotFound if the result
// does not exist.
func (s *Store) GetQuery(ctx context.Context, id string) (*api.QueryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e.resp, nil
}

// DeleteQuery removes a result by ID.
func (s *Store) DeleteQuery(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.lruList.Remove(e.lruElem)
	delete(s.entries, id)
	return nil
}

// ListQueries returns a paginated list of stored results, optionally
// filtered by terminal status, with cursor-based pagination.
func (s *Store) ListQueries(ctx context.Context, opts transport.ListOptions) (*transport.QueryList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*api.QueryResponse
	for _, e := range s.entries {
		if opts.Status != "" && string(e.resp.Status) != opts.Status {
			continue
		}
		matches = append(matches, e.resp)
	}

	// Sort by created_at. Default is desc (newest first); IDs break ties
	// so pagination is stable.
	asc := opts.Order == "asc"
	sort.Slice(matches, func(i, j int) bool {
		if asc {
			if matches[i].CreatedAt != matches[j].CreatedAt {
				return matches[i].CreatedAt < matches[j].CreatedAt
			}
			return matches[i].ID < matches[j].ID
		}
		if matches[i].CreatedAt != matches[j].CreatedAt {
			return matches[i].CreatedAt > matches[j].CreatedAt
		}
		return matches[i].ID > matches[j].ID
	})

	if opts.After != "" {
		idx := -1
		for i, r := range matches {
			if r.ID == opts.After {
				idx = i
				break
			}
		}
		if idx >= 0 {
			matches = matches[idx+1:]
		} else {
			matches = nil
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
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

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the oldest entry. Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}
