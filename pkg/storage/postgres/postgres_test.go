package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/storage"
	"github.com/datafrage-dev/datafrage/pkg/transport"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("datafrage_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func makeTestResult(id string, createdAt int64) *api.QueryResponse {
	return &api.QueryResponse{
		ID:     id,
		Object: "query",
		Status: api.QueryStatusSucceeded,
		Query:  "Average length of stay by readmission status",
		Resolutions: []api.Resolution{
			{Span: "length of stay", Column: "time_in_hospital"},
			{Span: "readmission status", Column: "readmitted"},
		},
		Blocks: []api.Block{
			{Type: api.BlockTypeTable, Table: &api.Table{
				Columns: []string{"status", "avg_stay"},
				Rows:    [][]string{{"not readmitted", "2.6667"}, {"readmitted within 30 days", "6"}},
			}},
		},
		Attempts:  1,
		CreatedAt: createdAt,
	}
}

func TestPostgres_SaveAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	resp := makeTestResult(fmt.Sprintf("qry_pg_%d", time.Now().UnixNano()), time.Now().Unix())
	if err := store.SaveQuery(ctx, resp); err != nil {
		t.Fatalf("SaveQuery failed: %v", err)
	}

	got, err := store.GetQuery(ctx, resp.ID)
	if err != nil {
		t.Fatalf("GetQuery failed: %v", err)
	}
	if got.ID != resp.ID || got.Status != api.QueryStatusSucceeded {
		t.Errorf("got = %+v", got)
	}
	if len(got.Resolutions) != 2 {
		t.Errorf("resolutions = %+v", got.Resolutions)
	}
	if len(got.Blocks) != 1 || got.Blocks[0].Table == nil ||
		got.Blocks[0].Table.Rows[0][0] != "not readmitted" {
		t.Errorf("blocks = %+v", got.Blocks)
	}
	if got.Error != nil {
		t.Errorf("succeeded result must carry no error, got %+v", got.Error)
	}
}

func TestPostgres_FailedResultRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	resp := makeTestResult(fmt.Sprintf("qry_pg_fail_%d", time.Now().UnixNano()), time.Now().Unix())
	resp.Status = api.QueryStatusFailed
	resp.Blocks = nil
	resp.Attempts = 3
	resp.Error = api.NewNameMismatchError(`column "los" is not in the working dataset`, `df.col("los");`)
	if err := store.SaveQuery(ctx, resp); err != nil {
		t.Fatalf("SaveQuery failed: %v", err)
	}

	got, err := store.GetQuery(ctx, resp.ID)
	if err != nil {
		t.Fatalf("GetQuery failed: %v", err)
	}
	if got.Error == nil || got.Error.Kind != api.ErrorKindNameMismatch {
		t.Errorf("error = %+v", got.Error)
	}
	if got.Error.Fragment != `df.col("los");` {
		t.Errorf("fragment = %q", got.Error.Fragment)
	}
	if got.Attempts != 3 {
		t.Errorf("attempts = %d", got.Attempts)
	}
}

func TestPostgres_GetNotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.GetQuery(context.Background(), "qry_nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_Delete(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	resp := makeTestResult(fmt.Sprintf("qry_pg_del_%d", time.Now().UnixNano()), time.Now().Unix())
	store.SaveQuery(ctx, resp)

	if err := store.DeleteQuery(ctx, resp.ID); err != nil {
		t.Fatalf("DeleteQuery failed: %v", err)
	}
	if _, err := store.GetQuery(ctx, resp.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteQuery(ctx, resp.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestPostgres_DuplicateSave(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	resp := makeTestResult(fmt.Sprintf("qry_pg_dup_%d", time.Now().UnixNano()), time.Now().Unix())
	store.SaveQuery(ctx, resp)

	if err := store.SaveQuery(ctx, resp); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestPostgres_ListPagination(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	base := time.Now().UnixNano()
	for i := 1; i <= 3; i++ {
		r := makeTestResult(fmt.Sprintf("qry_pg_list_%d_%d", base, i), int64(1000+i))
		if err := store.SaveQuery(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	page, err := store.ListQueries(ctx, transport.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListQueries failed: %v", err)
	}
	if len(page.Data) != 2 || !page.HasMore {
		t.Fatalf("page = %d items, hasMore=%v", len(page.Data), page.HasMore)
	}
	// Newest first.
	if page.Data[0].CreatedAt < page.Data[1].CreatedAt {
		t.Errorf("expected descending order, got %d then %d", page.Data[0].CreatedAt, page.Data[1].CreatedAt)
	}

	page2, err := store.ListQueries(ctx, transport.ListOptions{Limit: 2, After: page.LastID})
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.Data) != 1 || page2.HasMore {
		t.Errorf("second page = %d items, hasMore=%v", len(page2.Data), page2.HasMore)
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
