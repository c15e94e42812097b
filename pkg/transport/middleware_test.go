package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/datafrage-dev/datafrage/pkg/api"
)

// appendHandler returns a QueryHandler that records its invocation name
// for ordering assertions.
func appendHandler(order *[]string, name string) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error) {
		*order = append(*order, name)
		return &api.QueryResponse{ID: id, Status: api.QueryStatusSucceeded}, nil
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next QueryHandler) QueryHandler {
			return QueryHandlerFunc(func(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error) {
				order = append(order, name+"-in")
				resp, err := next.HandleQuery(ctx, id, req)
				order = append(order, name+"-out")
				return resp, err
			})
		}
	}

	h := Chain(mw("a"), mw("b"))(appendHandler(&order, "handler"))
	if _, err := h.HandleQuery(context.Background(), "qry_x", &api.QueryRequest{}); err != nil {
		t.Fatal(err)
	}

	want := []string{"a-in", "b-in", "handler", "b-out", "a-out"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRequestIDAssignsWhenMissing(t *testing.T) {
	var seen string
	h := RequestID()(QueryHandlerFunc(func(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error) {
		seen = RequestIDFromContext(ctx)
		return &api.QueryResponse{}, nil
	}))

	if _, err := h.HandleQuery(context.Background(), "qry_x", &api.QueryRequest{}); err != nil {
		t.Fatal(err)
	}
	if seen == "" {
		t.Error("expected a generated request ID")
	}
}

func TestRequestIDPreservesExisting(t *testing.T) {
	var seen string
	h := RequestID()(QueryHandlerFunc(func(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error) {
		seen = RequestIDFromContext(ctx)
		return &api.QueryResponse{}, nil
	}))

	ctx := ContextWithRequestID(context.Background(), "upstream-id")
	if _, err := h.HandleQuery(ctx, "qry_x", &api.QueryRequest{}); err != nil {
		t.Fatal(err)
	}
	if seen != "upstream-id" {
		t.Errorf("request ID = %q, want upstream-id", seen)
	}
}

func TestRecoveryConvertsPanic(t *testing.T) {
	h := Recovery()(QueryHandlerFunc(func(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error) {
		panic("boom")
	}))

	resp, err := h.HandleQuery(context.Background(), "qry_x", &api.QueryRequest{})
	if resp != nil {
		t.Error("expected nil response after panic")
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindServer {
		t.Errorf("expected server_error, got %v", err)
	}
}

func TestLoggingEmitsStatusAndAttempts(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logging(logger)(QueryHandlerFunc(func(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error) {
		return &api.QueryResponse{ID: id, Status: api.QueryStatusSucceeded, Attempts: 2}, nil
	}))

	if _, err := h.HandleQuery(context.Background(), "qry_log", &api.QueryRequest{Query: "mean stay"}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"query completed", "qry_log", "status=succeeded", "attempts=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestLoggingEmitsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logging(logger)(QueryHandlerFunc(func(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error) {
		return nil, api.NewInvalidRequestError("query is required")
	}))

	if _, err := h.HandleQuery(context.Background(), "qry_bad", &api.QueryRequest{}); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), "query failed") {
		t.Errorf("log output missing failure entry: %s", buf.String())
	}
}
