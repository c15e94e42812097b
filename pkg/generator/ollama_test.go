package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/semantic"
)

func testRequest() *Request {
	return &Request{
		Resolved: semantic.ResolvedQuery{Query: "mean length of stay"},
		Schema:   "time_in_hospital (numeric)",
		Columns:  []string{"time_in_hospital"},
	}
}

func ollamaStub(t *testing.T, handler http.HandlerFunc) *Ollama {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOllama(OllamaConfig{BaseURL: srv.URL, Model: "test-model"})
}

func TestGenerateCodeStripsFences(t *testing.T) {
	var gotModel string
	o := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		gotModel = req.Model
		if req.Stream {
			t.Error("stream must be disabled")
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Response: "```javascript\nprint(stats.mean(df.numeric(\"time_in_hospital\")));\n```",
		})
	})

	code, err := o.GenerateCode(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	want := `print(stats.mean(df.numeric("time_in_hospital")));`
	if code != want {
		t.Errorf("code = %q, want %q", code, want)
	}
	if gotModel != "test-model" {
		t.Errorf("model = %q", gotModel)
	}
}

func TestGenerateCodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusInternalServerError)
			},
		},
		{
			name: "error field in body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(ollamaResponse{Error: "model not found"})
			},
		},
		{
			name: "empty code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(ollamaResponse{Response: "```\n```"})
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := ollamaStub(t, tt.handler)
			_, err := o.GenerateCode(context.Background(), testRequest())
			var apiErr *api.Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *api.Error, got %T: %v", err, err)
			}
			if apiErr.Kind != api.ErrorKindGeneration {
				t.Errorf("kind = %s, want generation_error", apiErr.Kind)
			}
		})
	}
}

func TestGenerateCodeHonorsContext(t *testing.T) {
	o := ollamaStub(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.GenerateCode(ctx, testRequest())
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindGeneration {
		t.Errorf("expected generation_error, got %v", err)
	}
}
