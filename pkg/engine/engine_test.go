package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/dataset"
	"github.com/datafrage-dev/datafrage/pkg/generator"
	"github.com/datafrage-dev/datafrage/pkg/sandbox"
	"github.com/datafrage-dev/datafrage/pkg/semantic"
	"github.com/datafrage-dev/datafrage/pkg/transport"
)

const testArtifact = `
columns:
  time_in_hospital:
    type: numeric
    synonyms: [length of stay]
  readmitted:
    type: categorical
    synonyms: [readmission status]
  num_medications:
    type: numeric
value_mappings:
  readmitted:
    "NO": not readmitted
    "<30": readmitted within 30 days
`

// stubGenerator plays back a fixed sequence of code fragments (or
// errors) and records every request it sees.
type stubGenerator struct {
	codes    []string
	err      error
	calls    int
	requests []*generator.Request
}

func (s *stubGenerator) GenerateCode(ctx context.Context, req *generator.Request) (string, error) {
	s.calls++
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	i := s.calls - 1
	if i >= len(s.codes) {
		i = len(s.codes) - 1
	}
	return s.codes[i], nil
}

// captureStore records saved results and optionally fails.
type captureStore struct {
	saved   []*api.QueryResponse
	saveErr error
}

func (s *captureStore) SaveQuery(ctx context.Context, resp *api.QueryResponse) error {
	s.saved = append(s.saved, resp)
	return s.saveErr
}
func (s *captureStore) GetQuery(ctx context.Context, id string) (*api.QueryResponse, error) {
	return nil, errors.New("not implemented")
}
func (s *captureStore) DeleteQuery(ctx context.Context, id string) error { return nil }
func (s *captureStore) ListQueries(ctx context.Context, opts transport.ListOptions) (*transport.QueryList, error) {
	return &transport.QueryList{Object: "list"}, nil
}
func (s *captureStore) HealthCheck(ctx context.Context) error { return nil }
func (s *captureStore) Close() error                          { return nil }

func testSnapshot() *dataset.Snapshot {
	return dataset.New(
		[]string{"time_in_hospital", "readmitted", "num_medications"},
		[][]string{
			{"3", "NO", "12"},
			{"5", "<30", "8"},
			{"1", "NO", "9"},
			{"7", "<30", "15"},
			{"4", "NO", "10"},
		},
	)
}

func testEngine(t *testing.T, gen generator.CodeGenerator, store transport.ResultStore, cfg Config) *Engine {
	t.Helper()
	layer, err := semantic.Parse([]byte(testArtifact))
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(layer, testSnapshot(), gen, sandbox.New(sandbox.Config{Timeout: 2 * time.Second}), store, cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestQuerySucceedsFirstAttempt(t *testing.T) {
	gen := &stubGenerator{codes: []string{`
		var groups = df.groupBy("readmitted", "time_in_hospital", "mean");
		table(["status", "avg_stay"], groups.map(function(g) { return [g.key, g.value]; }));
	`}}
	e := testEngine(t, gen, nil, Config{})

	resp, err := e.HandleQuery(context.Background(), "qry_test",
		&api.QueryRequest{Query: "Average length of stay by readmission status"})
	if err != nil {
		t.Fatalf("HandleQuery failed: %v", err)
	}

	if resp.Status != api.QueryStatusSucceeded {
		t.Fatalf("status = %s, error = %v", resp.Status, resp.Error)
	}
	if resp.ID != "qry_test" {
		t.Errorf("ID = %q, want the transport-assigned ID", resp.ID)
	}
	if resp.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", resp.Attempts)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}

	// The query resolved both terms.
	cols := make(map[string]bool)
	for _, r := range resp.Resolutions {
		cols[r.Column] = true
	}
	if !cols["time_in_hospital"] || !cols["readmitted"] {
		t.Errorf("resolutions = %+v", resp.Resolutions)
	}

	// Raw category values in table cells were rendered back to labels.
	if len(resp.Blocks) != 1 || resp.Blocks[0].Table == nil {
		t.Fatalf("blocks = %+v", resp.Blocks)
	}
	if got := resp.Blocks[0].Table.Rows[0][0]; got != "not readmitted" {
		t.Errorf("cell = %q, want \"not readmitted\"", got)
	}
}

func TestRetryWithCorrectedCode(t *testing.T) {
	gen := &stubGenerator{codes: []string{
		`print(stats.mean(df.numeric("los")));`,
		`print(stats.mean(df.numeric("time_in_hospital")));`,
	}}
	e := testEngine(t, gen, nil, Config{})

	resp, err := e.HandleQuery(context.Background(), "", &api.QueryRequest{Query: "mean length of stay"})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Status != api.QueryStatusSucceeded {
		t.Fatalf("status = %s, error = %v", resp.Status, resp.Error)
	}
	if resp.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", resp.Attempts)
	}

	// The second generation request carried the failed attempt.
	second := gen.requests[1]
	if second.PriorError == nil || second.PriorError.Kind != api.ErrorKindNameMismatch {
		t.Errorf("prior error = %+v, want name_mismatch", second.PriorError)
	}
	if second.PriorCode != gen.codes[0] {
		t.Errorf("prior code = %q", second.PriorCode)
	}
}

func TestBudgetExhaustionFails(t *testing.T) {
	gen := &stubGenerator{codes: []string{`df.col("nope");`}}
	e := testEngine(t, gen, nil, Config{RetryBudget: 2})

	resp, err := e.HandleQuery(context.Background(), "", &api.QueryRequest{Query: "mean length of stay"})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Status != api.QueryStatusFailed {
		t.Fatalf("status = %s, want failed", resp.Status)
	}
	// Budget 2 means exactly 3 attempts: the first plus two retries.
	if resp.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", resp.Attempts)
	}
	if gen.calls != 3 {
		t.Errorf("generator calls = %d, want 3", gen.calls)
	}
	if resp.Error == nil || resp.Error.Kind != api.ErrorKindNameMismatch {
		t.Errorf("error = %+v", resp.Error)
	}
	if len(resp.Blocks) != 0 {
		t.Errorf("failed response must carry no blocks, got %d", len(resp.Blocks))
	}
}

func TestTimeoutIsNeverRetried(t *testing.T) {
	layer, err := semantic.Parse([]byte(testArtifact))
	if err != nil {
		t.Fatal(err)
	}
	gen := &stubGenerator{codes: []string{`for (;;) {}`}}
	sb := sandbox.New(sandbox.Config{Timeout: 50 * time.Millisecond})
	e, err := New(layer, testSnapshot(), gen, sb, nil, Config{}, slog.Default())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := e.HandleQuery(context.Background(), "", &api.QueryRequest{Query: "mean length of stay"})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Status != api.QueryStatusFailed {
		t.Fatalf("status = %s, want failed", resp.Status)
	}
	if resp.Error == nil || resp.Error.Kind != api.ErrorKindTimeout {
		t.Errorf("error = %+v, want timeout", resp.Error)
	}
	if resp.Attempts != 1 || gen.calls != 1 {
		t.Errorf("attempts = %d, generator calls = %d; timeouts must not retry", resp.Attempts, gen.calls)
	}
}

func TestRuntimeFaultRecoverableOnce(t *testing.T) {
	gen := &stubGenerator{codes: []string{`throw "boom";`}}
	e := testEngine(t, gen, nil, Config{RetryBudget: 5})

	resp, err := e.HandleQuery(context.Background(), "", &api.QueryRequest{Query: "mean length of stay"})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Status != api.QueryStatusFailed {
		t.Fatalf("status = %s, want failed", resp.Status)
	}
	// One retry for the first fault, fatal on the repeat, regardless of
	// the remaining budget.
	if resp.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", resp.Attempts)
	}
	if resp.Error == nil || resp.Error.Kind != api.ErrorKindRuntimeFault {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestGenerationFailureIsTerminal(t *testing.T) {
	gen := &stubGenerator{err: api.NewGenerationError("model unavailable")}
	e := testEngine(t, gen, nil, Config{})

	resp, err := e.HandleQuery(context.Background(), "", &api.QueryRequest{Query: "mean length of stay"})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Status != api.QueryStatusFailed {
		t.Fatalf("status = %s, want failed", resp.Status)
	}
	if resp.Error == nil || resp.Error.Kind != api.ErrorKindGeneration {
		t.Errorf("error = %+v", resp.Error)
	}
	if resp.Attempts != 0 {
		t.Errorf("attempts = %d, want 0 (no execution happened)", resp.Attempts)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
}

func TestEmptyQueryRejected(t *testing.T) {
	e := testEngine(t, &stubGenerator{codes: []string{`print(1);`}}, nil, Config{})

	_, err := e.HandleQuery(context.Background(), "", &api.QueryRequest{Query: "   "})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindInvalidRequest {
		t.Errorf("expected invalid_request, got %v", err)
	}
}

func TestModelingIntentTightensPreprocessing(t *testing.T) {
	gen := &stubGenerator{codes: []string{`print(df.columns().length);`}}
	e := testEngine(t, gen, nil, Config{})

	resp, err := e.HandleQuery(context.Background(), "",
		&api.QueryRequest{Query: "predict readmission status from length of stay"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != api.QueryStatusSucceeded {
		t.Fatalf("status = %s, error = %v", resp.Status, resp.Error)
	}

	// The generator saw the modeling view: encoded indicators in, raw
	// categorical column out.
	cols := make(map[string]bool)
	for _, c := range gen.requests[0].Columns {
		cols[c] = true
	}
	if !cols["readmitted__NO"] || !cols["readmitted__<30"] {
		t.Errorf("columns = %v, want one-hot indicators", gen.requests[0].Columns)
	}
	if cols["readmitted"] {
		t.Error("raw categorical column leaked into the modeling view")
	}
}

func TestCallerOverridesWinOverIntent(t *testing.T) {
	gen := &stubGenerator{codes: []string{`print(df.columns().length);`}}
	e := testEngine(t, gen, nil, Config{})

	enc := api.EncodingNone
	numericOnly := false
	_, err := e.HandleQuery(context.Background(), "", &api.QueryRequest{
		Query: "predict readmission status",
		Preprocess: &api.PreprocessOverrides{
			EncodeCategoricals:     &enc,
			NumericOnlyForModeling: &numericOnly,
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range gen.requests[0].Columns {
		if c == "readmitted__NO" {
			t.Fatal("override disabled encoding but indicators are present")
		}
	}
}

func TestResultSavedToStore(t *testing.T) {
	store := &captureStore{}
	gen := &stubGenerator{codes: []string{`print("ok");`}}
	e := testEngine(t, gen, store, Config{})

	resp, err := e.HandleQuery(context.Background(), "", &api.QueryRequest{Query: "mean length of stay"})
	if err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 1 || store.saved[0].ID != resp.ID {
		t.Errorf("saved = %+v", store.saved)
	}
}

func TestStoreFailureDoesNotFailQuery(t *testing.T) {
	store := &captureStore{saveErr: errors.New("db down")}
	gen := &stubGenerator{codes: []string{`print("ok");`}}
	e := testEngine(t, gen, store, Config{})

	resp, err := e.HandleQuery(context.Background(), "", &api.QueryRequest{Query: "mean length of stay"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != api.QueryStatusSucceeded {
		t.Errorf("status = %s; storage failures must not fail the query", resp.Status)
	}
}

func TestModelingIntentDetection(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"run a regression of stay on medications", true},
		{"predict readmission", true},
		{"fit a model", true},
		{"what correlates with stay", true},
		{"average length of stay by readmission status", false},
		{"how many patients were readmitted", false},
	}
	for _, tt := range tests {
		if got := modelingIntent(tt.query); got != tt.want {
			t.Errorf("modelingIntent(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
