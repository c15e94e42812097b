package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/dataset"
	"github.com/datafrage-dev/datafrage/pkg/generator"
	"github.com/datafrage-dev/datafrage/pkg/observability"
	"github.com/datafrage-dev/datafrage/pkg/render"
	"github.com/datafrage-dev/datafrage/pkg/sandbox"
	"github.com/datafrage-dev/datafrage/pkg/semantic"
	"github.com/datafrage-dev/datafrage/pkg/transport"
)

// State is one step of the per-query state machine. States are logged
// but not exposed on the wire; callers only see the terminal status.
type State string

const (
	StateReceived     State = "received"
	StateResolved     State = "resolved"
	StateAwaitingCode State = "awaiting_code"
	StateExecuting    State = "executing"
	StateRetrying     State = "retrying"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
)

// Engine orchestrates query processing between the transport layer,
// the code-generation collaborator, and the sandbox. It holds the
// session's immutable semantic layer and dataset snapshot; every
// execution derives its own working copy.
type Engine struct {
	layer   *semantic.Layer
	snap    *dataset.Snapshot
	gen     generator.CodeGenerator
	sandbox *sandbox.Sandbox
	store   transport.ResultStore
	cfg     Config
	logger  *slog.Logger
}

// Ensure Engine implements transport.QueryHandler at compile time.
var _ transport.QueryHandler = (*Engine)(nil)

// New creates an Engine. Layer, snapshot, generator, and sandbox must
// not be nil. The store can be nil for stateless operation.
func New(layer *semantic.Layer, snap *dataset.Snapshot, gen generator.CodeGenerator, sb *sandbox.Sandbox, store transport.ResultStore, cfg Config, logger *slog.Logger) (*Engine, error) {
	if layer == nil {
		return nil, fmt.Errorf("engine: semantic layer must not be nil")
	}
	if snap == nil {
		return nil, fmt.Errorf("engine: dataset snapshot must not be nil")
	}
	if gen == nil {
		return nil, fmt.Errorf("engine: code generator must not be nil")
	}
	if sb == nil {
		return nil, fmt.Errorf("engine: sandbox must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		layer:   layer,
		snap:    snap,
		gen:     gen,
		sandbox: sb,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// HandleQuery drives one query through the state machine and returns
// the terminal QueryResponse. Execution failures are reported inside a
// failed response; only request-level problems (empty query, malformed
// overrides) surface as errors.
func (e *Engine) HandleQuery(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, api.NewInvalidRequestError("query is required")
	}
	if id == "" {
		id = api.NewQueryID()
	}

	e.transition(ctx, id, StateReceived)

	// Received -> Resolved. Resolution never fails; zero resolutions is
	// a valid outcome.
	resolved := e.layer.Resolve(req.Query)
	e.transition(ctx, id, StateResolved, slog.Int("resolutions", len(resolved.Resolutions)))

	opts := e.preprocessOptions(resolved, req.Preprocess)
	schema := e.layer.Describe()

	resp := &api.QueryResponse{
		ID:          id,
		Object:      "query",
		Query:       req.Query,
		Resolutions: resolved.Resolutions,
		CreatedAt:   time.Now().Unix(),
	}

	var (
		priorCode        string
		priorErr         *api.Error
		runtimeFaultSeen bool
	)
	budget := e.cfg.retryBudget()

	for attempt := 1; attempt <= budget+1; attempt++ {
		// A fresh working copy per attempt: nothing from a failed
		// execution can leak into the next one.
		frame, err := dataset.Preprocess(e.snap, e.layer, opts)
		if err != nil {
			resp.Status = api.QueryStatusFailed
			resp.Error = asAPIError(err)
			break
		}

		e.transition(ctx, id, StateAwaitingCode, slog.Int("attempt", attempt))
		code, err := e.generate(ctx, &generator.Request{
			Resolved:   resolved,
			Schema:     schema,
			Columns:    frame.View(),
			PriorCode:  priorCode,
			PriorError: priorErr,
		})
		if err != nil {
			resp.Status = api.QueryStatusFailed
			resp.Error = asAPIError(err)
			break
		}

		e.transition(ctx, id, StateExecuting, slog.Int("attempt", attempt))
		capture, execErr := e.execute(ctx, code, frame)
		resp.Attempts = attempt

		if execErr == nil {
			resp.Status = api.QueryStatusSucceeded
			resp.Blocks = render.New(e.layer, frame.Audit()).Render(capture.Blocks)
			break
		}

		apiErr := asAPIError(execErr)
		fatal := !apiErr.Recoverable() ||
			(apiErr.Kind == api.ErrorKindRuntimeFault && runtimeFaultSeen) ||
			attempt > budget

		if fatal {
			resp.Status = api.QueryStatusFailed
			resp.Error = apiErr
			break
		}

		if apiErr.Kind == api.ErrorKindRuntimeFault {
			runtimeFaultSeen = true
		}
		priorCode, priorErr = code, apiErr
		e.transition(ctx, id, StateRetrying,
			slog.Int("attempt", attempt),
			slog.String("error_kind", string(apiErr.Kind)))
	}

	if resp.Status == api.QueryStatusSucceeded {
		e.transition(ctx, id, StateSucceeded, slog.Int("attempts", resp.Attempts))
	} else {
		e.transition(ctx, id, StateFailed,
			slog.Int("attempts", resp.Attempts),
			slog.String("error_kind", string(resp.Error.Kind)))
	}

	observability.QueriesTotal.WithLabelValues(string(resp.Status)).Inc()
	observability.QueryAttempts.Observe(float64(resp.Attempts))

	e.save(ctx, resp)

	return resp, nil
}

// generate calls the collaborator under the generation timeout and
// records generation metrics.
func (e *Engine) generate(ctx context.Context, req *generator.Request) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.cfg.generationTimeout())
	defer cancel()

	start := time.Now()
	code, err := e.gen.GenerateCode(genCtx, req)
	observability.GenerationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.GenerationRequestsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	observability.GenerationRequestsTotal.WithLabelValues("success").Inc()
	return code, nil
}

// execute runs the fragment in the sandbox and records execution
// metrics by outcome.
func (e *Engine) execute(ctx context.Context, code string, frame *dataset.Working) (*sandbox.Capture, error) {
	start := time.Now()
	capture, err := e.sandbox.Execute(ctx, code, frame)
	observability.ExecutionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ExecutionsTotal.WithLabelValues(string(asAPIError(err).Kind)).Inc()
		return nil, err
	}
	observability.ExecutionsTotal.WithLabelValues("success").Inc()
	return capture, nil
}

// save persists the terminal response when a store is configured.
// Storage failures are logged, never surfaced: the caller already has
// the result in hand.
func (e *Engine) save(ctx context.Context, resp *api.QueryResponse) {
	if e.store == nil {
		return
	}
	// The result must outlive request cancellation once processing is
	// done.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.store.SaveQuery(saveCtx, resp); err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "storing query result failed",
			slog.String("query_id", resp.ID),
			slog.String("error", err.Error()))
	}
}

// preprocessOptions decides the per-request preprocessing policy:
// defaults, tightened to one-hot encoding with a numeric-only modeling
// view when the query shows modeling intent, then caller overrides on
// top.
func (e *Engine) preprocessOptions(resolved semantic.ResolvedQuery, overrides *api.PreprocessOverrides) dataset.Options {
	opts := dataset.DefaultOptions()
	if modelingIntent(resolved.Query) {
		opts.Encode = api.EncodingOneHot
		opts.NumericOnlyForModeling = true
	}
	return opts.WithOverrides(overrides)
}

// modelingTerms are word stems that signal the query wants a fitted
// model rather than a plain aggregate.
var modelingTerms = []string{"regress", "predict", "model", "correlat", "fit"}

func modelingIntent(query string) bool {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		for _, term := range modelingTerms {
			if strings.HasPrefix(w, term) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) transition(ctx context.Context, id string, s State, attrs ...slog.Attr) {
	all := append([]slog.Attr{slog.String("query_id", id), slog.String("state", string(s))}, attrs...)
	e.logger.LogAttrs(ctx, slog.LevelDebug, "query state", all...)
}

// asAPIError normalizes any error to the structured record surfaced to
// callers.
func asAPIError(err error) *api.Error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewServerError(err.Error())
}
