package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/datafrage-dev/datafrage/pkg/auth"
	"github.com/datafrage-dev/datafrage/pkg/auth/apikey"
	"github.com/datafrage-dev/datafrage/pkg/config"
	"github.com/datafrage-dev/datafrage/pkg/dataset"
	"github.com/datafrage-dev/datafrage/pkg/engine"
	"github.com/datafrage-dev/datafrage/pkg/generator"
	"github.com/datafrage-dev/datafrage/pkg/sandbox"
	"github.com/datafrage-dev/datafrage/pkg/semantic"
	"github.com/datafrage-dev/datafrage/pkg/storage/memory"
	"github.com/datafrage-dev/datafrage/pkg/storage/postgres"
	"github.com/datafrage-dev/datafrage/pkg/transport"
)

// session bundles the fully wired processing pipeline for one dataset.
type session struct {
	layer *semantic.Layer
	snap  *dataset.Snapshot
	gen   *generator.Ollama
	store transport.ResultStore
	eng   *engine.Engine
}

// buildSession loads the semantic layer and dataset, connects the code
// generation backend and result store, and assembles the engine.
func buildSession(ctx context.Context, cfg *config.Config) (*session, error) {
	layer, err := semantic.Load(cfg.Session.SemanticLayer)
	if err != nil {
		return nil, fmt.Errorf("loading semantic layer: %w", err)
	}

	snap, err := dataset.LoadCSV(cfg.Session.Dataset, layer)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	slog.Info("session loaded",
		"semantic_layer", cfg.Session.SemanticLayer,
		"dataset", cfg.Session.Dataset,
		"columns", len(snap.Columns()),
		"rows", snap.NumRows(),
	)

	gen := generator.NewOllama(generator.OllamaConfig{
		BaseURL: cfg.Generator.BaseURL,
		Model:   cfg.Generator.Model,
		Timeout: cfg.Generator.Timeout,
	})

	sb := sandbox.New(sandbox.Config{Timeout: cfg.Engine.ExecutionTimeout})

	store, err := newStore(ctx, cfg)
	if err != nil {
		gen.Close()
		return nil, err
	}

	eng, err := engine.New(layer, snap, gen, sb, store, engine.Config{
		RetryBudget:       cfg.Engine.RetryBudget,
		GenerationTimeout: cfg.Engine.GenerationTimeout,
	}, slog.Default())
	if err != nil {
		gen.Close()
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	return &session{layer: layer, snap: snap, gen: gen, store: store, eng: eng}, nil
}

// Close releases the generator connection pool and the result store.
func (s *session) Close() {
	s.gen.Close()
	if s.store != nil {
		s.store.Close()
	}
}

// newStore creates the configured result store.
func newStore(ctx context.Context, cfg *config.Config) (transport.ResultStore, error) {
	switch cfg.Storage.Type {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres")
		return store, nil
	default:
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil
	}
}

// authMiddleware builds the HTTP authentication middleware from config.
// Returns nil when auth is disabled.
func authMiddleware(cfg *config.Config) (func(http.Handler) http.Handler, error) {
	if cfg.Auth.Type != "apikey" {
		return nil, nil
	}

	entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		if k.Key == "" {
			return nil, fmt.Errorf("auth.api_keys entry for %q has no key", k.Subject)
		}
		entries = append(entries, apikey.RawKeyEntry{
			Key: k.Key,
			Identity: auth.Identity{
				Subject: k.Subject,
				Scopes:  k.Scopes,
			},
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("auth.type is \"apikey\" but no api_keys are configured")
	}

	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{apikey.New(entries)},
		DefaultDecision: auth.No,
	}
	return auth.Middleware(chain, auth.DefaultBypassEndpoints), nil
}
