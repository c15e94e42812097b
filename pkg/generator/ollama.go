package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/datafrage-dev/datafrage/pkg/api"
	"github.com/datafrage-dev/datafrage/pkg/debug"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "qwen2.5-coder:7b"
	defaultTimeout     = 60 * time.Second
)

// OllamaConfig configures the Ollama-backed generator.
type OllamaConfig struct {
	// BaseURL of the Ollama server. Empty means the local default.
	BaseURL string
	// Model to generate with.
	Model string
	// Timeout bounds a single generation call. Zero means the default.
	Timeout time.Duration
}

// Ollama generates code through an Ollama server's /api/generate
// endpoint. Safe for concurrent use.
type Ollama struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// NewOllama creates a generator backed by an Ollama server.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Ollama{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// GenerateCode sends the prompt to the model and returns the fenced-
// stripped code fragment. Every failure is a generation_error: the
// orchestrator treats collaborator faults uniformly.
func (o *Ollama) GenerateCode(ctx context.Context, req *Request) (string, error) {
	prompt := BuildPrompt(req)
	debug.Log("generator", "generation request",
		"model", o.model, "prompt_len", len(prompt), "retry", req.PriorError != nil)
	debug.Raw("generator", prompt)

	body, err := json.Marshal(ollamaRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", api.NewGenerationError(fmt.Sprintf("marshaling request: %s", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", api.NewGenerationError(fmt.Sprintf("building request: %s", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", api.NewGenerationError(fmt.Sprintf("calling model server: %s", err))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", api.NewGenerationError(
			fmt.Sprintf("model server returned status %d", httpResp.StatusCode))
	}

	var genResp ollamaResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&genResp); err != nil {
		return "", api.NewGenerationError(fmt.Sprintf("parsing model response: %s", err))
	}
	if genResp.Error != "" {
		return "", api.NewGenerationError(genResp.Error)
	}

	code := StripFences(genResp.Response)
	if code == "" {
		return "", api.NewGenerationError("model returned no code")
	}
	debug.Log("generator", "generation response", "code_len", len(code))
	debug.Raw("generator", code)
	return code, nil
}

// Close releases client resources.
func (o *Ollama) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
