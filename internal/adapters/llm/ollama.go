// Package llm extracts structured route parameters from a free-form prompt
// using a locally hosted Ollama model.
package llm

import (
	"context"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/platform/httpx"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1:8b-instruct-q4_K_M"
)

type Config struct {
	BaseURL string
	Model   string
	// Generation can be slow while the model loads.
	Timeout time.Duration
}

// Ollama is a minimal /api/generate client.
type Ollama struct {
	http    *httpx.Client
	baseURL string
	model   string
	log     *zap.Logger
}

func NewOllama(cfg Config, log *zap.Logger) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ollama{
		http:    httpx.New(cfg.Timeout, httpx.WithRetry(2, 500*time.Millisecond)),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		log:     log.Named("ollama"),
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate returns the model's completion for prompt. asJSON asks Ollama to
// constrain the output to a JSON document.
func (o *Ollama) Generate(ctx context.Context, prompt string, asJSON bool) (string, error) {
	req := generateRequest{
		Model:  o.model,
		Prompt: prompt,
		Options: map[string]any{
			"temperature": 0.1,
			"top_p":       0.9,
			"num_predict": 700,
		},
	}
	if asJSON {
		req.Format = "json"
	}

	var out generateResponse
	if err := o.http.PostJSON(ctx, o.baseURL+"/api/generate", req, &out); err != nil {
		return "", domain.NewProviderError("ollama", "generate", err)
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", domain.NewProviderError("ollama", "generate", errors.New("empty completion"))
	}
	o.log.Debug("completion received", zap.Int("chars", len(text)))
	return text, nil
}
