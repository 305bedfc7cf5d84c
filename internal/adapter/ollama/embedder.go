package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"rag-agent/internal/domain"
	"rag-agent/internal/infra/config"
	"rag-agent/internal/infra/httpclient"
	"rag-agent/internal/infra/resilience"
)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embedder turns texts into vectors via Ollama's embeddings endpoint.
type Embedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	exec       *resilience.Executor
	log        *slog.Logger
}

func NewEmbedder(cfg config.OllamaConfig, exec *resilience.Executor, log *slog.Logger) *Embedder {
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}
	return &Embedder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.EmbedModel,
		httpClient: httpclient.NewPooledClient(cfg.Timeout),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		exec:       exec,
		log:        log,
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	e.log.Info("ollama_embed_started",
		slog.Int("text_count", len(texts)),
		slog.String("model", e.model))
	start := time.Now()

	var embeddings [][]float32
	err = e.exec.Execute(ctx, "ollama_embed", func(ctx context.Context) error {
		out, embedErr := e.embed(ctx, body)
		if embedErr != nil {
			return embedErr
		}
		embeddings = out
		return nil
	}, classifyHTTP)
	if err != nil {
		e.log.Error("ollama_embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(embeddings), len(texts))
	}

	e.log.Info("ollama_embed_completed",
		slog.Int("embedding_count", len(embeddings)),
		slog.Duration("elapsed", time.Since(start)))
	return embeddings, nil
}

func (e *Embedder) embed(ctx context.Context, body []byte) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embed endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	return out.Embeddings, nil
}

var _ domain.Embedder = (*Embedder)(nil)
