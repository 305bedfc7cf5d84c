// Package ollama talks to a local Ollama instance: chat completions for the
// pipeline's LLM stages and the embeddings endpoint for ingest and semantic
// search. All calls are rate limited and run through the resilience executor.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"rag-agent/agent"
	"rag-agent/internal/infra/config"
	"rag-agent/internal/infra/httpclient"
	"rag-agent/internal/infra/resilience"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	KeepAlive int            `json:"keep_alive"`
	Options   map[string]any `json:"options,omitempty"`
}

// chatChunk is one line of the NDJSON stream the chat endpoint returns.
type chatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Client sends prompts to Ollama's chat endpoint and aggregates the
// streamed response into a single string.
type Client struct {
	baseURL    string
	model      string
	numPredict int
	httpClient *http.Client
	limiter    *rate.Limiter
	exec       *resilience.Executor
	log        *slog.Logger
}

func NewClient(cfg config.OllamaConfig, exec *resilience.Executor, log *slog.Logger) *Client {
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		numPredict: cfg.NumPredict,
		httpClient: httpclient.NewPooledClient(cfg.Timeout),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		exec:       exec,
		log:        log,
	}
}

// Model returns the generation model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the prompt as a single user message and returns the
// assistant's full reply. Retrieved chunks, when present, are appended to
// the prompt as a numbered context block.
func (c *Client) Complete(ctx context.Context, prompt string, chunks []agent.Chunk) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	payload := chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: renderUserMessage(prompt, chunks)}},
		Stream:    true,
		KeepAlive: -1,
		Options:   c.buildOptions(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	start := time.Now()
	var text string
	err = c.exec.Execute(ctx, "ollama_chat", func(ctx context.Context) error {
		out, chatErr := c.chat(ctx, body)
		if chatErr != nil {
			return chatErr
		}
		text = out
		return nil
	}, classifyHTTP)
	if err != nil {
		return "", err
	}

	c.log.Debug("ollama_chat_completed",
		slog.String("model", c.model),
		slog.Int("response_chars", len(text)),
		slog.Duration("elapsed", time.Since(start)))
	return text, nil
}

func (c *Client) chat(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newStatusError(resp)
	}

	// The endpoint streams NDJSON; concatenate the content pieces until the
	// final done marker.
	var b strings.Builder
	dec := json.NewDecoder(resp.Body)
	for {
		var piece chatChunk
		if err := dec.Decode(&piece); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("failed to decode chat stream: %w", err)
		}
		b.WriteString(piece.Message.Content)
		if piece.Done {
			break
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func (c *Client) buildOptions() map[string]any {
	// Low temperature keeps the JSON-emitting stage prompts parseable.
	opts := map[string]any{"temperature": 0.2}
	if c.numPredict > 0 {
		opts["num_predict"] = c.numPredict
	}
	return opts
}

// renderUserMessage appends retrieved passages so answer-style prompts see
// their context. Prompts with no chunks pass through unchanged.
func renderUserMessage(prompt string, chunks []agent.Chunk) string {
	if len(chunks) == 0 {
		return prompt
	}
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nContext passages:\n")
	for i, ch := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, ch.Text)
	}
	return b.String()
}

var _ agent.LLMClient = (*Client)(nil)
