package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rag-agent/agent"
)

var (
	ErrEmptyQuery        = errors.New("query is required")
	ErrInvalidSearchMode = errors.New("invalid search mode")
)

// SearchInput is a retrieval-only request: no query rewriting, no answer
// generation, no retrieval loop. Mode is one of "semantic", "fulltext" or
// "hybrid"; empty keeps the deployment default. Threshold < 0 keeps the
// default.
type SearchInput struct {
	Query       string
	Collections []string
	Limit       int
	Threshold   float64
	Mode        string
}

type SearchOutput struct {
	Results []SearchResultGroup
}

// SearchResultGroup holds the chunks for one (query, collection) pair.
type SearchResultGroup struct {
	Query      string
	Collection string
	Chunks     []Source
}

type SearchUsecase interface {
	Execute(ctx context.Context, input SearchInput) (*SearchOutput, error)
}

type searchUsecase struct {
	agent    *agent.Agent
	defaults RetrievalDefaults
	log      *slog.Logger
}

// SearchOption customizes optional usecase behavior.
type SearchOption func(*searchUsecase)

// WithSearchDefaults sets the deployment retrieval bounds.
func WithSearchDefaults(d RetrievalDefaults) SearchOption {
	return func(u *searchUsecase) { u.defaults = d }
}

func NewSearchUsecase(ag *agent.Agent, log *slog.Logger, opts ...SearchOption) SearchUsecase {
	u := &searchUsecase{agent: ag, defaults: RetrievalDefaults{Threshold: -1}, log: log}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *searchUsecase) Execute(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	opts := []agent.StageOption{agent.WithSelfCorrect(false)}
	if input.Mode != "" {
		mode, err := parseSearchMode(input.Mode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, agent.WithSearchMode(mode))
	}

	c := retrievalContext(query, input.Collections, input.Limit, input.Threshold, u.defaults)
	result := u.agent.Search(ctx, c, opts...)
	if result.Failed() {
		return nil, fmt.Errorf("search failed: %w", result.Err)
	}

	out := &SearchOutput{Results: make([]SearchResultGroup, 0, len(result.Results))}
	for _, r := range result.Results {
		out.Results = append(out.Results, SearchResultGroup{
			Query:      r.Question,
			Collection: r.Collection,
			Chunks:     toSources(r.Chunks),
		})
	}
	return out, nil
}

func parseSearchMode(mode string) (agent.SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "semantic":
		return agent.ModeSemantic, nil
	case "fulltext":
		return agent.ModeFulltext, nil
	case "hybrid":
		return agent.ModeHybrid, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSearchMode, mode)
	}
}
