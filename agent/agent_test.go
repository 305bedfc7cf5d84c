package agent_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"rag-agent/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// scriptedLLM routes prompts to canned replies by substring match, recording
// every prompt it sees. The first matching rule wins; an unmatched prompt is
// an error so tests fail loudly on unexpected LLM traffic.
type scriptedLLM struct {
	mu      sync.Mutex
	rules   []llmRule
	prompts []string
}

type llmRule struct {
	match string
	reply string
	err   error
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string, _ []agent.Chunk) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	for _, r := range s.rules {
		if strings.Contains(prompt, r.match) {
			return r.reply, r.err
		}
	}
	return "", errors.New("scripted llm: no rule for prompt")
}

func (s *scriptedLLM) promptContaining(marker string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prompts {
		if strings.Contains(p, marker) {
			return p, true
		}
	}
	return "", false
}

// recordingSearcher serves canned chunks and records every call. Safe for
// the search stage's concurrent fan-out.
type recordingSearcher struct {
	mu    sync.Mutex
	calls []searchCall
	fn    func(query, collection string, opts agent.SearchOptions) ([]agent.Chunk, error)
}

type searchCall struct {
	Query      string
	Collection string
	Mode       agent.SearchMode
}

func (s *recordingSearcher) Search(_ context.Context, query, collection string, opts agent.SearchOptions) ([]agent.Chunk, error) {
	s.mu.Lock()
	s.calls = append(s.calls, searchCall{Query: query, Collection: collection, Mode: opts.Mode})
	s.mu.Unlock()
	if s.fn == nil {
		return nil, nil
	}
	return s.fn(query, collection, opts)
}

func (s *recordingSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *recordingSearcher) queriesSeen() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]int)
	for _, call := range s.calls {
		seen[call.Query]++
	}
	return seen
}

func singleChunkSearcher(id, text string) *recordingSearcher {
	return &recordingSearcher{
		fn: func(string, string, agent.SearchOptions) ([]agent.Chunk, error) {
			return []agent.Chunk{{ID: id, Text: text, Score: 0.9}}, nil
		},
	}
}

// recordingTelemetry captures emitted events for assertion.
type recordingTelemetry struct {
	mu     sync.Mutex
	events []emittedEvent
}

type emittedEvent struct {
	Name         string
	Measurements map[string]float64
	Metadata     map[string]any
}

func (t *recordingTelemetry) Emit(_ context.Context, name string, measurements map[string]float64, metadata map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, emittedEvent{Name: name, Measurements: measurements, Metadata: metadata})
}

func (t *recordingTelemetry) names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.events))
	for _, ev := range t.events {
		names = append(names, ev.Name)
	}
	return names
}

func (t *recordingTelemetry) lastByName(name string) (emittedEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.events) - 1; i >= 0; i-- {
		if t.events[i].Name == name {
			return t.events[i], true
		}
	}
	return emittedEvent{}, false
}

func staticAnswerer(answer string) agent.AnswererFunc {
	return func(context.Context, string, []agent.Chunk) (string, error) {
		return answer, nil
	}
}

func TestNew_RequiresSearcher(t *testing.T) {
	_, err := agent.New(
		agent.WithLLM(&scriptedLLM{}),
		agent.WithLogger(testLogger()),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.ErrNoSearcher)
}

func TestNew_RequiresLLMOrAnswerer(t *testing.T) {
	_, err := agent.New(
		agent.WithSearcher(&recordingSearcher{}),
		agent.WithLogger(testLogger()),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.ErrNoAnswerer)
}

func TestNew_AnswererSatisfiesAnswerRequirement(t *testing.T) {
	a, err := agent.New(
		agent.WithSearcher(&recordingSearcher{}),
		agent.WithAnswerer(staticAnswerer("ok")),
		agent.WithLogger(testLogger()),
	)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := agent.DefaultConfig()
	cfg.Loops.MaxIterations = 0

	_, err := agent.New(
		agent.WithSearcher(&recordingSearcher{}),
		agent.WithAnswerer(staticAnswerer("ok")),
		agent.WithConfig(cfg),
		agent.WithLogger(testLogger()),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maxIterations")
}

func TestRun_ChainsRefinementsIntoDecomposition(t *testing.T) {
	llm := &scriptedLLM{rules: []llmRule{
		{match: "search query optimizer", reply: "rewritten-marker"},
		{match: "search query expander", reply: "expanded-marker"},
		{match: "question decomposer", reply: `["sub-a", "sub-b"]`},
		{match: "using ONLY the provided context", reply: "final answer"},
	}}
	searcher := singleChunkSearcher("c1", "some text")

	cfg := agent.DefaultConfig()
	cfg.Search.Mode = agent.ModeSemantic
	cfg.Pipeline = agent.PipelineConfig{Rewrite: true, Expand: true, Decompose: true}

	a, err := agent.New(
		agent.WithLLM(llm),
		agent.WithSearcher(searcher),
		agent.WithConfig(cfg),
		agent.WithLogger(testLogger()),
	)
	require.NoError(t, err)

	c := a.Run(context.Background(), agent.NewContext("original-question-marker"))
	require.NoError(t, c.Err)

	assert.Equal(t, "rewritten-marker", c.RewrittenQuery)
	assert.Equal(t, "expanded-marker", c.ExpandedQuery)
	assert.Equal(t, []string{"sub-a", "sub-b"}, c.SubQuestions)

	// The expander must see the rewritten query, and the decomposer the
	// expanded one. Neither prompt may fall back to the original question.
	expandPrompt, ok := llm.promptContaining("search query expander")
	require.True(t, ok)
	assert.Contains(t, expandPrompt, "rewritten-marker")
	assert.NotContains(t, expandPrompt, "original-question-marker")

	decomposePrompt, ok := llm.promptContaining("question decomposer")
	require.True(t, ok)
	assert.Contains(t, decomposePrompt, "expanded-marker")
	assert.NotContains(t, decomposePrompt, "original-question-marker")

	seen := searcher.queriesSeen()
	assert.Contains(t, seen, "sub-a")
	assert.Contains(t, seen, "sub-b")
	assert.Equal(t, "final answer", c.Answer)
}

func TestRun_SkipsDisabledStages(t *testing.T) {
	searcher := singleChunkSearcher("c1", "some text")

	cfg := agent.DefaultConfig()
	cfg.Search.Mode = agent.ModeSemantic
	cfg.Pipeline = agent.PipelineConfig{}

	a, err := agent.New(
		agent.WithSearcher(searcher),
		agent.WithAnswerer(staticAnswerer("direct answer")),
		agent.WithConfig(cfg),
		agent.WithLogger(testLogger()),
	)
	require.NoError(t, err)

	c := a.Run(context.Background(), agent.NewContext("what is a pod"))
	require.NoError(t, c.Err)

	assert.Empty(t, c.RewrittenQuery)
	assert.Empty(t, c.ExpandedQuery)
	assert.Empty(t, c.SubQuestions)
	assert.Equal(t, "direct answer", c.Answer)

	seen := searcher.queriesSeen()
	assert.Equal(t, 1, seen["what is a pod"], "search must use the original question untouched")
}

func TestRun_RerankToggleOverridesPipelineFlag(t *testing.T) {
	rerankCalls := 0
	reranker := agent.RerankerFunc(func(_ context.Context, _ string, chunks []agent.Chunk) ([]agent.Chunk, error) {
		rerankCalls++
		scored := make([]agent.Chunk, len(chunks))
		for i, ch := range chunks {
			ch.Score = 9
			scored[i] = ch
		}
		return scored, nil
	})

	cfg := agent.DefaultConfig()
	cfg.Search.Mode = agent.ModeSemantic
	cfg.Pipeline = agent.PipelineConfig{Rerank: true}

	a, err := agent.New(
		agent.WithSearcher(singleChunkSearcher("c1", "some text")),
		agent.WithAnswerer(staticAnswerer("ok")),
		agent.WithReranker(reranker),
		agent.WithConfig(cfg),
		agent.WithLogger(testLogger()),
	)
	require.NoError(t, err)

	c := a.Run(context.Background(), agent.NewContext("q"), agent.WithRerank(false))
	require.NoError(t, c.Err)
	assert.Zero(t, rerankCalls)
	assert.Empty(t, c.RerankScores, "a skipped stage must not score anything")
	require.Len(t, c.Results, 1)
	assert.Len(t, c.Results[0].Chunks, 1, "retrieval results must survive untouched")

	c = a.Run(context.Background(), agent.NewContext("q"))
	require.NoError(t, c.Err)
	assert.Equal(t, 1, rerankCalls)

	// The override also enables the stage when the pipeline flag is off.
	cfg.Pipeline.Rerank = false
	a, err = agent.New(
		agent.WithSearcher(singleChunkSearcher("c1", "some text")),
		agent.WithAnswerer(staticAnswerer("ok")),
		agent.WithReranker(reranker),
		agent.WithConfig(cfg),
		agent.WithLogger(testLogger()),
	)
	require.NoError(t, err)

	c = a.Run(context.Background(), agent.NewContext("q"), agent.WithRerank(true))
	require.NoError(t, c.Err)
	assert.Equal(t, 2, rerankCalls)
	assert.NotEmpty(t, c.RerankScores)
}

func TestRun_SelectsCollectionsFromCatalogSource(t *testing.T) {
	searcher := singleChunkSearcher("c1", "some text")
	catalog := []agent.Collection{
		{Name: "docs", Description: "product documentation"},
		{Name: "support", Description: "support tickets"},
	}

	cfg := agent.DefaultConfig()
	cfg.Search.Mode = agent.ModeSemantic
	cfg.Pipeline = agent.PipelineConfig{SelectCollections: true}

	a, err := agent.New(
		agent.WithSearcher(searcher),
		agent.WithAnswerer(staticAnswerer("ok")),
		agent.WithSelector(agent.SelectorFunc(func(_ context.Context, _ string, _ []agent.Collection) (agent.Selection, error) {
			return agent.Selection{Collections: []string{"docs"}, Reasoning: "docs cover this"}, nil
		})),
		agent.WithCatalogSource(agent.CatalogSourceFunc(func(context.Context) ([]agent.Collection, error) {
			return catalog, nil
		})),
		agent.WithConfig(cfg),
		agent.WithLogger(testLogger()),
	)
	require.NoError(t, err)

	c := a.Run(context.Background(), agent.NewContext("how do I reset my password"))
	require.NoError(t, c.Err)

	assert.Equal(t, []string{"docs"}, c.Collections)
	assert.Equal(t, "docs cover this", c.SelectionReasoning)

	searcher.mu.Lock()
	defer searcher.mu.Unlock()
	require.NotEmpty(t, searcher.calls)
	for _, call := range searcher.calls {
		assert.Equal(t, "docs", call.Collection)
	}
}

func TestRun_PreSelectedCollectionsBypassSelector(t *testing.T) {
	searcher := singleChunkSearcher("c1", "some text")

	cfg := agent.DefaultConfig()
	cfg.Search.Mode = agent.ModeSemantic
	cfg.Pipeline = agent.PipelineConfig{SelectCollections: true}

	a, err := agent.New(
		agent.WithSearcher(searcher),
		agent.WithAnswerer(staticAnswerer("ok")),
		agent.WithSelector(agent.SelectorFunc(func(context.Context, string, []agent.Collection) (agent.Selection, error) {
			t.Error("selector must not run when collections are pre-selected")
			return agent.Selection{}, nil
		})),
		agent.WithCatalogSource(agent.CatalogSourceFunc(func(context.Context) ([]agent.Collection, error) {
			return []agent.Collection{{Name: "docs"}}, nil
		})),
		agent.WithConfig(cfg),
		agent.WithLogger(testLogger()),
	)
	require.NoError(t, err)

	c := a.Run(context.Background(), agent.NewContext("q", agent.WithCollections("api")))
	require.NoError(t, c.Err)
	assert.Equal(t, []string{"api"}, c.Collections)
}

func TestRun_SingleChunkCorpusEndToEnd(t *testing.T) {
	llm := &scriptedLLM{rules: []llmRule{
		{match: "search query optimizer", reply: "What is Elixir?"},
		{match: "Rate how relevant", reply: `{"score": 9}`},
		{match: "enough information", reply: `{"sufficient": true}`},
		{match: "answer is grounded", reply: `{"grounded": true}`},
		{match: "using ONLY the provided context", reply: "Elixir is a functional language."},
	}}
	searcher := singleChunkSearcher("elixir-1", "Elixir is a functional programming language.")

	cfg := agent.DefaultConfig()
	cfg.Pipeline.SelfCorrectSearch = true
	cfg.Pipeline.SelfCorrectAnswer = true

	a, err := agent.New(
		agent.WithLLM(llm),
		agent.WithSearcher(searcher),
		agent.WithConfig(cfg),
		agent.WithLogger(testLogger()),
	)
	require.NoError(t, err)

	c := a.Run(context.Background(), agent.NewContext("Tell me about Elixir"))
	require.NoError(t, c.Err)

	assert.Equal(t, "Elixir is a functional language.", c.Answer)
	assert.Len(t, c.ContextUsed, 1)
	assert.Equal(t, "elixir-1", c.ContextUsed[0].ID)
	assert.Equal(t, 0, c.CorrectionCount)
	assert.Equal(t, 1, c.ReasonIterations)
	assert.Equal(t, "What is Elixir?", c.RewrittenQuery)
	assert.InDelta(t, 9.0, c.RerankScores["elixir-1"], 1e-9)
}

func TestStages_NoOpAfterFailure(t *testing.T) {
	boom := errors.New("already failed")
	searcher := &recordingSearcher{
		fn: func(string, string, agent.SearchOptions) ([]agent.Chunk, error) {
			t.Error("searcher must not run on a failed context")
			return nil, nil
		},
	}

	a, err := agent.New(
		agent.WithSearcher(searcher),
		agent.WithAnswerer(agent.AnswererFunc(func(context.Context, string, []agent.Chunk) (string, error) {
			t.Error("answerer must not run on a failed context")
			return "", nil
		})),
		agent.WithRewriter(agent.RewriterFunc(func(context.Context, string) (string, error) {
			t.Error("rewriter must not run on a failed context")
			return "", nil
		})),
		agent.WithLogger(testLogger()),
	)
	require.NoError(t, err)

	failed := agent.NewContext("q")
	failed.Err = boom
	failed.Results = []agent.SearchResult{{Question: "q", Chunks: []agent.Chunk{{ID: "a"}}}}

	ctx := context.Background()
	catalog := []agent.Collection{{Name: "docs"}}

	stages := map[string]func(agent.Context) agent.Context{
		"rewrite":   func(c agent.Context) agent.Context { return a.Rewrite(ctx, c) },
		"expand":    func(c agent.Context) agent.Context { return a.Expand(ctx, c) },
		"decompose": func(c agent.Context) agent.Context { return a.Decompose(ctx, c) },
		"select":    func(c agent.Context) agent.Context { return a.Select(ctx, c, catalog) },
		"search":    func(c agent.Context) agent.Context { return a.Search(ctx, c) },
		"rerank":    func(c agent.Context) agent.Context { return a.Rerank(ctx, c) },
		"answer":    func(c agent.Context) agent.Context { return a.Answer(ctx, c) },
	}
	for name, stage := range stages {
		out := stage(failed)
		assert.Same(t, boom, out.Err, "%s must pass the failed context through", name)
		assert.Empty(t, out.Answer, "%s must not produce an answer", name)
		assert.True(t, out.Failed())
	}
}

func TestAgent_TelemetryPanicsAreIsolated(t *testing.T) {
	a, err := agent.New(
		agent.WithSearcher(singleChunkSearcher("c1", "text")),
		agent.WithAnswerer(staticAnswerer("ok")),
		agent.WithRewriter(agent.RewriterFunc(func(_ context.Context, q string) (string, error) {
			return q + " rewritten", nil
		})),
		agent.WithTelemetry(agent.TelemetryFunc(func(context.Context, string, map[string]float64, map[string]any) {
			panic("sink exploded")
		})),
		agent.WithLogger(testLogger()),
	)
	require.NoError(t, err)

	var c agent.Context
	assert.NotPanics(t, func() {
		c = a.Rewrite(context.Background(), agent.NewContext("q"))
	})
	assert.Equal(t, "q rewritten", c.RewrittenQuery)
	assert.NoError(t, c.Err)
}

func TestRun_EmitsStageEvents(t *testing.T) {
	telemetry := &recordingTelemetry{}

	cfg := agent.DefaultConfig()
	cfg.Search.Mode = agent.ModeSemantic
	cfg.Pipeline = agent.PipelineConfig{Rewrite: true, Rerank: true}

	a, err := agent.New(
		agent.WithSearcher(singleChunkSearcher("c1", "text")),
		agent.WithAnswerer(staticAnswerer("ok")),
		agent.WithRewriter(agent.RewriterFunc(func(_ context.Context, q string) (string, error) {
			return q, nil
		})),
		agent.WithReranker(agent.RerankerFunc(func(_ context.Context, _ string, chunks []agent.Chunk) ([]agent.Chunk, error) {
			out := append([]agent.Chunk(nil), chunks...)
			for i := range out {
				out[i].Score = 8
			}
			return out, nil
		})),
		agent.WithTelemetry(telemetry),
		agent.WithConfig(cfg),
		agent.WithLogger(testLogger()),
	)
	require.NoError(t, err)

	c := a.Run(context.Background(), agent.NewContext("q"))
	require.NoError(t, c.Err)

	names := telemetry.names()
	for _, want := range []string{
		agent.EventRewriteStart, agent.EventRewriteStop,
		agent.EventSearchStart, agent.EventSearchStop,
		agent.EventRerankStart, agent.EventRerankStop,
		agent.EventAnswerStart, agent.EventAnswerStop,
	} {
		assert.Contains(t, names, want)
	}

	stop, ok := telemetry.lastByName(agent.EventSearchStop)
	require.True(t, ok)
	assert.Equal(t, float64(1), stop.Measurements["result_count"])
}
