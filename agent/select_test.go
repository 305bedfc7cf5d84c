package agent_test

import (
	"context"
	"errors"
	"testing"

	"rag-agent/agent"

	"github.com/stretchr/testify/assert"
)

var testCatalog = []agent.Collection{
	{Name: "docs", Description: "product documentation"},
	{Name: "api", Description: "API reference"},
	{Name: "support", Description: "resolved support tickets"},
}

func TestSelect_LLMDefaultPicksNamedCollections(t *testing.T) {
	llm := &scriptedLLM{rules: []llmRule{
		{match: "collection router", reply: `{"collections": ["docs", "api"], "reasoning": "question is about the product surface"}`},
	}}
	a := newTestAgent(t, agent.WithLLM(llm))

	c := a.Select(context.Background(), agent.NewContext("how do I call the search endpoint"), testCatalog)

	assert.Equal(t, []string{"docs", "api"}, c.Collections)
	assert.Equal(t, "question is about the product surface", c.SelectionReasoning)
	assert.NoError(t, c.Err)
}

func TestSelect_NonJSONResponseSelectsAll(t *testing.T) {
	llm := &scriptedLLM{rules: []llmRule{
		{match: "collection router", reply: "I think the docs collection is the best fit for this."},
	}}
	a := newTestAgent(t, agent.WithLLM(llm))

	c := a.Select(context.Background(), agent.NewContext("q"), testCatalog)

	assert.Equal(t, []string{"docs", "api", "support"}, c.Collections,
		"an unusable selection must fall back to every collection")
	assert.Empty(t, c.SelectionReasoning)
	assert.NoError(t, c.Err)
}

func TestSelect_SelectorErrorSelectsAll(t *testing.T) {
	a := newTestAgent(t, agent.WithSelector(agent.SelectorFunc(func(context.Context, string, []agent.Collection) (agent.Selection, error) {
		return agent.Selection{}, errors.New("unreachable")
	})))

	c := a.Select(context.Background(), agent.NewContext("q"), testCatalog)

	assert.Equal(t, []string{"docs", "api", "support"}, c.Collections)
	assert.NoError(t, c.Err)
}

func TestSelect_UnknownNamesAreDropped(t *testing.T) {
	a := newTestAgent(t, agent.WithSelector(agent.SelectorFunc(func(context.Context, string, []agent.Collection) (agent.Selection, error) {
		return agent.Selection{
			Collections: []string{"docs", "wiki", " api ", "docs"},
			Reasoning:   "mixed bag",
		}, nil
	})))

	c := a.Select(context.Background(), agent.NewContext("q"), testCatalog)

	assert.Equal(t, []string{"docs", "api"}, c.Collections,
		"unknown names dropped, whitespace trimmed, duplicates removed")
	assert.Equal(t, "mixed bag", c.SelectionReasoning)
}

func TestSelect_AllUnknownSelectsAll(t *testing.T) {
	a := newTestAgent(t, agent.WithSelector(agent.SelectorFunc(func(context.Context, string, []agent.Collection) (agent.Selection, error) {
		return agent.Selection{Collections: []string{"nope", "nada"}, Reasoning: "hallucinated"}, nil
	})))

	c := a.Select(context.Background(), agent.NewContext("q"), testCatalog)

	assert.Equal(t, []string{"docs", "api", "support"}, c.Collections)
	assert.Empty(t, c.SelectionReasoning, "reasoning is dropped with the selection it justified")
}

func TestSelect_EmptyCatalogIsNoOp(t *testing.T) {
	a := newTestAgent(t, agent.WithSelector(agent.SelectorFunc(func(context.Context, string, []agent.Collection) (agent.Selection, error) {
		t.Error("selector must not run with an empty catalog")
		return agent.Selection{}, nil
	})))

	c := a.Select(context.Background(), agent.NewContext("q"), nil)

	assert.Empty(t, c.Collections)
	assert.NoError(t, c.Err)
}

func TestSelect_CatalogRendersIntoPrompt(t *testing.T) {
	llm := &scriptedLLM{rules: []llmRule{
		{match: "collection router", reply: `{"collections": ["docs"]}`},
	}}
	a := newTestAgent(t, agent.WithLLM(llm))

	a.Select(context.Background(), agent.NewContext("q"), testCatalog)

	prompt, ok := llm.promptContaining("collection router")
	assert.True(t, ok)
	assert.Contains(t, prompt, "- docs: product documentation")
	assert.Contains(t, prompt, "- support: resolved support tickets")
}
