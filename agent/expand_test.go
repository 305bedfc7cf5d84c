package agent_test

import (
	"context"
	"errors"
	"testing"

	"rag-agent/agent"

	"github.com/stretchr/testify/assert"
)

func TestExpand_SeesTheRewrittenQuery(t *testing.T) {
	var got string
	a := newTestAgent(t, agent.WithExpander(agent.ExpanderFunc(func(_ context.Context, q string) (string, error) {
		got = q
		return q + " synonyms", nil
	})))

	c := agent.NewContext("original")
	c.RewrittenQuery = "rewritten"
	c = a.Expand(context.Background(), c)

	assert.Equal(t, "rewritten", got, "expansion works on the most refined query")
	assert.Equal(t, "rewritten synonyms", c.ExpandedQuery)
}

func TestExpand_FallsBackToQuestionWithoutRewrite(t *testing.T) {
	var got string
	a := newTestAgent(t, agent.WithExpander(agent.ExpanderFunc(func(_ context.Context, q string) (string, error) {
		got = q
		return "expanded", nil
	})))

	a.Expand(context.Background(), agent.NewContext("original"))

	assert.Equal(t, "original", got)
}

func TestExpand_FailSoftKeepsCurrentQuery(t *testing.T) {
	a := newTestAgent(t, agent.WithExpander(agent.ExpanderFunc(func(context.Context, string) (string, error) {
		return "", errors.New("timeout")
	})))

	c := agent.NewContext("original")
	c.RewrittenQuery = "rewritten"
	c = a.Expand(context.Background(), c)

	assert.Empty(t, c.ExpandedQuery)
	assert.Equal(t, "rewritten", c.RewrittenQuery)
	assert.NoError(t, c.Err)
}

func TestExpand_SkippedWithoutImplementation(t *testing.T) {
	a := newTestAgent(t)

	c := a.Expand(context.Background(), agent.NewContext("q"))

	assert.Empty(t, c.ExpandedQuery)
	assert.NoError(t, c.Err)
}
