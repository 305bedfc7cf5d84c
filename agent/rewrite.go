package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Rewrite reformulates the original question into a sharper retrieval query
// and records it as RewrittenQuery. Fail-soft: on any rewriter failure the
// field stays empty and the pipeline continues. No-op when the context has
// already failed.
func (a *Agent) Rewrite(ctx context.Context, c Context, opts ...StageOption) Context {
	if c.Err != nil {
		return c
	}
	st := applyStageOptions(opts)
	rewriter := a.resolveRewriter(st)
	if rewriter == nil {
		a.log.Debug("rewrite_skipped_no_implementation")
		return c
	}

	a.emit(ctx, EventRewriteStart, nil, map[string]any{"question": c.Question})
	start := time.Now()

	rewritten, err := rewriter.Rewrite(ctx, c.Question)
	if err != nil {
		a.log.Warn("rewrite_failed_keeping_original_query",
			slog.String("question", c.Question),
			slog.String("error", err.Error()))
	} else {
		c.RewrittenQuery = rewritten
	}

	a.emit(ctx, EventRewriteStop,
		map[string]float64{"duration_ms": float64(time.Since(start).Milliseconds())},
		map[string]any{"rewritten": err == nil})
	return c
}

// llmRewriter is the default LLM-backed rewriter.
type llmRewriter struct {
	llm      LLMClient
	template string
}

func (r *llmRewriter) Rewrite(ctx context.Context, question string) (string, error) {
	resp, err := r.llm.Complete(ctx, renderPrompt(r.template, question, question), nil)
	if err != nil {
		return "", err
	}
	line := firstLine(resp)
	if line == "" {
		return "", errors.New("empty rewrite response")
	}
	return line, nil
}
