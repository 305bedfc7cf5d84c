package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// Agent executes the pipeline stages. Strategy slots resolve per call:
// an explicit per-call override wins, then the slot configured at
// construction, then the default implementation backed by the agent's LLM
// client. Optional slots without any resolvable implementation degrade per
// the stage's fail-soft policy; the mandatory slots (searcher and a way to
// answer) are validated by New so stage calls stay total.
type Agent struct {
	llm      LLMClient
	searcher Searcher

	rewriter     Rewriter
	expander     Expander
	decomposer   Decomposer
	selector     Selector
	reranker     Reranker
	answerer     Answerer
	sufficiency  SufficiencyJudge
	groundedness GroundednessJudge

	catalog CatalogSource

	cfg       Config
	log       *slog.Logger
	telemetry Telemetry
}

// New builds an Agent. A Searcher is mandatory, and either an LLM client or
// an explicit Answerer must be present; everything else has an LLM-backed
// default or fails soft.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{
		cfg:       DefaultConfig(),
		log:       slog.Default(),
		telemetry: NopTelemetry{},
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}
	if a.searcher == nil {
		return nil, ErrNoSearcher
	}
	if a.llm == nil && a.answerer == nil {
		return nil, ErrNoAnswerer
	}
	return a, nil
}

// Config returns the agent's effective configuration.
func (a *Agent) Config() Config {
	return a.cfg
}

// Run executes the configured stage sequence on c: rewrite, expand,
// decompose, select, search, rerank, answer, with the optional stages
// gated by Config.Pipeline. The per-call options are forwarded to every
// stage. Search and answer always run.
func (a *Agent) Run(ctx context.Context, c Context, opts ...StageOption) Context {
	st := applyStageOptions(opts)

	if a.cfg.Pipeline.Rewrite {
		c = a.Rewrite(ctx, c, opts...)
	}
	if a.cfg.Pipeline.Expand {
		c = a.Expand(ctx, c, opts...)
	}
	if a.cfg.Pipeline.Decompose {
		c = a.Decompose(ctx, c, opts...)
	}
	if a.cfg.Pipeline.SelectCollections && len(c.Collections) == 0 {
		if catalog := a.runCatalog(ctx, st); len(catalog) > 0 {
			c = a.Select(ctx, c, catalog, opts...)
		}
	}

	c = a.Search(ctx, c, opts...)

	rerank := a.cfg.Pipeline.Rerank
	if st.rerank != nil {
		rerank = *st.rerank
	}
	if rerank {
		c = a.Rerank(ctx, c, opts...)
	}

	return a.Answer(ctx, c, opts...)
}

// runCatalog resolves the candidate collections for Run's select stage:
// the per-call catalog wins, then the agent's catalog source. A source
// failure skips selection rather than aborting the run.
func (a *Agent) runCatalog(ctx context.Context, st stageSettings) []Collection {
	if len(st.catalog) > 0 {
		return st.catalog
	}
	if a.catalog == nil {
		return nil
	}
	catalog, err := a.catalog.ListCollections(ctx)
	if err != nil {
		a.log.Warn("catalog_listing_failed_skipping_selection",
			slog.String("error", err.Error()))
		return nil
	}
	return catalog
}

// resolveRewriter picks the rewriter for one call; nil means fail soft.
func (a *Agent) resolveRewriter(st stageSettings) Rewriter {
	if st.rewriter != nil {
		return st.rewriter
	}
	if a.rewriter != nil {
		return a.rewriter
	}
	if a.llm != nil {
		return &llmRewriter{llm: a.llm, template: st.prompt(StageRewrite, defaultRewritePrompt)}
	}
	return nil
}

func (a *Agent) resolveExpander(st stageSettings) Expander {
	if st.expander != nil {
		return st.expander
	}
	if a.expander != nil {
		return a.expander
	}
	if a.llm != nil {
		return &llmExpander{llm: a.llm, template: st.prompt(StageExpand, defaultExpandPrompt)}
	}
	return nil
}

func (a *Agent) resolveDecomposer(st stageSettings) Decomposer {
	if st.decomposer != nil {
		return st.decomposer
	}
	if a.decomposer != nil {
		return a.decomposer
	}
	if a.llm != nil {
		return &llmDecomposer{llm: a.llm, template: st.prompt(StageDecompose, defaultDecomposePrompt)}
	}
	return nil
}

func (a *Agent) resolveSelector(st stageSettings) Selector {
	if st.selector != nil {
		return st.selector
	}
	if a.selector != nil {
		return a.selector
	}
	if a.llm != nil {
		return &llmSelector{llm: a.llm, template: st.prompt(StageSelect, defaultSelectPrompt)}
	}
	return nil
}

func (a *Agent) resolveSearcher(st stageSettings) Searcher {
	if st.searcher != nil {
		return st.searcher
	}
	return a.searcher
}

func (a *Agent) resolveReranker(st stageSettings) Reranker {
	if st.reranker != nil {
		return st.reranker
	}
	if a.reranker != nil {
		return a.reranker
	}
	if a.llm != nil {
		return &llmReranker{llm: a.llm, template: st.prompt(StageRerank, defaultRerankPrompt)}
	}
	return nil
}

func (a *Agent) resolveAnswerer(st stageSettings) Answerer {
	if st.answerer != nil {
		return st.answerer
	}
	if a.answerer != nil {
		return a.answerer
	}
	if a.llm != nil {
		return &llmAnswerer{llm: a.llm, template: st.prompt(StageAnswer, defaultAnswerPrompt)}
	}
	return nil
}

func (a *Agent) resolveSufficiencyJudge(st stageSettings) SufficiencyJudge {
	if st.sufficiency != nil {
		return st.sufficiency
	}
	if a.sufficiency != nil {
		return a.sufficiency
	}
	if a.llm != nil {
		return &llmSufficiencyJudge{llm: a.llm}
	}
	return nil
}

func (a *Agent) resolveGroundednessJudge(st stageSettings) GroundednessJudge {
	if st.groundedness != nil {
		return st.groundedness
	}
	if a.groundedness != nil {
		return a.groundedness
	}
	if a.llm != nil {
		return &llmGroundednessJudge{llm: a.llm}
	}
	return nil
}

// prompt returns the per-call template for a stage, falling back to the
// stage default.
func (st stageSettings) prompt(stage Stage, fallback string) string {
	if tmpl, ok := st.prompts[stage]; ok && tmpl != "" {
		return tmpl
	}
	return fallback
}
