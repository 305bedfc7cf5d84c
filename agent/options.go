package agent

import "log/slog"

// Option configures an Agent at construction time.
type Option func(*Agent)

// WithLLM sets the completion client backing the default stage
// implementations.
func WithLLM(llm LLMClient) Option {
	return func(a *Agent) { a.llm = llm }
}

// WithSearcher sets the retrieval backend. Mandatory.
func WithSearcher(s Searcher) Option {
	return func(a *Agent) { a.searcher = s }
}

// WithRewriter replaces the default LLM-backed rewriter.
func WithRewriter(r Rewriter) Option {
	return func(a *Agent) { a.rewriter = r }
}

// WithExpander replaces the default LLM-backed expander.
func WithExpander(e Expander) Option {
	return func(a *Agent) { a.expander = e }
}

// WithDecomposer replaces the default LLM-backed decomposer.
func WithDecomposer(d Decomposer) Option {
	return func(a *Agent) { a.decomposer = d }
}

// WithSelector replaces the default LLM-backed collection selector.
func WithSelector(s Selector) Option {
	return func(a *Agent) { a.selector = s }
}

// WithReranker replaces the default LLM-backed reranker.
func WithReranker(r Reranker) Option {
	return func(a *Agent) { a.reranker = r }
}

// WithAnswerer replaces the default LLM-backed answerer. An Agent with an
// Answerer does not require an LLM client.
func WithAnswerer(an Answerer) Option {
	return func(a *Agent) { a.answerer = an }
}

// WithSufficiencyJudge replaces the default LLM-backed search judge.
func WithSufficiencyJudge(j SufficiencyJudge) Option {
	return func(a *Agent) { a.sufficiency = j }
}

// WithGroundednessJudge replaces the default LLM-backed answer judge.
func WithGroundednessJudge(j GroundednessJudge) Option {
	return func(a *Agent) { a.groundedness = j }
}

// WithCatalogSource provides the collection catalog Run feeds to the select
// stage.
func WithCatalogSource(src CatalogSource) Option {
	return func(a *Agent) { a.catalog = src }
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(a *Agent) { a.cfg = cfg }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		if log != nil {
			a.log = log
		}
	}
}

// WithTelemetry sets the event emitter. Defaults to a no-op emitter.
func WithTelemetry(t Telemetry) Option {
	return func(a *Agent) {
		if t != nil {
			a.telemetry = t
		}
	}
}

// stageSettings collects the per-call overrides a stage call may carry.
// Pointer fields distinguish "not set" from an explicit false/zero.
type stageSettings struct {
	rewriter     Rewriter
	expander     Expander
	decomposer   Decomposer
	selector     Selector
	searcher     Searcher
	reranker     Reranker
	answerer     Answerer
	sufficiency  SufficiencyJudge
	groundedness GroundednessJudge

	collections []string
	catalog     []Collection
	mode        SearchMode

	rerank         *bool
	selfCorrect    *bool
	maxIterations  int
	maxCorrections *int

	prompts map[Stage]string
}

// StageOption adjusts a single stage call.
type StageOption func(*stageSettings)

func applyStageOptions(opts []StageOption) stageSettings {
	var st stageSettings
	for _, opt := range opts {
		opt(&st)
	}
	return st
}

// UseRewriter overrides the rewriter for this call only.
func UseRewriter(r Rewriter) StageOption {
	return func(st *stageSettings) { st.rewriter = r }
}

// UseExpander overrides the expander for this call only.
func UseExpander(e Expander) StageOption {
	return func(st *stageSettings) { st.expander = e }
}

// UseDecomposer overrides the decomposer for this call only.
func UseDecomposer(d Decomposer) StageOption {
	return func(st *stageSettings) { st.decomposer = d }
}

// UseSelector overrides the selector for this call only.
func UseSelector(s Selector) StageOption {
	return func(st *stageSettings) { st.selector = s }
}

// UseSearcher overrides the searcher for this call only.
func UseSearcher(s Searcher) StageOption {
	return func(st *stageSettings) { st.searcher = s }
}

// UseReranker overrides the reranker for this call only.
func UseReranker(r Reranker) StageOption {
	return func(st *stageSettings) { st.reranker = r }
}

// UseAnswerer overrides the answerer for this call only.
func UseAnswerer(an Answerer) StageOption {
	return func(st *stageSettings) { st.answerer = an }
}

// UseSufficiencyJudge overrides the search judge for this call only.
func UseSufficiencyJudge(j SufficiencyJudge) StageOption {
	return func(st *stageSettings) { st.sufficiency = j }
}

// UseGroundednessJudge overrides the answer judge for this call only.
func UseGroundednessJudge(j GroundednessJudge) StageOption {
	return func(st *stageSettings) { st.groundedness = j }
}

// WithSearchCollections overrides the collection set for this search call,
// taking precedence over Context.Collections.
func WithSearchCollections(collections ...string) StageOption {
	return func(st *stageSettings) { st.collections = collections }
}

// WithCatalog supplies the candidate collections for a select stage inside
// Run, taking precedence over the agent's catalog source.
func WithCatalog(catalog []Collection) StageOption {
	return func(st *stageSettings) { st.catalog = catalog }
}

// WithSearchMode overrides the configured ranking mode for this call.
func WithSearchMode(mode SearchMode) StageOption {
	return func(st *stageSettings) { st.mode = mode }
}

// WithRerank toggles the rerank stage inside Run for this call, overriding
// Config.Pipeline.Rerank.
func WithRerank(enabled bool) StageOption {
	return func(st *stageSettings) { st.rerank = &enabled }
}

// WithSelfCorrect toggles the self-correction loop of the search or answer
// stage for this call.
func WithSelfCorrect(enabled bool) StageOption {
	return func(st *stageSettings) { st.selfCorrect = &enabled }
}

// WithMaxIterations overrides the sufficiency loop bound for this call.
func WithMaxIterations(n int) StageOption {
	return func(st *stageSettings) {
		if n > 0 {
			st.maxIterations = n
		}
	}
}

// WithMaxCorrections overrides the groundedness loop bound for this call.
func WithMaxCorrections(n int) StageOption {
	return func(st *stageSettings) {
		if n >= 0 {
			st.maxCorrections = &n
		}
	}
}

// WithPromptTemplate replaces the default prompt template of one stage for
// this call. Templates substitute {question} and {query}.
func WithPromptTemplate(stage Stage, template string) StageOption {
	return func(st *stageSettings) {
		if st.prompts == nil {
			st.prompts = make(map[Stage]string)
		}
		st.prompts[stage] = template
	}
}
