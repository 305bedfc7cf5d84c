package agent

import "context"

// LLMClient is the completion contract the default stage implementations
// run on. Prompt in, text out; judge, selector, decomposer, and reranker
// prompts expect the text to contain JSON and parse it leniently, so a
// malformed response is a recoverable condition, never a crash. Chunks carry
// the retrieval context for answer-style prompts; implementations decide how
// to present them to the model.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, chunks []Chunk) (string, error)
}

// LLMClientFunc adapts a plain function to LLMClient.
type LLMClientFunc func(ctx context.Context, prompt string, chunks []Chunk) (string, error)

// Complete implements LLMClient.
func (f LLMClientFunc) Complete(ctx context.Context, prompt string, chunks []Chunk) (string, error) {
	return f(ctx, prompt, chunks)
}

// Rewriter reformulates a question into a sharper retrieval query.
type Rewriter interface {
	Rewrite(ctx context.Context, question string) (string, error)
}

// RewriterFunc adapts a plain function to Rewriter.
type RewriterFunc func(ctx context.Context, question string) (string, error)

// Rewrite implements Rewriter.
func (f RewriterFunc) Rewrite(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

// Expander broadens a query with synonyms and related phrasing to improve
// recall.
type Expander interface {
	Expand(ctx context.Context, question string) (string, error)
}

// ExpanderFunc adapts a plain function to Expander.
type ExpanderFunc func(ctx context.Context, question string) (string, error)

// Expand implements Expander.
func (f ExpanderFunc) Expand(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

// Decomposer splits a compound question into independently searchable
// sub-questions.
type Decomposer interface {
	Decompose(ctx context.Context, question string) ([]string, error)
}

// DecomposerFunc adapts a plain function to Decomposer.
type DecomposerFunc func(ctx context.Context, question string) ([]string, error)

// Decompose implements Decomposer.
func (f DecomposerFunc) Decompose(ctx context.Context, question string) ([]string, error) {
	return f(ctx, question)
}

// Selection is the selector's verdict: which collections to search and why.
type Selection struct {
	Collections []string
	Reasoning   string
}

// Selector picks the subset of a collection catalog relevant to a question.
type Selector interface {
	SelectCollections(ctx context.Context, question string, catalog []Collection) (Selection, error)
}

// SelectorFunc adapts a plain function to Selector.
type SelectorFunc func(ctx context.Context, question string, catalog []Collection) (Selection, error)

// SelectCollections implements Selector.
func (f SelectorFunc) SelectCollections(ctx context.Context, question string, catalog []Collection) (Selection, error) {
	return f(ctx, question, catalog)
}

// Searcher retrieves ranked chunks for a query. An empty collection means
// all collections. Threshold in opts is interpreted by the backend against
// its own raw score scale.
type Searcher interface {
	Search(ctx context.Context, query, collection string, opts SearchOptions) ([]Chunk, error)
}

// SearcherFunc adapts a plain function to Searcher.
type SearcherFunc func(ctx context.Context, query, collection string, opts SearchOptions) ([]Chunk, error)

// Search implements Searcher.
func (f SearcherFunc) Search(ctx context.Context, query, collection string, opts SearchOptions) ([]Chunk, error) {
	return f(ctx, query, collection, opts)
}

// HybridSearcher is an optional upgrade a Searcher can implement to return
// the semantic and full-text rankings of one query in a single call. When a
// backend does not implement it, the search stage issues one Search call per
// ranking instead.
type HybridSearcher interface {
	HybridSearch(ctx context.Context, query, collection string, opts SearchOptions) (semantic, fulltext []Chunk, err error)
}

// Reranker re-scores chunks against the question. Returned chunks carry the
// rerank score in Score; chunks omitted from the returned slice count as
// unscored, which keeps a partial reranking usable.
type Reranker interface {
	Rerank(ctx context.Context, question string, chunks []Chunk) ([]Chunk, error)
}

// RerankerFunc adapts a plain function to Reranker.
type RerankerFunc func(ctx context.Context, question string, chunks []Chunk) ([]Chunk, error)

// Rerank implements Reranker.
func (f RerankerFunc) Rerank(ctx context.Context, question string, chunks []Chunk) ([]Chunk, error) {
	return f(ctx, question, chunks)
}

// Answerer generates the final answer from the question and the deduplicated
// retrieval context.
type Answerer interface {
	Answer(ctx context.Context, question string, chunks []Chunk) (string, error)
}

// AnswererFunc adapts a plain function to Answerer.
type AnswererFunc func(ctx context.Context, question string, chunks []Chunk) (string, error)

// Answer implements Answerer.
func (f AnswererFunc) Answer(ctx context.Context, question string, chunks []Chunk) (string, error) {
	return f(ctx, question, chunks)
}

// Corrector is an optional upgrade an Answerer can implement to regenerate
// an answer from judge feedback. Without it, the answer self-correction loop
// falls back to the agent's LLM and the default correction prompt.
type Corrector interface {
	Correct(ctx context.Context, question, oldAnswer, feedback string, chunks []Chunk) (string, error)
}

// SufficiencyVerdict is the search judge's output: whether the retrieved
// chunks can answer the question, what is missing, and an optional follow-up
// query to try next.
type SufficiencyVerdict struct {
	Sufficient    bool
	Missing       string
	FollowUpQuery string
}

// SufficiencyJudge decides whether retrieved chunks suffice to answer the
// question.
type SufficiencyJudge interface {
	JudgeSufficiency(ctx context.Context, question string, chunks []Chunk) (SufficiencyVerdict, error)
}

// SufficiencyJudgeFunc adapts a plain function to SufficiencyJudge.
type SufficiencyJudgeFunc func(ctx context.Context, question string, chunks []Chunk) (SufficiencyVerdict, error)

// JudgeSufficiency implements SufficiencyJudge.
func (f SufficiencyJudgeFunc) JudgeSufficiency(ctx context.Context, question string, chunks []Chunk) (SufficiencyVerdict, error) {
	return f(ctx, question, chunks)
}

// GroundednessVerdict is the answer judge's output: whether the answer is
// supported by the retrieval context, with feedback for regeneration when
// it is not.
type GroundednessVerdict struct {
	Grounded bool
	Feedback string
}

// GroundednessJudge decides whether an answer's claims are supported by the
// provided context.
type GroundednessJudge interface {
	JudgeGroundedness(ctx context.Context, question, answer string, chunks []Chunk) (GroundednessVerdict, error)
}

// GroundednessJudgeFunc adapts a plain function to GroundednessJudge.
type GroundednessJudgeFunc func(ctx context.Context, question, answer string, chunks []Chunk) (GroundednessVerdict, error)

// JudgeGroundedness implements GroundednessJudge.
func (f GroundednessJudgeFunc) JudgeGroundedness(ctx context.Context, question, answer string, chunks []Chunk) (GroundednessVerdict, error) {
	return f(ctx, question, answer, chunks)
}

// CatalogSource lists the collections available for selection and search.
type CatalogSource interface {
	ListCollections(ctx context.Context) ([]Collection, error)
}

// CatalogSourceFunc adapts a plain function to CatalogSource.
type CatalogSourceFunc func(ctx context.Context) ([]Collection, error)

// ListCollections implements CatalogSource.
func (f CatalogSourceFunc) ListCollections(ctx context.Context) ([]Collection, error) {
	return f(ctx)
}
