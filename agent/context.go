// Package agent implements an agentic retrieval-augmented-generation
// pipeline: a context value threaded through pluggable stages (rewrite,
// expand, decompose, select, search, rerank, answer), hybrid result fusion
// via reciprocal rank fusion, and bounded self-correction loops for both
// retrieval sufficiency and answer groundedness.
//
// Callers construct a Context with NewContext, thread it through the stage
// methods of an Agent, and read Answer, Results, and Err from the final
// value. Every stage receives the Context by value and returns a new value;
// once Err is set, every stage becomes a no-op that passes the context
// through unchanged.
package agent

// Default bounds applied by NewContext.
const (
	DefaultLimit     = 5
	DefaultThreshold = 0.5
)

// Chunk is a retrievable unit of document text. Identity is ID; two chunks
// with the same ID are the same chunk for deduplication regardless of their
// cached scores.
type Chunk struct {
	ID   string
	Text string

	// Score is the retrieval score. In hybrid mode it is the normalized
	// fusion score in (0, 1]; in single-ranking modes it is the backend's
	// raw relevance score.
	Score float64

	// SemanticScore and FulltextScore carry the raw per-ranking scores when
	// the chunk was produced by hybrid fusion, so callers can audit how the
	// fused Score came about.
	SemanticScore float64
	FulltextScore float64

	Metadata map[string]any
}

// SearchResult groups the chunks retrieved for one (question, collection)
// pair. Collection is empty when the pair searched all collections.
// Iterations records the self-correction pass that produced the result.
type SearchResult struct {
	Question   string
	Collection string
	Chunks     []Chunk
	Iterations int
}

// Collection names a searchable collection for the selector stage.
type Collection struct {
	Name        string
	Description string
}

// Correction records one rejected answer and the judge feedback that
// triggered its regeneration.
type Correction struct {
	OldAnswer string
	Feedback  string
}

// Context is the pipeline's unit of state, created once per question. The
// original Question never changes after creation; stages fill in the
// remaining fields. Optional string fields use "" for unset, optional slices
// use nil.
type Context struct {
	Question string

	// Query refinements. Each stage consumes the most refined query
	// available: ExpandedQuery over RewrittenQuery over Question, with
	// SubQuestions taking over as the query set for search when present.
	RewrittenQuery string
	ExpandedQuery  string
	SubQuestions   []string

	Collections        []string
	SelectionReasoning string

	Limit     int
	Threshold float64

	Results     []SearchResult
	ContextUsed []Chunk

	Answer string
	Err    error

	CorrectionCount int
	Corrections     []Correction

	RerankScores map[string]float64

	QueriesTried     map[string]struct{}
	ReasonIterations int
}

// ContextOption adjusts a Context at construction time.
type ContextOption func(*Context)

// WithLimit sets the per-search chunk limit. Non-positive values are ignored.
func WithLimit(limit int) ContextOption {
	return func(c *Context) {
		if limit > 0 {
			c.Limit = limit
		}
	}
}

// WithThreshold sets the raw-score threshold passed to the searcher.
// Negative values are ignored.
func WithThreshold(threshold float64) ContextOption {
	return func(c *Context) {
		if threshold >= 0 {
			c.Threshold = threshold
		}
	}
}

// WithCollections pre-selects the collections to search, bypassing the
// selector stage.
func WithCollections(collections ...string) ContextOption {
	return func(c *Context) {
		if len(collections) > 0 {
			c.Collections = append([]string(nil), collections...)
		}
	}
}

// NewContext creates the pipeline state for one question with default
// bounds (limit 5, threshold 0.5).
func NewContext(question string, opts ...ContextOption) Context {
	c := Context{
		Question:  question,
		Limit:     DefaultLimit,
		Threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Failed reports whether a stage has hard-failed the pipeline.
func (c Context) Failed() bool {
	return c.Err != nil
}

// effectiveQuery returns the most refined single query produced so far.
func (c Context) effectiveQuery() string {
	switch {
	case c.ExpandedQuery != "":
		return c.ExpandedQuery
	case c.RewrittenQuery != "":
		return c.RewrittenQuery
	default:
		return c.Question
	}
}

// effectiveQueries returns the query set the search stage fans out over:
// the sub-questions when decomposition produced any, otherwise the single
// most refined query.
func (c Context) effectiveQueries() []string {
	if len(c.SubQuestions) > 0 {
		return c.SubQuestions
	}
	return []string{c.effectiveQuery()}
}

// dedupeChunks flattens the chunks of all results into a single slice,
// keeping the first occurrence of each chunk ID in order of appearance.
func dedupeChunks(results []SearchResult) []Chunk {
	seen := make(map[string]struct{})
	var out []Chunk
	for _, res := range results {
		for _, ch := range res.Chunks {
			if _, ok := seen[ch.ID]; ok {
				continue
			}
			seen[ch.ID] = struct{}{}
			out = append(out, ch)
		}
	}
	return out
}

// cloneSet copies a string set so stages never mutate a map shared with the
// caller's previous context value.
func cloneSet(src map[string]struct{}) map[string]struct{} {
	dst := make(map[string]struct{}, len(src)+1)
	for k := range src {
		dst[k] = struct{}{}
	}
	return dst
}
