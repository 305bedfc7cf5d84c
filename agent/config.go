package agent

import "fmt"

// SearchMode selects which ranking(s) the search stage requests from the
// backend.
type SearchMode string

// Supported search modes.
const (
	ModeSemantic SearchMode = "semantic"
	ModeFulltext SearchMode = "fulltext"
	ModeHybrid   SearchMode = "hybrid"
)

// valid reports whether the mode is one of the supported constants.
func (m SearchMode) valid() bool {
	switch m {
	case ModeSemantic, ModeFulltext, ModeHybrid:
		return true
	}
	return false
}

// SearchOptions is the per-call contract passed to a Searcher. Limit bounds
// the ranking size, Threshold filters raw backend scores, and the weights
// are forwarded so natively-hybrid backends can apply the same fusion
// parameters the pipeline would.
type SearchOptions struct {
	Limit          int
	Threshold      float64
	Mode           SearchMode
	SemanticWeight float64
	FulltextWeight float64
}

// FusionConfig tunes reciprocal rank fusion. K is the smoothing constant:
// top ranks dominate while ties further down break gracefully. The weights
// scale each ranking's contribution.
type FusionConfig struct {
	K              float64
	SemanticWeight float64
	FulltextWeight float64
}

// DefaultFusionConfig returns the conventional RRF constant with equal
// ranking weights.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		K:              60.0,
		SemanticWeight: 1.0,
		FulltextWeight: 1.0,
	}
}

// Validate checks the fusion parameters.
func (c FusionConfig) Validate() error {
	if c.K <= 0 {
		return fmt.Errorf("fusion K must be positive, got %v", c.K)
	}
	if c.SemanticWeight < 0 || c.FulltextWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative, got %v/%v", c.SemanticWeight, c.FulltextWeight)
	}
	if c.SemanticWeight+c.FulltextWeight == 0 {
		return fmt.Errorf("at least one fusion weight must be positive")
	}
	return nil
}

// SearchConfig holds the search stage parameters that are not per-question
// (those live on the Context).
type SearchConfig struct {
	// Mode is the default ranking mode; hybrid fuses semantic and
	// full-text rankings with RRF.
	Mode SearchMode
	// Fusion tunes the hybrid fusion.
	Fusion FusionConfig
	// MaxConcurrency bounds the (query x collection) fan-out workers.
	MaxConcurrency int
}

// DefaultSearchConfig returns hybrid search with bounded fan-out.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Mode:           ModeHybrid,
		Fusion:         DefaultFusionConfig(),
		MaxConcurrency: 4,
	}
}

// Validate checks the search configuration.
func (c SearchConfig) Validate() error {
	if !c.Mode.valid() {
		return fmt.Errorf("unknown search mode %q", c.Mode)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("search maxConcurrency must be positive, got %d", c.MaxConcurrency)
	}
	if err := c.Fusion.Validate(); err != nil {
		return fmt.Errorf("fusion config invalid: %w", err)
	}
	return nil
}

// RerankConfig holds reranking stage parameters.
type RerankConfig struct {
	// Threshold drops chunks whose rerank score (0-10 scale for the
	// default implementation) falls below it.
	Threshold float64
	// MaxCandidates caps how many chunks are sent to the reranker; chunks
	// beyond the cap stay in the results unscored.
	MaxCandidates int
}

// DefaultRerankConfig returns a 0-10 scale cut at 7 with a 30-candidate cap.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		Threshold:     7.0,
		MaxCandidates: 30,
	}
}

// Validate checks the rerank configuration.
func (c RerankConfig) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("rerank threshold must be non-negative, got %v", c.Threshold)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("rerank maxCandidates must be positive, got %d", c.MaxCandidates)
	}
	return nil
}

// LoopConfig bounds the two self-correction loops.
type LoopConfig struct {
	// MaxIterations bounds search passes in the sufficiency loop,
	// including the initial pass.
	MaxIterations int
	// MaxCorrections bounds answer regenerations in the groundedness loop.
	MaxCorrections int
}

// DefaultLoopConfig returns conservative loop bounds.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations:  3,
		MaxCorrections: 2,
	}
}

// Validate checks the loop bounds.
func (c LoopConfig) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("loop maxIterations must be positive, got %d", c.MaxIterations)
	}
	if c.MaxCorrections < 0 {
		return fmt.Errorf("loop maxCorrections must be non-negative, got %d", c.MaxCorrections)
	}
	return nil
}

// PipelineConfig toggles the optional stages Run executes. Search and answer
// always run.
type PipelineConfig struct {
	Rewrite           bool
	Expand            bool
	Decompose         bool
	SelectCollections bool
	Rerank            bool
	SelfCorrectSearch bool
	SelfCorrectAnswer bool
}

// DefaultPipelineConfig enables rewriting, collection selection, and
// reranking; expansion, decomposition, and the self-correction loops stay
// opt-in.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Rewrite:           true,
		SelectCollections: true,
		Rerank:            true,
	}
}

// Config aggregates all tunable pipeline parameters.
type Config struct {
	Search   SearchConfig
	Rerank   RerankConfig
	Loops    LoopConfig
	Pipeline PipelineConfig
}

// DefaultConfig returns the default parameter set.
func DefaultConfig() Config {
	return Config{
		Search:   DefaultSearchConfig(),
		Rerank:   DefaultRerankConfig(),
		Loops:    DefaultLoopConfig(),
		Pipeline: DefaultPipelineConfig(),
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search config invalid: %w", err)
	}
	if err := c.Rerank.Validate(); err != nil {
		return fmt.Errorf("rerank config invalid: %w", err)
	}
	if err := c.Loops.Validate(); err != nil {
		return fmt.Errorf("loop config invalid: %w", err)
	}
	return nil
}
