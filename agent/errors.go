package agent

import (
	"errors"
	"fmt"
)

// Stage names the pipeline stage an error originated from.
type Stage string

// Pipeline stages in execution order.
const (
	StageRewrite   Stage = "rewrite"
	StageExpand    Stage = "expand"
	StageDecompose Stage = "decompose"
	StageSelect    Stage = "select"
	StageSearch    Stage = "search"
	StageRerank    Stage = "rerank"
	StageAnswer    Stage = "answer"
)

// Construction errors returned by New when mandatory wiring is missing.
var (
	ErrNoSearcher = errors.New("agent: a searcher is required")
	ErrNoAnswerer = errors.New("agent: an llm client or answerer is required")
)

// StageError is the hard failure recorded on Context.Err. Only the answer
// stage produces one; every other stage degrades per its fail-soft policy.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

// Unwrap exposes the collaborator error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	return e.Err
}
