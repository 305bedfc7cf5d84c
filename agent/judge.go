package agent

import (
	"context"
	"errors"
	"strings"
)

// llmSufficiencyJudge is the default LLM-backed search judge.
type llmSufficiencyJudge struct {
	llm LLMClient
}

func (j *llmSufficiencyJudge) JudgeSufficiency(ctx context.Context, question string, chunks []Chunk) (SufficiencyVerdict, error) {
	prompt := renderPrompt(defaultSufficiencyPrompt, question, question)
	resp, err := j.llm.Complete(ctx, prompt, chunks)
	if err != nil {
		return SufficiencyVerdict{}, err
	}

	var parsed struct {
		Sufficient    bool   `json:"sufficient"`
		Missing       string `json:"missing"`
		FollowUpQuery string `json:"follow_up_query"`
	}
	if err := unmarshalLenient(resp, &parsed); err != nil {
		return SufficiencyVerdict{}, errors.New("sufficiency verdict is not valid json")
	}
	return SufficiencyVerdict{
		Sufficient:    parsed.Sufficient,
		Missing:       strings.TrimSpace(parsed.Missing),
		FollowUpQuery: strings.TrimSpace(parsed.FollowUpQuery),
	}, nil
}

// llmGroundednessJudge is the default LLM-backed answer judge.
type llmGroundednessJudge struct {
	llm LLMClient
}

func (j *llmGroundednessJudge) JudgeGroundedness(ctx context.Context, question, answer string, chunks []Chunk) (GroundednessVerdict, error) {
	prompt := renderPrompt(defaultGroundednessPrompt, question, question)
	prompt = strings.ReplaceAll(prompt, "{answer}", answer)

	resp, err := j.llm.Complete(ctx, prompt, chunks)
	if err != nil {
		return GroundednessVerdict{}, err
	}

	var parsed struct {
		Grounded bool   `json:"grounded"`
		Feedback string `json:"feedback"`
	}
	if err := unmarshalLenient(resp, &parsed); err != nil {
		return GroundednessVerdict{}, errors.New("groundedness verdict is not valid json")
	}
	return GroundednessVerdict{
		Grounded: parsed.Grounded,
		Feedback: strings.TrimSpace(parsed.Feedback),
	}, nil
}
