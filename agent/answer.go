package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Answer deduplicates the chunks of all results into ContextUsed and asks
// the answerer for the final answer. This is the one stage allowed to hard
// fail: an answerer error sets Context.Err and leaves Answer empty, since
// without an answer the pipeline has produced nothing useful.
//
// With self-correction enabled the groundedness loop re-judges the answer
// and regenerates it from judge feedback up to the correction bound. A
// judge failure accepts the current answer. No-op when the context has
// already failed.
func (a *Agent) Answer(ctx context.Context, c Context, opts ...StageOption) Context {
	if c.Err != nil {
		return c
	}
	st := applyStageOptions(opts)
	answerer := a.resolveAnswerer(st)

	selfCorrect := a.cfg.Pipeline.SelfCorrectAnswer
	if st.selfCorrect != nil {
		selfCorrect = *st.selfCorrect
	}
	maxCorrections := a.cfg.Loops.MaxCorrections
	if st.maxCorrections != nil {
		maxCorrections = *st.maxCorrections
	}

	c.ContextUsed = dedupeChunks(c.Results)

	a.emit(ctx, EventAnswerStart,
		map[string]float64{"context_chunk_count": float64(len(c.ContextUsed))},
		map[string]any{"question": c.Question})
	start := time.Now()

	text, err := answerer.Answer(ctx, c.Question, c.ContextUsed)
	if err != nil {
		c.Err = &StageError{Stage: StageAnswer, Err: err}
		a.log.Error("answer_generation_failed",
			slog.String("question", c.Question),
			slog.String("error", err.Error()))
		a.emit(ctx, EventAnswerStop,
			map[string]float64{
				"context_chunk_count": float64(len(c.ContextUsed)),
				"duration_ms":         float64(time.Since(start).Milliseconds()),
			},
			map[string]any{"failed": true})
		return c
	}
	c.Answer = text

	if selfCorrect {
		a.answerCorrectionLoop(ctx, st, answerer, &c, maxCorrections)
	}

	a.emit(ctx, EventAnswerStop,
		map[string]float64{
			"context_chunk_count": float64(len(c.ContextUsed)),
			"duration_ms":         float64(time.Since(start).Milliseconds()),
		},
		nil)
	return c
}

// answerCorrectionLoop judges groundedness and regenerates the answer until
// the judge is satisfied or the correction bound is hit. c is the loop-local
// copy owned by Answer, never the caller's.
func (a *Agent) answerCorrectionLoop(ctx context.Context, st stageSettings, answerer Answerer, c *Context, maxCorrections int) {
	judge := a.resolveGroundednessJudge(st)
	if judge == nil {
		a.log.Debug("answer_self_correction_skipped_no_judge")
		return
	}

	result := SelfCorrectAccepted
	for {
		attempt := c.CorrectionCount + 1
		a.emit(ctx, EventAnswerSelfCorrectStart,
			map[string]float64{"attempt": float64(attempt)}, nil)

		verdict, err := judge.JudgeGroundedness(ctx, c.Question, c.Answer, c.ContextUsed)
		if err != nil {
			a.log.Warn("groundedness_judge_failed_accepting_answer",
				slog.String("question", c.Question),
				slog.String("error", err.Error()))
			result = correctionOutcome(c.CorrectionCount)
			break
		}
		if verdict.Grounded {
			result = correctionOutcome(c.CorrectionCount)
			break
		}
		if c.CorrectionCount >= maxCorrections {
			result = SelfCorrectExhausted
			break
		}

		improved, err := a.correctAnswer(ctx, answerer, c.Question, c.Answer, verdict.Feedback, c.ContextUsed)
		if err != nil {
			a.log.Warn("answer_correction_failed_keeping_answer",
				slog.String("question", c.Question),
				slog.String("error", err.Error()))
			result = correctionOutcome(c.CorrectionCount)
			break
		}

		c.Corrections = append(append([]Correction(nil), c.Corrections...),
			Correction{OldAnswer: c.Answer, Feedback: verdict.Feedback})
		c.CorrectionCount++
		c.Answer = improved
		a.log.Info("answer_regenerated_from_feedback",
			slog.Int("correction", c.CorrectionCount),
			slog.String("feedback", verdict.Feedback))
	}

	a.emit(ctx, EventAnswerSelfCorrectStop, nil, map[string]any{"result": result})
}

// correctionOutcome maps the corrections performed so far to the loop's
// stop result when the answer is being kept.
func correctionOutcome(corrections int) string {
	if corrections == 0 {
		return SelfCorrectAccepted
	}
	return SelfCorrectCorrected
}

// correctAnswer regenerates an answer from judge feedback: answerers
// implementing Corrector handle it themselves, otherwise the agent's LLM
// runs the default correction prompt.
func (a *Agent) correctAnswer(ctx context.Context, answerer Answerer, question, oldAnswer, feedback string, chunks []Chunk) (string, error) {
	if corrector, ok := answerer.(Corrector); ok {
		return corrector.Correct(ctx, question, oldAnswer, feedback, chunks)
	}
	if a.llm == nil {
		return "", errors.New("no corrector available")
	}
	return completeCorrection(ctx, a.llm, defaultCorrectionPrompt, question, oldAnswer, feedback, chunks)
}

// completeCorrection renders and runs the correction prompt.
func completeCorrection(ctx context.Context, llm LLMClient, template, question, oldAnswer, feedback string, chunks []Chunk) (string, error) {
	prompt := renderPrompt(template, question, question)
	prompt = strings.ReplaceAll(prompt, "{answer}", oldAnswer)
	prompt = strings.ReplaceAll(prompt, "{feedback}", feedback)

	resp, err := llm.Complete(ctx, prompt, chunks)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp)
	if out == "" {
		return "", errors.New("empty correction response")
	}
	return out, nil
}

// llmAnswerer is the default LLM-backed answerer.
type llmAnswerer struct {
	llm      LLMClient
	template string
}

func (an *llmAnswerer) Answer(ctx context.Context, question string, chunks []Chunk) (string, error) {
	resp, err := an.llm.Complete(ctx, renderPrompt(an.template, question, question), chunks)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp)
	if out == "" {
		return "", errors.New("empty answer response")
	}
	return out, nil
}

// Correct implements Corrector with the default correction prompt.
func (an *llmAnswerer) Correct(ctx context.Context, question, oldAnswer, feedback string, chunks []Chunk) (string, error) {
	return completeCorrection(ctx, an.llm, defaultCorrectionPrompt, question, oldAnswer, feedback, chunks)
}
