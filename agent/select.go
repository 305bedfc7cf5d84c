package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Select asks the selector which catalog collections are relevant to the
// question and records them with the selector's reasoning. Fail-soft:
// selector failure, an unusable response, or no resolvable selector selects
// every candidate collection, since an empty selection would silently drop
// data. Selected names not present in the catalog are discarded. No-op when
// the context has already failed or the catalog is empty.
func (a *Agent) Select(ctx context.Context, c Context, catalog []Collection, opts ...StageOption) Context {
	if c.Err != nil || len(catalog) == 0 {
		return c
	}
	st := applyStageOptions(opts)

	a.emit(ctx, EventSelectStart, nil, map[string]any{
		"question":     c.Question,
		"catalog_size": len(catalog),
	})
	start := time.Now()

	selection, err := a.runSelector(ctx, st, c.Question, catalog)
	if err != nil {
		a.log.Warn("collection_selection_failed_selecting_all",
			slog.String("question", c.Question),
			slog.String("error", err.Error()))
		selection = Selection{Collections: collectionNames(catalog)}
	}

	selected := filterToCatalog(selection.Collections, catalog)
	if len(selected) == 0 {
		selected = collectionNames(catalog)
		selection.Reasoning = ""
	}
	c.Collections = selected
	c.SelectionReasoning = selection.Reasoning

	a.emit(ctx, EventSelectStop,
		map[string]float64{
			"duration_ms":    float64(time.Since(start).Milliseconds()),
			"selected_count": float64(len(selected)),
		},
		map[string]any{"collections": selected})
	return c
}

// runSelector resolves and invokes the selector for one call.
func (a *Agent) runSelector(ctx context.Context, st stageSettings, question string, catalog []Collection) (Selection, error) {
	selector := a.resolveSelector(st)
	if selector == nil {
		return Selection{}, errors.New("no selector available")
	}
	return selector.SelectCollections(ctx, question, catalog)
}

// collectionNames lists the catalog names in catalog order.
func collectionNames(catalog []Collection) []string {
	names := make([]string, 0, len(catalog))
	for _, col := range catalog {
		names = append(names, col.Name)
	}
	return names
}

// filterToCatalog keeps the selected names that exist in the catalog,
// preserving selection order and dropping duplicates.
func filterToCatalog(selected []string, catalog []Collection) []string {
	known := make(map[string]struct{}, len(catalog))
	for _, col := range catalog {
		known[col.Name] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{}, len(selected))
	for _, name := range selected {
		name = strings.TrimSpace(name)
		if _, ok := known[name]; !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// llmSelector is the default LLM-backed collection selector.
type llmSelector struct {
	llm      LLMClient
	template string
}

func (s *llmSelector) SelectCollections(ctx context.Context, question string, catalog []Collection) (Selection, error) {
	prompt := renderPrompt(s.template, question, question)
	prompt = strings.ReplaceAll(prompt, "{collections}", formatCatalog(catalog))

	resp, err := s.llm.Complete(ctx, prompt, nil)
	if err != nil {
		return Selection{}, err
	}

	var parsed struct {
		Collections []string `json:"collections"`
		Reasoning   string   `json:"reasoning"`
	}
	if err := unmarshalLenient(resp, &parsed); err != nil {
		return Selection{}, errors.New("selection response is not valid json")
	}
	return Selection{Collections: parsed.Collections, Reasoning: parsed.Reasoning}, nil
}
