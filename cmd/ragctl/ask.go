package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rag-agent/internal/di"
	"rag-agent/internal/usecase"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run a question through the full pipeline",
	Long: `Run a question through the full pipeline: query rewriting, collection
selection, retrieval, reranking and answer generation, honoring the same
AGENT_* environment toggles as the server.

Examples:
  ragctl ask "how do deploys work"
  ragctl ask --collections docs,wiki --limit 10 "rollback procedure"
  ragctl ask --seed-dir ./docs "how do deploys work"   # memory store
  ragctl ask --self-correct "which services alert on-call"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringSlice("collections", nil, "restrict retrieval to these collections")
	askCmd.Flags().Bool("self-correct", false, "enable the retrieval and answer correction loops")
	askCmd.Flags().Bool("rerank", true, "allow the reranking stage (--rerank=false opts out)")
	askCmd.Flags().Int("limit", 0, "chunks per (query, collection) pair")
	askCmd.Flags().Float64("threshold", -1, "minimum retrieval score")
	askCmd.Flags().Bool("no-cache", false, "bypass the answer cache")
	askCmd.Flags().String("seed-dir", "", "ingest this directory of .txt/.md files first (into the first --collections entry, default \"docs\")")
	askCmd.Flags().Bool("json", false, "output as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	collections, _ := cmd.Flags().GetStringSlice("collections")
	limit, _ := cmd.Flags().GetInt("limit")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	seedDir, _ := cmd.Flags().GetString("seed-dir")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	input := usecase.AskInput{
		Question:    strings.Join(args, " "),
		Collections: collections,
		Limit:       limit,
		Threshold:   threshold,
		BypassCache: noCache,
	}
	// Only forward the toggles the user actually set, so the deployment
	// defaults stay in charge otherwise.
	if cmd.Flags().Changed("self-correct") {
		v, _ := cmd.Flags().GetBool("self-correct")
		input.SelfCorrect = &v
	}
	if cmd.Flags().Changed("rerank") {
		v, _ := cmd.Flags().GetBool("rerank")
		input.Rerank = &v
	}

	return withComponents(cmd, func(ctx context.Context, c *di.ApplicationComponents) error {
		if seedDir != "" {
			if _, err := seedDirectory(ctx, c.IngestUsecase, seedDir, seedTarget(collections), ""); err != nil {
				return err
			}
		}
		// One-shot refresh so the select stage sees the catalog without the
		// background worker running.
		if err := c.Refresher.Refresh(ctx); err != nil {
			log.Warn("catalog refresh failed", "error", err)
		}

		out, err := c.AskUsecase.Execute(ctx, input)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printAskJSON(out)
		}
		printAskOutput(out)
		return nil
	})
}

// seedTarget picks the collection a --seed-dir ingests into.
func seedTarget(collections []string) string {
	if len(collections) > 0 {
		return collections[0]
	}
	return "docs"
}

func printAskOutput(out *usecase.AskOutput) {
	fmt.Println(strings.TrimSpace(out.Answer))
	if out.Cached {
		fmt.Println("\n(answered from cache)")
	}
	if len(out.Context) > 0 {
		fmt.Println("\nSources:")
		for _, src := range out.Context {
			name := src.Collection
			if name == "" {
				name = "-"
			}
			fmt.Printf("  [%.2f] %-12s %s\n", src.Score, name, firstLine(src.Content, 100))
		}
	}
	if n := len(out.Corrections); n > 0 {
		fmt.Printf("\nAnswer was regenerated %d time(s) after groundedness checks.\n", n)
	}
}

func printAskJSON(out *usecase.AskOutput) error {
	type source struct {
		ChunkID    string  `json:"chunk_id"`
		Collection string  `json:"collection,omitempty"`
		Content    string  `json:"content"`
		Score      float64 `json:"score"`
	}
	type correction struct {
		OldAnswer string `json:"old_answer"`
		Feedback  string `json:"feedback"`
	}
	type payload struct {
		Answer      string       `json:"answer"`
		Collections []string     `json:"collections,omitempty"`
		Sources     []source     `json:"sources"`
		Corrections []correction `json:"corrections,omitempty"`
		Iterations  int          `json:"iterations"`
		Cached      bool         `json:"cached"`
	}

	p := payload{
		Answer:      out.Answer,
		Collections: out.Collections,
		Sources:     make([]source, 0, len(out.Context)),
		Iterations:  out.Iterations,
		Cached:      out.Cached,
	}
	for _, src := range out.Context {
		p.Sources = append(p.Sources, source{
			ChunkID:    src.ChunkID,
			Collection: src.Collection,
			Content:    src.Content,
			Score:      src.Score,
		})
	}
	for _, c := range out.Corrections {
		p.Corrections = append(p.Corrections, correction{OldAnswer: c.OldAnswer, Feedback: c.Feedback})
	}
	return printJSON(p)
}
