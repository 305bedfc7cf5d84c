package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rag-agent/internal/di"
	"rag-agent/internal/usecase"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve chunks without generating an answer",
	Long: `Retrieve chunks for a query. No LLM is involved: the query goes to the
store verbatim and the results come back ranked but unreranked.

Examples:
  ragctl search "deploy process"
  ragctl search --mode=fulltext --limit 20 "canary stage"
  ragctl search --collections docs --seed-dir ./docs "rollback"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringSlice("collections", nil, "restrict retrieval to these collections")
	searchCmd.Flags().Int("limit", 0, "chunks per (query, collection) pair")
	searchCmd.Flags().Float64("threshold", -1, "minimum retrieval score")
	searchCmd.Flags().String("mode", "", "ranking mode: semantic, fulltext or hybrid")
	searchCmd.Flags().String("seed-dir", "", "ingest this directory of .txt/.md files first (into the first --collections entry, default \"docs\")")
	searchCmd.Flags().Bool("json", false, "output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	collections, _ := cmd.Flags().GetStringSlice("collections")
	limit, _ := cmd.Flags().GetInt("limit")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	mode, _ := cmd.Flags().GetString("mode")
	seedDir, _ := cmd.Flags().GetString("seed-dir")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	input := usecase.SearchInput{
		Query:       strings.Join(args, " "),
		Collections: collections,
		Limit:       limit,
		Threshold:   threshold,
		Mode:        mode,
	}

	return withComponents(cmd, func(ctx context.Context, c *di.ApplicationComponents) error {
		if seedDir != "" {
			if _, err := seedDirectory(ctx, c.IngestUsecase, seedDir, seedTarget(collections), ""); err != nil {
				return err
			}
		}

		out, err := c.SearchUsecase.Execute(ctx, input)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printSearchJSON(out)
		}
		printSearchOutput(out)
		return nil
	})
}

func printSearchOutput(out *usecase.SearchOutput) {
	total := 0
	for _, group := range out.Results {
		name := group.Collection
		if name == "" {
			name = "all collections"
		}
		fmt.Printf("%s:\n", name)
		if len(group.Chunks) == 0 {
			fmt.Println("  (no matches)")
			continue
		}
		for _, ch := range group.Chunks {
			fmt.Printf("  [%.2f] %s\n", ch.Score, firstLine(ch.Content, 110))
			total++
		}
	}
	fmt.Printf("\n%d chunk(s).\n", total)
}

func printSearchJSON(out *usecase.SearchOutput) error {
	type chunk struct {
		ChunkID    string  `json:"chunk_id"`
		Collection string  `json:"collection,omitempty"`
		Content    string  `json:"content"`
		Score      float64 `json:"score"`
	}
	type group struct {
		Query      string  `json:"query"`
		Collection string  `json:"collection,omitempty"`
		Chunks     []chunk `json:"chunks"`
	}

	groups := make([]group, 0, len(out.Results))
	for _, r := range out.Results {
		g := group{Query: r.Query, Collection: r.Collection, Chunks: make([]chunk, 0, len(r.Chunks))}
		for _, ch := range r.Chunks {
			g.Chunks = append(g.Chunks, chunk{
				ChunkID:    ch.ChunkID,
				Collection: ch.Collection,
				Content:    ch.Content,
				Score:      ch.Score,
			})
		}
		groups = append(groups, g)
	}
	return printJSON(groups)
}
