package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"rag-agent/internal/di"
	"rag-agent/internal/infra/config"
)

var (
	verbose bool
	log     *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Query and seed the retrieval pipeline from the command line",
	Long: `ragctl runs the retrieval pipeline in-process: it uses the same store,
cache and Ollama host the server uses, selected by the same environment
variables (STORE_BACKEND, DATABASE_URL, OLLAMA_BASE_URL, ...).

With the default in-memory store nothing persists between invocations; use
--seed-dir on ask and search to load documents first, or point STORE_BACKEND
at postgres for a durable corpus.

Example usage:
  ragctl seed ./docs --collection docs         # ingest a directory
  ragctl ask "how do deploys work"             # full pipeline answer
  ragctl search "deploy process" --mode=fulltext
  ragctl collections                           # list the catalog`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// withComponents wires the full component graph for one command invocation
// and tears it down afterwards.
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *di.ApplicationComponents) error) error {
	cfg := config.Load()
	ctx := cmd.Context()

	components, err := di.NewApplicationComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	return fn(ctx, components)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// firstLine flattens content to a single line and truncates it for terminal
// display.
func firstLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
