package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rag-agent/internal/di"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List the searchable collections",
	RunE:  runCollections,
}

func init() {
	rootCmd.AddCommand(collectionsCmd)

	collectionsCmd.Flags().Bool("json", false, "output as JSON")
}

func runCollections(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return withComponents(cmd, func(ctx context.Context, c *di.ApplicationComponents) error {
		cols, err := c.Store.ListCollections(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			type collection struct {
				Name        string `json:"name"`
				Description string `json:"description,omitempty"`
			}
			out := make([]collection, 0, len(cols))
			for _, col := range cols {
				out = append(out, collection{Name: col.Name, Description: col.Description})
			}
			return printJSON(out)
		}

		if len(cols) == 0 {
			fmt.Println("No collections.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDESCRIPTION")
		for _, col := range cols {
			fmt.Fprintf(w, "%s\t%s\n", col.Name, col.Description)
		}
		return w.Flush()
	})
}
