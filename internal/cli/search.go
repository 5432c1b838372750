package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchStore string
	searchTopK  int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base or memory store",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchStore, "store", "knowledge", "store to search (knowledge or memory)")
	searchCmd.Flags().IntVar(&searchTopK, "top", 5, "number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	query := args[0]

	switch searchStore {
	case "knowledge":
		results, err := rt.knowledge.Search(cmd.Context(), query, searchTopK)
		if err != nil {
			return fmt.Errorf("search knowledge: %w", err)
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "no results")
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(out, "%d. score=%.3f src=%s doc=%s idx=%d\n   %s\n", i+1, r.Score, r.Source, r.DocID, r.Index, firstLine(r.Text, 200))
		}
	case "memory":
		results, err := rt.memory.Search(cmd.Context(), query, searchTopK)
		if err != nil {
			return fmt.Errorf("search memory: %w", err)
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "no results")
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(out, "%d. score=%.3f id=%s\n   %s\n", i+1, r.Score, r.ID, firstLine(r.Text, 200))
		}
	default:
		return fmt.Errorf("unknown store %q (use knowledge or memory)", searchStore)
	}
	return nil
}

// firstLine flattens text to its first line, truncated to max characters.
func firstLine(text string, max int) string {
	for i, ch := range text {
		if ch == '\n' {
			text = text[:i]
			break
		}
	}
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
