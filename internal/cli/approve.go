package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve <doc-id> <file>",
	Short: "Approve a quarantined document for indexing",
	Long: `Re-ingest a quarantined document after review. The quarantine ledger
only records why a document was held, not its content, so the original
file must be supplied again. Suspicious lines stay quoted in the index.`,
	Args: cobra.ExactArgs(2),
	RunE: runApprove,
}

func init() {
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	docID, path := args[0], args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.knowledge.ApproveQuarantined(cmd.Context(), docID, string(data))
	if err != nil {
		return fmt.Errorf("approve %s: %w", docID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "approved doc %s (%d chunks indexed)\n", result.DocID, result.Chunks)
	return nil
}
