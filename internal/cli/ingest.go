package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mizunoki/ragna/pkg/store"
)

var (
	ingestSource  string
	ingestDocID   string
	ingestReplace bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest documents into the knowledge base",
	Long: `Ingest one or more text or markdown files into the knowledge base.
Each file is sanitized, chunked and embedded. Suspicious content goes to
the quarantine ledger instead of the index when quarantine is enabled.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source label (defaults to the file name)")
	ingestCmd.Flags().StringVar(&ingestDocID, "doc-id", "", "explicit document id (single file only)")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "replace an existing document with the same id or checksum")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestDocID != "" && len(args) > 1 {
		return fmt.Errorf("--doc-id requires a single file, got %d", len(args))
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		source := ingestSource
		if source == "" {
			source = filepath.Base(path)
		}

		result, err := rt.engine.IngestText(cmd.Context(), string(data), source, store.IngestOptions{
			DocID:   ingestDocID,
			Replace: ingestReplace,
		})
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		printIngestResult(cmd, path, result)
	}
	return nil
}

func printIngestResult(cmd *cobra.Command, path string, result store.IngestResult) {
	out := cmd.OutOrStdout()
	switch {
	case result.Quarantined:
		fmt.Fprintf(out, "%s: quarantined (doc %s), review with 'ragna status'\n", path, result.DocID)
	case result.Duplicate:
		fmt.Fprintf(out, "%s: duplicate of doc %s, skipped\n", path, result.DocID)
	default:
		verb := "ingested"
		if result.Replaced {
			verb = "replaced"
		}
		fmt.Fprintf(out, "%s: %s as doc %s (%d chunks)", path, verb, result.DocID, result.Chunks)
		if result.Suspicious {
			fmt.Fprint(out, " [suspicious content quoted]")
		}
		fmt.Fprintln(out)
	}
}
