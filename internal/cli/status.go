package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and backend status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()

	mem := rt.memory.Stats()
	fmt.Fprintf(out, "Memory store:    %d entries (%s)\n", mem.Count, mem.Path)

	kb := rt.knowledge.Stats()
	fmt.Fprintf(out, "Knowledge store: %d documents, %d chunks (%s)\n", kb.Documents, kb.Chunks, kb.Path)
	if kb.Quarantined > 0 {
		fmt.Fprintf(out, "Quarantined:     %d document(s) pending review\n", kb.Quarantined)
		for _, rec := range rt.knowledge.QuarantineRecords() {
			fmt.Fprintf(out, "  - %s (source %s, %d/%d chunks flagged)\n", rec.DocID, rec.Source, len(rec.SuspiciousChunks), rec.ChunkCount)
		}
	}

	if !mem.EmbeddingEnabled || !kb.EmbeddingEnabled {
		fmt.Fprintln(out, "Embedding:       unavailable, search is degraded")
	} else {
		fmt.Fprintf(out, "Embedding:       %s\n", rt.cfg.Embedding.Model)
	}

	migration := rt.knowledge.RebuildStatus()
	if migration.Running {
		fmt.Fprintf(out, "Migration:       running, %d/%d documents re-embedded to %s\n",
			migration.Completed, migration.TotalTargets, migration.TargetModel)
	} else if len(migration.Errors) > 0 {
		fmt.Fprintf(out, "Migration:       finished with %d error(s)\n", len(migration.Errors))
	}

	probeCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if info, err := rt.client.ModelInfo(probeCtx); err != nil {
		fmt.Fprintf(out, "Backend:         unreachable (%s)\n", rt.cfg.Generation.BaseURL)
	} else {
		fmt.Fprintf(out, "Backend:         %s serving %s\n", rt.cfg.Generation.BaseURL, info.ID)
	}
	return nil
}
