package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	migrateForce bool
	migrateWait  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Re-embed knowledge documents with the configured model",
	Long: `Start a background re-embedding of knowledge documents whose stored
embedding model differs from the configured one. With --force every
document is re-embedded regardless of its recorded model.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "re-embed every document")
	migrateCmd.Flags().BoolVar(&migrateWait, "wait", true, "block until the migration finishes")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()

	state := rt.knowledge.RebuildEmbeddings(migrateForce)
	if state.TotalTargets == 0 {
		fmt.Fprintf(out, "all documents already use %s\n", state.TargetModel)
		return nil
	}
	fmt.Fprintf(out, "migrating %d document(s) to %s\n", state.TotalTargets, state.TargetModel)

	if !migrateWait {
		return nil
	}
	for state.Running {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(200 * time.Millisecond):
		}
		state = rt.knowledge.RebuildStatus()
	}
	if len(state.Errors) > 0 {
		fmt.Fprintf(out, "finished with %d error(s):\n", len(state.Errors))
		for _, e := range state.Errors {
			fmt.Fprintf(out, "  %s\n", e)
		}
		return fmt.Errorf("%d document(s) failed to migrate", len(state.Errors))
	}
	fmt.Fprintf(out, "done, %d document(s) re-embedded\n", state.Completed)
	return nil
}
