package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Run one memory compression pass",
	Long: `Check the memory store against the summarization threshold and, when
over it, compress the oldest batch of entries into a single summary.`,
	RunE: runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()

	summary, err := rt.summ.MaybeSummarize(cmd.Context())
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	if summary == "" {
		fmt.Fprintf(out, "below threshold (%d entries needed), nothing to do\n", rt.cfg.Summarize.Trigger)
		return nil
	}
	fmt.Fprintln(out, "compressed one batch into:")
	fmt.Fprintln(out, summary)
	return nil
}
