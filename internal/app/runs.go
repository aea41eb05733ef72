package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwatcher/internal/output"
)

var (
	runsLimit int

	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "Show recorded watch runs",
		Long: `Show watch runs recorded in the history database, newest first.

A run without a stop time is either still active or ended without a clean
shutdown.`,
		Example: `  dirwatcher runs
  dirwatcher runs --limit 5`,
		Args: cobra.NoArgs,
		RunE: runRuns,
	}
)

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs to show (0 for all)")
}

func runRuns(cmd *cobra.Command, args []string) error {
	if runsLimit < 0 {
		return fmt.Errorf("limit must be zero or positive, got %d", runsLimit)
	}

	st, err := openExistingHistory()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(runsLimit)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderRunTable(runs, output.IsColorEnabled()))
	return nil
}
