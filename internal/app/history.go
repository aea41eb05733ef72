package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwatcher/internal/output"
	"github.com/blackwell-systems/dirwatcher/internal/store"
)

var (
	historyTerm  string
	historyFile  string
	historyRun   string
	historyLimit int

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recorded matches",
		Long: `Show matches recorded by previous and running watches, newest first.

History is only recorded when the watch runs with history enabled (the
default). It is never read back by the watcher: every watch starts with a
fresh directory listing and rescans files from the first line.`,
		Example: `  # Last 50 matches
  dirwatcher history

  # Matches for one term in one file
  dirwatcher history --term ERROR --file app.log

  # Matches from a single run
  dirwatcher history --run 3f2a9c1e-...`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().StringVar(&historyTerm, "term", "", "only show matches for this search term")
	historyCmd.Flags().StringVar(&historyFile, "file", "", "only show matches in this file name")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "only show matches from this run ID")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "maximum number of matches to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 0 {
		return fmt.Errorf("limit must be zero or positive, got %d", historyLimit)
	}

	st, err := openExistingHistory()
	if err != nil {
		return err
	}
	defer st.Close()

	matches, err := st.ListMatches(store.MatchFilter{
		RunID: historyRun,
		Term:  historyTerm,
		File:  historyFile,
		Limit: historyLimit,
	})
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderMatchTable(matches, output.IsColorEnabled()))
	return nil
}

// openExistingHistory opens the history database for reading. It does not
// create a database that is not there yet.
func openExistingHistory() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	path, err := getDBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w (no database at %s)", store.ErrNotInitialized, path)
	}

	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}
