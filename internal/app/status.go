package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwatcher/internal/store"
	"github.com/blackwell-systems/dirwatcher/internal/watcher"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check daemon status and history statistics",
	Long: `Display the current status of the dirwatcher daemon and the history database.

Shows:
  • Daemon running status and PID
  • What the most recent run is watching
  • Number of recorded runs and matches
  • History database location and size`,
	Example: `  # Check status
  dirwatcher status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	// Register with root command
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	pidFile := watchPIDFile
	if pidFile == "" {
		p, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get PID file path: %w", err)
		}
		pidFile = p
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dbPath, err := getDBPath(cfg)
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}

	// Check daemon status
	daemonRunning, err := watcher.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	const label = "%-10s"

	if daemonRunning {
		pid, _ := watcher.DaemonPID(pidFile)
		fmt.Fprintf(out, label+"running (since %s, PID %d)\n", "Daemon:", daemonSince(pidFile), pid)
	} else {
		fmt.Fprintf(out, label+"stopped  (run 'dirwatcher watch <path> <term> --daemon')\n", "Daemon:")
	}

	fi, err := os.Stat(dbPath)
	if os.IsNotExist(err) {
		fmt.Fprintf(out, label+"none yet (%s)\n", "History:", dbPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat database: %w", err)
	}

	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	printHistoryStatus(out, st, dbPath, fi.Size())
	return nil
}

// printHistoryStatus prints the latest run and the match totals. A database
// without tables is reported rather than treated as an error.
func printHistoryStatus(out io.Writer, st *store.Store, dbPath string, size int64) {
	const label = "%-10s"

	runs, err := st.ListRuns(0)
	if err != nil {
		fmt.Fprintf(out, label+"%s (%v)\n", "History:", dbPath, err)
		return
	}

	if len(runs) > 0 {
		last := runs[0]
		state := "active"
		if !last.StoppedAt.IsZero() {
			state = "stopped " + formatDuration(time.Since(last.StoppedAt))
		}
		fmt.Fprintf(out, label+"%s/*%s for %q every %s (%s)\n", "Last run:", last.Dir, last.Ext, last.Term, last.Interval, state)
	}

	total, err := st.TotalMatches()
	if err != nil {
		total = 0
	}
	fmt.Fprintf(out, label+"%s runs · %s matches\n", "Recorded:", formatNumber(len(runs)), formatNumber(total))
	fmt.Fprintf(out, label+"%s · %s\n", "History:", dbPath, formatSize(size))
}

// daemonSince uses the PID file's mtime as the daemon start time.
func daemonSince(pidFile string) string {
	fi, err := os.Stat(pidFile)
	if err != nil {
		return "unknown"
	}
	return formatDuration(time.Since(fi.ModTime()))
}

// formatNumber adds thousands separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", formatNumber(n/1000), n%1000)
}

// formatSize converts bytes to human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.0f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.0f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatDuration formats a duration in human-readable form
func formatDuration(d time.Duration) string {
	if d < 5*time.Second {
		return "just now"
	}
	if d < time.Minute {
		return fmt.Sprintf("%d seconds ago", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
