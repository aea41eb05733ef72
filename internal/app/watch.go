package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwatcher/internal/config"
	"github.com/blackwell-systems/dirwatcher/internal/logging"
	"github.com/blackwell-systems/dirwatcher/internal/output"
	"github.com/blackwell-systems/dirwatcher/internal/store"
	"github.com/blackwell-systems/dirwatcher/internal/watcher"
)

var (
	watchExt         string
	watchInterval    float64
	watchBackoff     time.Duration
	watchNoHistory   bool
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool

	watchCmd = &cobra.Command{
		Use:   "watch <path> <search_term>",
		Short: "Poll a directory and report lines containing a search term",
		Long: `Poll a directory at a fixed interval and report every newly appended line
that contains the search term.

Every file in the directory whose name ends with the extension is followed
with a line cursor. On each poll the directory is listed, new files are added
with their cursor at the start, removed files are dropped, and each followed
file is read from its cursor to the end. A file that shrinks is rescanned from
the beginning.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as a detached background process
  • Stop: Stop a running daemon

Flags override the config file ($XDG_CONFIG_HOME/dirwatcher/config.yaml),
which overrides the built-in defaults. Runs and matches are recorded in the
history database unless --no-history is given.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  dirwatcher watch ./inbox TODO

  # Watch .log files every half second
  dirwatcher watch /var/log/app ERROR --ext .log --interval 0.5

  # Search term that starts with a dash
  dirwatcher watch /var/log/app -- --verbose

  # Run as background daemon
  dirwatcher watch /var/log/app ERROR --daemon

  # Stop running daemon
  dirwatcher watch --stop`,
		Args: func(cmd *cobra.Command, args []string) error {
			if watchStop {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().StringVarP(&watchExt, "ext", "e", "", "file extension to watch (default from config: .txt)")
	watchCmd.Flags().Float64VarP(&watchInterval, "interval", "i", 0, "seconds between polls (default from config: 1.0)")
	watchCmd.Flags().DurationVar(&watchBackoff, "backoff", 0, "extra pause after an unexpected failure (default from config: 4s)")
	watchCmd.Flags().BoolVar(&watchNoHistory, "no-history", false, "do not record runs and matches in the history database")
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: ~/.dirwatcher/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: ~/.dirwatcher/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")

	watchCmd.MarkFlagsMutuallyExclusive("daemon", "stop")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")
}

// watchSettings is the fully resolved configuration of one watch run.
type watchSettings struct {
	Dir       string
	Ext       string
	Term      string
	Interval  time.Duration
	Backoff   time.Duration
	History   bool
	DBPath    string
	LogLevel  string
	LogFormat string
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Get default paths if not specified
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}

	if watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	// Handle stop command
	if watchStop {
		return stopWatchDaemon(cmd.OutOrStdout())
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := resolveWatchSettings(cfg, args)
	if err != nil {
		return err
	}

	// Handle daemon mode
	if watchDaemon {
		return startWatchDaemon(cmd.OutOrStdout(), s)
	}

	// Handle daemon child process
	if watchDaemonChild {
		return runWatchDaemonChild(s)
	}

	// Run in foreground
	return runWatchForeground(cmd.OutOrStdout(), cmd.ErrOrStderr(), s)
}

// resolveWatchSettings merges the positional arguments and flags over cfg.
// Zero-valued flags fall back to the config.
func resolveWatchSettings(cfg *config.Config, args []string) (*watchSettings, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("expected <path> <search_term>, got %d arguments", len(args))
	}
	if args[0] == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if args[1] == "" {
		return nil, fmt.Errorf("search term cannot be empty")
	}

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", args[0], err)
	}

	s := &watchSettings{
		Dir:       dir,
		Term:      args[1],
		Ext:       cfg.Extension,
		Interval:  cfg.Interval,
		Backoff:   cfg.ErrorBackoff,
		History:   cfg.History && !watchNoHistory,
		LogLevel:  cfg.LogLevel,
		LogFormat: cfg.LogFormat,
	}

	if watchExt != "" {
		s.Ext = watchExt
	}

	if watchInterval != 0 {
		if watchInterval < 0 || math.IsNaN(watchInterval) || math.IsInf(watchInterval, 0) {
			return nil, fmt.Errorf("interval must be a positive number of seconds, got %v", watchInterval)
		}
		s.Interval = time.Duration(watchInterval * float64(time.Second))
		if s.Interval <= 0 {
			return nil, fmt.Errorf("interval %v is too small", watchInterval)
		}
	}

	if watchBackoff < 0 {
		return nil, fmt.Errorf("backoff must be positive, got %s", watchBackoff)
	}
	if watchBackoff > 0 {
		s.Backoff = watchBackoff
	}

	if s.History {
		path, err := getDBPath(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to get database path: %w", err)
		}
		s.DBPath = path
	}

	return s, nil
}

// daemonArgs rebuilds the daemon child's command line from resolved settings.
// Positional arguments follow "--" so a term starting with a dash survives.
func daemonArgs(s *watchSettings) []string {
	args := []string{
		"watch",
		"--ext", s.Ext,
		"--interval", strconv.FormatFloat(s.Interval.Seconds(), 'f', -1, 64),
		"--backoff", s.Backoff.String(),
		"--pid-file", watchPIDFile,
		"--log-file", watchLogFile,
		"--log-level", s.LogLevel,
		"--log-format", s.LogFormat,
	}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if s.History {
		args = append(args, "--db", s.DBPath)
	} else {
		args = append(args, "--no-history")
	}
	return append(args, "--", s.Dir, s.Term)
}

func stopWatchDaemon(out io.Writer) error {
	// Check if daemon is running
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon")
	spinner.SetWriter(out)
	spinner.Start()
	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func startWatchDaemon(out io.Writer, s *watchSettings) error {
	spinner := output.NewSpinner("Starting daemon")
	spinner.SetWriter(out)
	spinner.Start()

	pid, err := watcher.StartDaemon(watchPIDFile, watchLogFile, daemonArgs(s))
	if err != nil {
		spinner.Stop()
		if errors.Is(err, watcher.ErrDaemonRunning) {
			return fmt.Errorf("daemon already running (PID file: %s)", watchPIDFile)
		}
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Fprintf(out, "\nWatching %s for %q in *%s files every %s\n", s.Dir, s.Term, s.Ext, s.Interval)
	fmt.Fprintf(out, "  PID:      %d\n", pid)
	fmt.Fprintf(out, "  PID file: %s\n", watchPIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", watchLogFile)
	fmt.Fprintf(out, "\nTo stop: dirwatcher watch --stop\n")

	return nil
}

func runWatchDaemonChild(s *watchSettings) error {
	// Stdout and stderr are already redirected to the log file.
	logger, err := logging.New(os.Stderr, s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}

	return watcher.RunDaemon(watchPIDFile, func() error {
		_, err := runWatchLoop(context.Background(), s, uuid.NewString(), logger)
		return err
	})
}

func runWatchForeground(out, errOut io.Writer, s *watchSettings) error {
	logger, err := logging.New(errOut, s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	started := time.Now()

	fmt.Fprintf(out, "Started %s\n", started.Format(time.RFC3339))
	fmt.Fprintf(out, "Watching %s for %q in *%s files every %s (press Ctrl+C to stop)\n", s.Dir, s.Term, s.Ext, s.Interval)
	if s.History {
		fmt.Fprintf(out, "Recording history to %s (run %s)\n", s.DBPath, runID)
	}
	fmt.Fprintln(out)

	stats, err := runWatchLoop(context.Background(), s, runID, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nShut down after %s uptime: %d cycles, %d matches\n",
		time.Since(started).Truncate(time.Second), stats.Cycles, stats.Matches)

	return nil
}

// runWatchLoop runs one watch until ctx is cancelled or SIGINT/SIGTERM
// arrives. When history is enabled the run and its matches are recorded.
func runWatchLoop(ctx context.Context, s *watchSettings, runID string, logger *slog.Logger) (watcher.Stats, error) {
	var sink watcher.Sink
	var st *store.Store

	if s.History {
		var err error
		st, err = openHistory(s.DBPath)
		if err != nil {
			return watcher.Stats{}, err
		}
		defer st.Close()

		run := &store.Run{
			ID:        runID,
			Dir:       s.Dir,
			Ext:       s.Ext,
			Term:      s.Term,
			Interval:  s.Interval,
			StartedAt: time.Now(),
		}
		if err := st.StartRun(run); err != nil {
			return watcher.Stats{}, err
		}
		sink = historySink{store: st}
	}

	w, err := watcher.New(watcher.Options{
		Dir:          s.Dir,
		Ext:          s.Ext,
		Term:         s.Term,
		Interval:     s.Interval,
		ErrorBackoff: s.Backoff,
		Logger:       logger,
		Sink:         sink,
		RunID:        runID,
	})
	if err != nil {
		return watcher.Stats{}, fmt.Errorf("failed to create watcher: %w", err)
	}

	sig := watcher.NewShutdownSignal(ctx, logger)
	defer sig.Stop()

	if err := w.Run(sig.Context()); err != nil {
		return w.Stats(), err
	}

	stats := w.Stats()
	if st != nil {
		if err := st.FinishRun(runID, time.Now(), stats.Cycles, stats.FailedCycles, stats.Matches); err != nil {
			logger.Warn("failed to record run summary", "run", runID, "error", err)
		}
	}

	return stats, nil
}

// openHistory opens the history database at path and creates the schema.
func openHistory(path string) (*store.Store, error) {
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}

	return st, nil
}
