package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwatcher/internal/config"
)

var (
	dbPath     string
	configPath string
	logLevel   string
	logFormat  string

	// RootCmd is the root command for dirwatcher
	RootCmd = &cobra.Command{
		Use:   "dirwatcher",
		Short: "Poll a directory and report new lines containing a search term",
		Long: `dirwatcher polls a directory at a fixed interval, follows every file with
a matching extension, and reports each newly appended line that contains a
search term.

Each file has a line cursor, so a line is reported once while the file grows.
Files that appear are picked up on the next poll; files that disappear are
dropped. A missing or unreadable directory is logged and polling continues.

Quick Start:
  1. dirwatcher watch /var/log/app ERROR --ext .log
  2. Append to a .log file in that directory and watch the match events
  3. dirwatcher history --term ERROR

Features:
  • Fixed-interval polling, no filesystem notification APIs
  • Per-file line cursors, rebuilt from the directory on every start
  • Structured log events (text or JSON)
  • Optional SQLite history of runs and matches
  • Background daemon mode with PID file

Examples:
  # Watch in the foreground (Ctrl+C to stop)
  dirwatcher watch ./inbox TODO

  # Poll every 250ms for .log files, JSON logs
  dirwatcher watch /var/log/app panic -e .log -i 0.25 --log-format json

  # Run in the background
  dirwatcher watch /var/log/app panic --daemon

  # Show recent matches and runs
  dirwatcher history --limit 20
  dirwatcher runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "dirwatcher: poll a directory for lines containing a search term")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run 'dirwatcher watch <path> <search_term>' to start watching.")
			fmt.Fprintln(out, "Run 'dirwatcher --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "history database path (default: ~/.dirwatcher/dirwatcher.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/dirwatcher/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config: info)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (default from config: text)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(runsCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getDataDir returns ~/.dirwatcher, creating it if needed.
func getDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".dirwatcher")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dirwatcher directory: %w", err)
	}

	return dir, nil
}

// getDBPath returns the database path. The --db flag wins over the config
// file, which wins over the default.
func getDBPath(cfg *config.Config) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	if cfg != nil && cfg.DBPath != "" {
		return cfg.DBPath, nil
	}

	dir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dirwatcher.db"), nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.pid"), nil
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	dir, err := getDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.log"), nil
}
