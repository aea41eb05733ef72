package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/dirwatcher/internal/config"
	"github.com/blackwell-systems/dirwatcher/internal/store"
	"github.com/blackwell-systems/dirwatcher/internal/watcher"
)

func TestWatchCommand(t *testing.T) {
	if watchCmd.Name() != "watch" {
		t.Errorf("expected name to be 'watch', got '%s'", watchCmd.Name())
	}

	if watchCmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	if watchCmd.Long == "" {
		t.Error("expected Long description to be set")
	}

	if watchCmd.Example == "" {
		t.Error("expected Example to be set")
	}

	if watchCmd.RunE == nil {
		t.Error("expected RunE to be set")
	}
}

func TestWatchCommandFlags(t *testing.T) {
	tests := []struct {
		flagName     string
		shorthand    string
		shouldHidden bool
	}{
		{flagName: "ext", shorthand: "e"},
		{flagName: "interval", shorthand: "i"},
		{flagName: "backoff"},
		{flagName: "no-history"},
		{flagName: "daemon"},
		{flagName: "daemon-child", shouldHidden: true},
		{flagName: "pid-file"},
		{flagName: "log-file"},
		{flagName: "stop"},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := watchCmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("expected flag '%s' to be registered", tt.flagName)
			}

			if !tt.shouldHidden && flag.Usage == "" {
				t.Errorf("expected flag '%s' to have usage text", tt.flagName)
			}

			if flag.Hidden != tt.shouldHidden {
				t.Errorf("expected flag '%s' hidden to be %v, got %v", tt.flagName, tt.shouldHidden, flag.Hidden)
			}

			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected flag '%s' shorthand %q, got %q", tt.flagName, tt.shorthand, flag.Shorthand)
			}
		})
	}
}

func TestWatchCommandFlagParsing(t *testing.T) {
	resetFlags(RootCmd)
	t.Cleanup(func() { resetFlags(RootCmd) })

	err := watchCmd.ParseFlags([]string{"-e", ".log", "-i", "0.25", "--backoff", "10s", "--no-history", "--pid-file=/tmp/test.pid"})
	require.NoError(t, err)

	assert.Equal(t, ".log", watchExt)
	assert.Equal(t, 0.25, watchInterval)
	assert.Equal(t, 10*time.Second, watchBackoff)
	assert.True(t, watchNoHistory)
	assert.Equal(t, "/tmp/test.pid", watchPIDFile)
	assert.False(t, watchDaemon)
}

func TestResolveWatchSettings_Defaults(t *testing.T) {
	home := isolateHome(t)
	resetFlags(RootCmd)
	t.Cleanup(func() { resetFlags(RootCmd) })

	dir := t.TempDir()
	s, err := resolveWatchSettings(config.Default(), []string{dir, "magic"})
	require.NoError(t, err)

	assert.Equal(t, dir, s.Dir)
	assert.Equal(t, "magic", s.Term)
	assert.Equal(t, ".txt", s.Ext)
	assert.Equal(t, time.Second, s.Interval)
	assert.Equal(t, 4*time.Second, s.Backoff)
	assert.True(t, s.History)
	assert.Equal(t, filepath.Join(home, ".dirwatcher", "dirwatcher.db"), s.DBPath)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "text", s.LogFormat)
}

func TestResolveWatchSettings_FlagsOverrideConfig(t *testing.T) {
	isolateHome(t)
	resetFlags(RootCmd)
	t.Cleanup(func() { resetFlags(RootCmd) })

	cfg := config.Default()
	cfg.Extension = ".md"
	cfg.Interval = 5 * time.Second

	watchExt = ".log"
	watchInterval = 0.5
	watchBackoff = time.Minute
	watchNoHistory = true

	s, err := resolveWatchSettings(cfg, []string{"relative/dir", "needle"})
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(s.Dir), "path is made absolute")
	assert.Equal(t, ".log", s.Ext)
	assert.Equal(t, 500*time.Millisecond, s.Interval)
	assert.Equal(t, time.Minute, s.Backoff)
	assert.False(t, s.History)
	assert.Empty(t, s.DBPath)
}

func TestResolveWatchSettings_Invalid(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name     string
		args     []string
		interval float64
		backoff  time.Duration
	}{
		{name: "empty term", args: []string{"/tmp", ""}},
		{name: "empty path", args: []string{"", "magic"}},
		{name: "missing term", args: []string{"/tmp"}},
		{name: "negative interval", args: []string{"/tmp", "magic"}, interval: -1},
		{name: "tiny interval", args: []string{"/tmp", "magic"}, interval: 1e-12},
		{name: "negative backoff", args: []string{"/tmp", "magic"}, backoff: -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(RootCmd)
			t.Cleanup(func() { resetFlags(RootCmd) })
			watchInterval = tt.interval
			watchBackoff = tt.backoff

			_, err := resolveWatchSettings(config.Default(), tt.args)
			assert.Error(t, err)
		})
	}
}

func TestDaemonArgs(t *testing.T) {
	resetFlags(RootCmd)
	t.Cleanup(func() { resetFlags(RootCmd) })
	watchPIDFile = "/tmp/w.pid"
	watchLogFile = "/tmp/w.log"

	s := &watchSettings{
		Dir:       "/var/log/app",
		Ext:       ".log",
		Term:      "-v",
		Interval:  250 * time.Millisecond,
		Backoff:   4 * time.Second,
		History:   true,
		DBPath:    "/tmp/h.db",
		LogLevel:  "debug",
		LogFormat: "json",
	}

	args := daemonArgs(s)
	joined := strings.Join(args, " ")

	assert.Equal(t, "watch", args[0])
	assert.Equal(t, []string{"--", "/var/log/app", "-v"}, args[len(args)-3:])
	assert.Contains(t, joined, "--interval 0.25")
	assert.Contains(t, joined, "--backoff 4s")
	assert.Contains(t, joined, "--db /tmp/h.db")
	assert.Contains(t, joined, "--pid-file /tmp/w.pid")
	assert.Contains(t, joined, "--log-format json")
	assert.NotContains(t, joined, "--daemon ")
	assert.NotContains(t, joined, "--no-history")

	s.History = false
	assert.Contains(t, daemonArgs(s), "--no-history")
}

func TestWatchCommand_ArgValidation(t *testing.T) {
	isolateHome(t)

	_, err := executeCommand(t, "watch", "/tmp")
	assert.Error(t, err, "search term is required")

	_, err = executeCommand(t, "watch", "--stop", "/tmp")
	assert.Error(t, err, "--stop takes no arguments")

	_, err = executeCommand(t, "watch", "/tmp", "magic", "--daemon", "--stop")
	assert.Error(t, err, "--daemon and --stop are exclusive")
}

func TestWatchCommand_StopWhenNotRunning(t *testing.T) {
	isolateHome(t)
	pidFile := filepath.Join(t.TempDir(), "watch.pid")

	out, err := executeCommand(t, "watch", "--stop", "--pid-file", pidFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")
}

func TestRunWatchLoop_RecordsHistory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello magic\nplain\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.md"), []byte("magic\n"), 0644))

	s := &watchSettings{
		Dir:      dir,
		Ext:      ".txt",
		Term:     "magic",
		Interval: 10 * time.Millisecond,
		Backoff:  10 * time.Millisecond,
		History:  true,
		DBPath:   filepath.Join(t.TempDir(), "history.db"),
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	stats, err := runWatchLoop(ctx, s, "run-1", logger)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Cycles, 1)
	assert.Equal(t, 1, stats.Matches, "the line is reported once across cycles")
	assert.Equal(t, watcher.StateStopped, stats.State)

	st, err := store.New(s.DBPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.GetRun("run-1")
	require.NoError(t, err)
	assert.False(t, run.StoppedAt.IsZero(), "run is finished on shutdown")
	assert.Equal(t, stats.Cycles, run.Cycles)
	assert.Equal(t, 1, run.Matches)

	matches, err := st.ListMatches(store.MatchFilter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a.txt", matches[0].FileName)
	assert.Equal(t, 1, matches[0].Line)
	assert.Equal(t, "hello magic", matches[0].Text)

	assert.Contains(t, logs.String(), `"event":"match_found"`)
	assert.Contains(t, logs.String(), `"event":"watch_stopped"`)
}

func TestRunWatchLoop_NoHistory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "history.db")

	s := &watchSettings{
		Dir:      dir,
		Ext:      ".txt",
		Term:     "magic",
		Interval: 10 * time.Millisecond,
		DBPath:   dbPath,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := runWatchLoop(ctx, s, "run-1", slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "no database is created without history")
}

func TestRunWatchLoop_MissingDirectoryKeepsPolling(t *testing.T) {
	s := &watchSettings{
		Dir:      filepath.Join(t.TempDir(), "not-yet"),
		Ext:      ".txt",
		Term:     "magic",
		Interval: 5 * time.Millisecond,
		Backoff:  5 * time.Millisecond,
	}

	var logs bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	stats, err := runWatchLoop(ctx, s, "run-1", slog.New(slog.NewJSONHandler(&logs, nil)))
	require.NoError(t, err)
	assert.Greater(t, stats.FailedCycles, 1, "directory errors do not stop the loop")
	assert.Contains(t, logs.String(), `"kind":"io"`)
}

func TestHistorySink(t *testing.T) {
	st, err := openHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.StartRun(&store.Run{ID: "run-1", Dir: "/d", Ext: ".txt", Term: "x", StartedAt: time.Now()}))

	sink := historySink{store: st}
	err = sink.RecordMatches("run-1", []watcher.Match{
		{Path: "/d/a.txt", Name: "a.txt", Term: "x", Line: 3, Text: "x marks", FoundAt: time.Now()},
	})
	require.NoError(t, err)

	matches, err := st.ListMatches(store.MatchFilter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "/d/a.txt", matches[0].FilePath)
	assert.Equal(t, "run-1", matches[0].RunID)
	assert.Equal(t, 3, matches[0].Line)
}
