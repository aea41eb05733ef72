package watcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Defaults applied by New when the corresponding Options field is zero.
const (
	DefaultExt          = ".txt"
	DefaultInterval     = time.Second
	DefaultErrorBackoff = 4 * time.Second
)

// Values of the "event" attribute on log records emitted by the watcher.
const (
	EventWatchStarted      = "watch_started"
	EventWatchStopped      = "watch_stopped"
	EventFileWatchStarted  = "file_watch_started"
	EventFileWatchStopped  = "file_watch_stopped"
	EventMatchFound        = "match_found"
	EventScanError         = "scan_error"
	EventCycleError        = "cycle_error"
	EventShutdownRequested = "shutdown_requested"
)

// ErrCycleUnexpected wraps cycle failures that are not directory I/O errors,
// including recovered panics. The run loop backs off after one.
var ErrCycleUnexpected = errors.New("unexpected cycle failure")

// Options configures a Watcher.
type Options struct {
	Dir          string
	Ext          string
	Term         string
	Interval     time.Duration
	ErrorBackoff time.Duration // extra pause after an unexpected failure
	Logger       *slog.Logger
	Sink         Sink
	RunID        string
}

// Watcher polls a directory and scans matching files for a search term.
// All of its state is owned by the goroutine calling Run.
type Watcher struct {
	dir      string
	ext      string
	term     string
	interval time.Duration
	backoff  time.Duration
	runID    string

	log  *slog.Logger
	sink Sink

	files  *WatchSet
	filter func(string) bool

	// Seams for tests.
	listDir func(string) ([]string, error)
	scan    func(string, int, string, func(Match)) (int, error)
	sleep   func(done <-chan struct{}, d time.Duration) bool

	state State
	stats Stats
}

// Stats summarises a Watcher's activity so far.
type Stats struct {
	Cycles       int
	FailedCycles int
	Matches      int
	Watched      int
	State        State
}

// New creates a new Watcher instance.
func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}
	if opts.Term == "" {
		return nil, fmt.Errorf("search term cannot be empty")
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", opts.Interval)
	}
	if opts.Ext == "" {
		opts.Ext = DefaultExt
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = DefaultErrorBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}

	return &Watcher{
		dir:      opts.Dir,
		ext:      opts.Ext,
		term:     opts.Term,
		interval: opts.Interval,
		backoff:  opts.ErrorBackoff,
		runID:    opts.RunID,
		log:      opts.Logger,
		sink:     opts.Sink,
		files:    NewWatchSet(),
		filter:   ExtFilter(opts.Ext),
		listDir:  ListDir,
		scan:     ScanFile,
		sleep:    sleepOrDone,
		state:    StateRunning,
	}, nil
}

// Files returns the watcher's WatchSet. It must only be read from the
// goroutine running the loop, or after Run has returned.
func (w *Watcher) Files() *WatchSet {
	return w.files
}

// Stats returns counters for the cycles run so far.
func (w *Watcher) Stats() Stats {
	s := w.stats
	s.Watched = w.files.Len()
	s.State = w.state
	return s
}
