package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// State is the run loop's lifecycle state.
type State int

const (
	StateRunning State = iota
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Run polls until ctx is cancelled, then returns nil.
//
// Cancellation is only observed between cycles: a cycle that has started
// always finishes. Directory I/O failures are logged and polling continues at
// the normal interval. Any other failure, including a panic inside the cycle,
// is logged and followed by the error backoff on top of the interval.
func (w *Watcher) Run(ctx context.Context) error {
	w.state = StateRunning
	w.log.Info("watching directory",
		"event", EventWatchStarted,
		"dir", w.dir,
		"ext", w.ext,
		"term", w.term,
		"interval", w.interval,
	)

	for ctx.Err() == nil {
		pause := w.interval

		if err := w.guardedCycle(); err != nil {
			w.stats.FailedCycles++
			if isIOError(err) {
				w.log.Error("directory unavailable",
					"event", EventCycleError, "kind", "io", "dir", w.dir, "error", err)
			} else {
				w.log.Error("unhandled cycle failure",
					"event", EventCycleError, "kind", "unexpected", "error", err, "backoff", w.backoff)
				pause += w.backoff
			}
		}

		if !w.sleep(ctx.Done(), pause) {
			break
		}
	}

	w.state = StateStopping
	w.log.Info("stopping watcher", "cycles", w.stats.Cycles, "matches", w.stats.Matches)
	w.state = StateStopped
	w.log.Info("watcher stopped", "event", EventWatchStopped, "watched", w.files.Len())

	return nil
}

// guardedCycle runs one cycle and turns a panic into ErrCycleUnexpected.
func (w *Watcher) guardedCycle() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCycleUnexpected, r)
		}
	}()

	if err := w.RunCycle(); err != nil {
		if isIOError(err) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrCycleUnexpected, err)
	}
	return nil
}

// isIOError reports whether err is a filesystem error on the watched path,
// such as the directory being missing or unreadable.
func isIOError(err error) bool {
	if errors.Is(err, ErrCycleUnexpected) {
		return false
	}
	var pathErr *fs.PathError
	return errors.As(err, &pathErr) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}

// sleepOrDone waits for d or until done is closed. It returns false if done
// was closed first.
func sleepOrDone(done <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
}
