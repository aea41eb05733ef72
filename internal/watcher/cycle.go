package watcher

import (
	"fmt"
	"path/filepath"
)

// RunCycle performs one poll: list the directory, reconcile the WatchSet,
// then scan every watched file from its cursor.
//
// A listing failure is returned. A failure to scan a single file is logged
// and that file keeps its previous offset so it is retried next cycle; the
// remaining files are still scanned.
func (w *Watcher) RunCycle() error {
	names, err := w.listDir(w.dir)
	if err != nil {
		return fmt.Errorf("watcher: list %s: %w", w.dir, err)
	}

	added, removed := w.files.Reconcile(names, w.filter)
	for _, name := range added {
		w.log.Info("watching new file", "event", EventFileWatchStarted, "file", name)
	}
	for _, name := range removed {
		w.log.Info("removed file", "event", EventFileWatchStopped, "file", name)
	}

	var found []Match
	for _, name := range w.files.Names() {
		wf, _ := w.files.Get(name)
		path := filepath.Join(w.dir, name)

		onMatch := func(m Match) {
			m.Name = name
			w.log.Info("found text",
				"event", EventMatchFound,
				"file", path,
				"term", m.Term,
				"line", m.Line,
			)
			found = append(found, m)
		}

		next, err := w.scan(path, wf.Offset, w.term, onMatch)
		if err == nil && next < wf.Offset {
			// Fewer lines than already consumed: the file was truncated or
			// replaced under the same name. Start it over.
			w.log.Warn("file shrank, rescanning from start",
				"file", path, "offset", wf.Offset, "lines", next)
			next, err = w.scan(path, InitialOffset, w.term, onMatch)
		}
		if err != nil {
			w.log.Warn("scan failed", "event", EventScanError, "file", path, "error", err)
			continue
		}

		wf.Offset = next
	}

	for _, m := range found {
		if wf, ok := w.files.Get(m.Name); ok {
			wf.Matches++
		}
	}

	w.stats.Cycles++
	w.stats.Matches += len(found)

	if len(found) > 0 {
		if err := w.sink.RecordMatches(w.runID, found); err != nil {
			w.log.Warn("failed to record matches", "count", len(found), "error", err)
		}
	}

	return nil
}
