package app

import (
	"github.com/blackwell-systems/dirwatcher/internal/store"
	"github.com/blackwell-systems/dirwatcher/internal/watcher"
)

// historySink records each cycle's matches in the history database.
type historySink struct {
	store *store.Store
}

func (h historySink) RecordMatches(runID string, matches []watcher.Match) error {
	rows := make([]*store.Match, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, &store.Match{
			RunID:    runID,
			FilePath: m.Path,
			FileName: m.Name,
			Term:     m.Term,
			Line:     m.Line,
			Text:     m.Text,
			FoundAt:  m.FoundAt,
		})
	}
	return h.store.InsertMatches(runID, rows)
}
