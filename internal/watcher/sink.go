package watcher

// Sink receives the matches found during a cycle, in addition to the log.
// A Sink error is logged by the watcher and never fails the cycle.
type Sink interface {
	RecordMatches(runID string, matches []Match) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(runID string, matches []Match) error

// RecordMatches calls f.
func (f SinkFunc) RecordMatches(runID string, matches []Match) error {
	return f(runID, matches)
}

type nopSink struct{}

func (nopSink) RecordMatches(string, []Match) error { return nil }
