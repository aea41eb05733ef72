package store

import "time"

// Run is one invocation of the watch command.
type Run struct {
	ID           string
	Dir          string
	Ext          string
	Term         string
	Interval     time.Duration
	StartedAt    time.Time
	StoppedAt    time.Time // zero while the run is active or if it crashed
	Cycles       int
	FailedCycles int
	Matches      int
}

// Match records a line that contained the search term.
type Match struct {
	ID       int64
	RunID    string
	FilePath string
	FileName string
	Term     string
	Line     int
	Text     string
	FoundAt  time.Time
}

// MatchFilter narrows ListMatches. Zero fields are ignored.
type MatchFilter struct {
	RunID string
	Term  string
	File  string // matched against the file name
	Limit int
}
