package watcher

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"
)

// maxLineBytes caps a single line. Longer lines fail the scan for that file.
const maxLineBytes = 1 << 20

// Match is one line containing the search term.
type Match struct {
	Path    string
	Name    string
	Term    string
	Line    int // 1-based
	Text    string
	FoundAt time.Time
}

// ScanFile reads path from the beginning and calls onMatch for every line
// with an index greater than offset that contains term. Lines are numbered
// from 1 and the comparison is an exact, case-sensitive substring test.
//
// It returns the number of lines in the file at scan time, which becomes the
// caller's new offset. On error the original offset is returned unchanged.
// The file is closed before ScanFile returns.
func ScanFile(path string, offset int, term string, onMatch func(Match)) (int, error) {
	if term == "" {
		return offset, errors.New("scanner: empty search term")
	}

	f, err := os.Open(path)
	if err != nil {
		return offset, fmt.Errorf("scanner: open %s: %w", path, err)
	}
	defer f.Close()

	needle := []byte(term)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		if line <= offset {
			continue
		}
		if !bytes.Contains(sc.Bytes(), needle) {
			continue
		}
		if onMatch != nil {
			onMatch(Match{
				Path:    path,
				Term:    term,
				Line:    line,
				Text:    sc.Text(),
				FoundAt: time.Now(),
			})
		}
	}
	if err := sc.Err(); err != nil {
		return offset, fmt.Errorf("scanner: read %s: %w", path, err)
	}

	return line, nil
}
