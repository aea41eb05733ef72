package watcher

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeLines creates (or replaces) dir/name with one line per element.
func writeLines(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writeLines(%s): %v", name, err)
	}
	return path
}

// appendLines appends lines to dir/name.
func appendLines(t *testing.T, dir, name string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("appendLines(%s): %v", name, err)
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		t.Fatalf("appendLines(%s): %v", name, err)
	}
}

// newTestWatcher returns a watcher on dir whose log output is captured in buf.
// Sleeping is replaced so loop tests run instantly.
func newTestWatcher(t *testing.T, dir, term string) (*Watcher, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	w, err := New(Options{
		Dir:      dir,
		Ext:      ".txt",
		Term:     term,
		Interval: time.Millisecond,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return w, buf
}

// offsetOf returns the cursor for name, failing the test if it is not watched.
func offsetOf(t *testing.T, w *Watcher, name string) int {
	t.Helper()
	wf, ok := w.Files().Get(name)
	if !ok {
		t.Fatalf("%s is not watched", name)
	}
	return wf.Offset
}
