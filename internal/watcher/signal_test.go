package watcher

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer lets the relay goroutine and the test share a log buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestShutdownSignal_TriggerIsIdempotent(t *testing.T) {
	out := &syncBuffer{}
	s := NewShutdownSignal(context.Background(), slog.New(slog.NewTextHandler(out, nil)), syscall.SIGUSR2)
	defer s.Stop()

	assert.False(t, s.Triggered())
	require.NoError(t, s.Context().Err())

	s.Trigger("test")
	s.Trigger("test again")

	assert.True(t, s.Triggered())
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)
	assert.Equal(t, 1, strings.Count(out.String(), "shutdown requested"))
	assert.Equal(t, 1, strings.Count(out.String(), "already stopping"))
}

func TestShutdownSignal_OSSignalCancelsContext(t *testing.T) {
	out := &syncBuffer{}
	s := NewShutdownSignal(context.Background(), slog.New(slog.NewTextHandler(out, nil)), syscall.SIGUSR1)
	defer s.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after SIGUSR1")
	}
	assert.True(t, s.Triggered())

	// A second signal while stopping is only logged.
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "already stopping")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownSignal_StopsRunLoop(t *testing.T) {
	dir := t.TempDir()
	writeLines(t, dir, "a.txt", "magic")
	w, _ := newTestWatcher(t, dir, "magic")

	s := NewShutdownSignal(context.Background(), nil, syscall.SIGUSR2)
	defer s.Stop()

	done := make(chan error, 1)
	go func() { done <- w.Run(s.Context()) }()

	time.Sleep(20 * time.Millisecond)
	s.Trigger("test")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not stop")
	}
	assert.Equal(t, StateStopped, w.Stats().State)
	assert.GreaterOrEqual(t, w.Stats().Cycles, 1)
}

func TestShutdownSignal_StopIsSafeTwice(t *testing.T) {
	s := NewShutdownSignal(context.Background(), nil, syscall.SIGUSR2)
	s.Stop()
	s.Stop()
	assert.Error(t, s.Context().Err())
}
