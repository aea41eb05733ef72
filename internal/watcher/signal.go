package watcher

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// ShutdownSignal turns OS interrupt/terminate requests into a context that is
// cancelled exactly once. Signals received after the first are logged and
// otherwise ignored.
type ShutdownSignal struct {
	ctx       context.Context
	cancel    context.CancelFunc
	sigCh     chan os.Signal
	done      chan struct{}
	log       *slog.Logger
	triggered atomic.Bool
	stopOnce  sync.Once
}

// NewShutdownSignal registers for sigs (SIGINT and SIGTERM when none are
// given) and returns a ShutdownSignal whose Context is derived from parent.
// Call Stop to unregister.
func NewShutdownSignal(parent context.Context, logger *slog.Logger, sigs ...os.Signal) *ShutdownSignal {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(parent)
	s := &ShutdownSignal{
		ctx:    ctx,
		cancel: cancel,
		sigCh:  make(chan os.Signal, 1),
		done:   make(chan struct{}),
		log:    logger,
	}

	signal.Notify(s.sigCh, sigs...)
	go s.relay()

	return s
}

func (s *ShutdownSignal) relay() {
	for {
		select {
		case sig := <-s.sigCh:
			s.Trigger("signal " + sig.String())
		case <-s.done:
			return
		}
	}
}

// Trigger requests shutdown. Only the first call cancels the context.
func (s *ShutdownSignal) Trigger(reason string) {
	if !s.triggered.CompareAndSwap(false, true) {
		s.log.Warn("already stopping", "event", EventShutdownRequested, "reason", reason)
		return
	}
	s.log.Warn("shutdown requested", "event", EventShutdownRequested, "reason", reason)
	s.cancel()
}

// Triggered reports whether shutdown has been requested.
func (s *ShutdownSignal) Triggered() bool {
	return s.triggered.Load()
}

// Context is cancelled once shutdown is requested.
func (s *ShutdownSignal) Context() context.Context {
	return s.ctx
}

// Stop unregisters the signal handler and releases the context.
// It is safe to call more than once.
func (s *ShutdownSignal) Stop() {
	s.stopOnce.Do(func() {
		signal.Stop(s.sigCh)
		close(s.done)
		s.cancel()
	})
}
