// Package watcher polls a directory for text files and reports lines that
// contain a search term.
//
// Every interval the Watcher lists the directory, reconciles the listing
// against its WatchSet (files matching the extension filter), then scans each
// watched file from its cursor to end-of-file. The cursor is the number of
// lines already consumed, so each line is reported at most once while a file
// only grows.
//
// Key features:
//   - Fixed-interval polling (no filesystem notification APIs)
//   - Per-file line cursors, rebuilt from a fresh listing on every start
//   - Per-file scan failures are logged and retried on the next cycle
//   - Directory outages are logged and the loop keeps polling
//   - Unexpected failures back off before the next cycle
//   - Graceful shutdown with SIGTERM/SIGINT handling between cycles
//   - Daemon mode support with PID file management
//
// Example usage:
//
//	w, err := watcher.New(watcher.Options{
//		Dir:      "/var/log/app",
//		Ext:      ".log",
//		Term:     "panic",
//		Interval: time.Second,
//		Logger:   slog.Default(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sig := watcher.NewShutdownSignal(context.Background(), slog.Default())
//	defer sig.Stop()
//
//	// Blocks until SIGINT/SIGTERM
//	if err := w.Run(sig.Context()); err != nil {
//		log.Fatal(err)
//	}
package watcher
