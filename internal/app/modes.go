package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"deskauth/internal/credstore"
	"deskauth/pkg/logging"
)

// RunInteractive keeps the session alive while run executes. This mode is
// used by the console where the user stays signed in for a long time.
//
// Behavior:
//   - Watches the credential files and resyncs the Manager when another
//     process signs in, signs out or renews
//   - The renewal scheduler keeps running in the background
//   - SIGINT and SIGTERM cancel the context passed to run
//
// The persisted session is left in place when run returns.
func (a *Application) RunInteractive(ctx context.Context, run func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := a.startSync()
	if watcher != nil {
		defer watcher.Stop()
	}

	return run(ctx)
}

// startSync watches the storage directory for changes made by other
// processes. It returns nil when watching is not possible.
func (a *Application) startSync() *credstore.Watcher {
	manager := a.services.Manager
	watcher := credstore.NewWatcher(credstore.WatcherConfig{
		Dir:   a.services.StorageDir,
		Files: a.services.WatchFiles,
		OnChange: func() {
			if err := manager.Resync(context.Background()); err != nil {
				logging.Warn("Sync", "Failed to resync session: %v", err)
			}
		},
	})
	if err := watcher.Start(); err != nil {
		logging.Warn("Sync", "Not watching credential changes: %v", err)
		return nil
	}
	return watcher
}
