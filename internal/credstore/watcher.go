package credstore

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"deskauth/pkg/logging"
)

const (
	// DefaultPollInterval is used when fsnotify cannot watch the directory.
	DefaultPollInterval = 2 * time.Second
	// DefaultDebounceInterval collapses bursts of events (temp file, rename,
	// WAL checkpoint) into one notification.
	DefaultDebounceInterval = 200 * time.Millisecond
)

// WatcherConfig holds configuration for the credential watcher.
type WatcherConfig struct {
	// Dir is the storage directory.
	Dir string
	// Files are the names inside Dir that carry the record.
	Files []string
	// PollInterval is the fallback polling interval.
	PollInterval time.Duration
	// Debounce delays OnChange until events settle.
	Debounce time.Duration
	// OnChange is called after the stored record changed on disk, e.g.
	// because another deskauth process signed in or out.
	OnChange func()
}

// Watcher notices credential changes made by other processes. It uses
// fsnotify and falls back to polling modification times.
type Watcher struct {
	mu      sync.Mutex
	config  WatcherConfig
	fsw     *fsnotify.Watcher
	stopCh  chan struct{}
	running bool

	lastModTimes map[string]time.Time

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher applies defaults to config.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Debounce == 0 {
		config.Debounce = DefaultDebounceInterval
	}
	return &Watcher{config: config, lastModTimes: map[string]time.Time{}}
}

// Start begins watching. Starting a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	w.stopCh = make(chan struct{})
	w.running = true

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("CredWatcher", "fsnotify not available, falling back to polling: %v", err)
		go w.poll(w.stopCh)
		return nil
	}
	if err := fsw.Add(w.config.Dir); err != nil {
		logging.Warn("CredWatcher", "Failed to watch %s, falling back to polling: %v", w.config.Dir, err)
		fsw.Close()
		go w.poll(w.stopCh)
		return nil
	}
	w.fsw = fsw

	go w.processEvents(w.stopCh, fsw.Events, fsw.Errors)

	logging.Debug("CredWatcher", "Watching %s for credential changes", w.config.Dir)
	return nil
}

func (w *Watcher) processEvents(stopCh <-chan struct{}, eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if !w.isRelevant(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logging.Debug("CredWatcher", "Credential file changed: %s (%s)", event.Name, event.Op)
			w.triggerDebounced()
		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("CredWatcher", err, "fsnotify error")
		}
	}
}

func (w *Watcher) isRelevant(name string) bool {
	for _, f := range w.config.Files {
		if f == name {
			return true
		}
	}
	return false
}

func (w *Watcher) triggerDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		running := w.running
		callback := w.config.OnChange
		w.mu.Unlock()

		if running && callback != nil {
			callback()
		}
	})
}

func (w *Watcher) poll(stopCh <-chan struct{}) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.checkForChanges()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if w.checkForChanges() {
				logging.Debug("CredWatcher", "Credential change detected via polling")
				w.triggerDebounced()
			}
		}
	}
}

// checkForChanges compares modification times, treating a vanished file as
// a change.
func (w *Watcher) checkForChanges() bool {
	changed := false
	for _, name := range w.config.Files {
		path := filepath.Join(w.config.Dir, name)
		last, seen := w.lastModTimes[path]

		info, err := os.Stat(path)
		if err != nil {
			if seen {
				delete(w.lastModTimes, path)
				changed = true
			}
			continue
		}
		if seen && info.ModTime().After(last) {
			changed = true
		}
		w.lastModTimes[path] = info.ModTime()
	}
	return changed
}

// Stop ends watching and cancels a pending notification.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fsw != nil {
		if err := w.fsw.Close(); err != nil {
			logging.Warn("CredWatcher", "Error closing fsnotify watcher: %v", err)
		}
		w.fsw = nil
	}
}
