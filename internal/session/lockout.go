package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/clock"

	"deskauth/pkg/auth"
	"deskauth/pkg/logging"
)

// lockoutFileName is the file FileAttemptStore keeps in its directory.
const lockoutFileName = "lockout.yaml"

// AttemptState is the persisted login failure bookkeeping.
type AttemptState struct {
	Failures    int        `yaml:"failures"`
	LockedUntil *time.Time `yaml:"lockedUntil,omitempty"`
}

// AttemptStore persists AttemptState so a lockout survives process
// restarts.
type AttemptStore interface {
	LoadAttempts() (AttemptState, error)
	SaveAttempts(AttemptState) error
}

// FileAttemptStore keeps AttemptState in <dir>/lockout.yaml.
type FileAttemptStore struct {
	mu         sync.RWMutex
	configPath string
}

// NewFileAttemptStore creates a store rooted at dir.
func NewFileAttemptStore(dir string) *FileAttemptStore {
	return &FileAttemptStore{configPath: dir}
}

func (s *FileAttemptStore) filePath() string {
	return filepath.Join(s.configPath, lockoutFileName)
}

// LoadAttempts returns the zero state when the file does not exist.
func (s *FileAttemptStore) LoadAttempts() (AttemptState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.filePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return AttemptState{}, nil
		}
		return AttemptState{}, fmt.Errorf("failed to read lockout file: %w", err)
	}

	var state AttemptState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return AttemptState{}, fmt.Errorf("failed to parse lockout file: %w", err)
	}
	return state, nil
}

// SaveAttempts writes state, removing the file for the zero state.
func (s *FileAttemptStore) SaveAttempts(state AttemptState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state.Failures == 0 && state.LockedUntil == nil {
		if err := os.Remove(s.filePath()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove lockout file: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(s.configPath, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal lockout state: %w", err)
	}
	if err := os.WriteFile(s.filePath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write lockout file: %w", err)
	}
	return nil
}

// MemoryAttemptStore keeps AttemptState in memory.
type MemoryAttemptStore struct {
	mu    sync.Mutex
	state AttemptState
}

func (s *MemoryAttemptStore) LoadAttempts() (AttemptState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *MemoryAttemptStore) SaveAttempts(state AttemptState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

// lockoutTracker applies the thresholds to AttemptState. It is not safe for
// concurrent use; the Manager calls it under its mutex.
type lockoutTracker struct {
	store     AttemptStore
	clock     clock.PassiveClock
	warning   int
	threshold int
	duration  time.Duration
	state     AttemptState
}

func newLockoutTracker(store AttemptStore, clk clock.PassiveClock, warning, threshold int, duration time.Duration) *lockoutTracker {
	t := &lockoutTracker{
		store:     store,
		clock:     clk,
		warning:   warning,
		threshold: threshold,
		duration:  duration,
	}
	state, err := store.LoadAttempts()
	if err != nil {
		logging.Warn("Lockout", "Ignoring unreadable lockout state: %v", err)
	}
	t.state = state
	return t
}

// lock returns the current lock, expiring it first when its window passed.
// An expired lock also resets the failure counter.
func (t *lockoutTracker) lock() auth.AccountLock {
	if t.state.LockedUntil == nil {
		return auth.AccountLock{}
	}
	if !t.clock.Now().Before(*t.state.LockedUntil) {
		logging.Info("Lockout", "Lockout window elapsed")
		t.save(AttemptState{})
		return auth.AccountLock{}
	}
	until := *t.state.LockedUntil
	return auth.AccountLock{Locked: true, Until: &until}
}

func (t *lockoutTracker) failures() int {
	return t.state.Failures
}

// remaining is the number of failures left before the lock engages.
func (t *lockoutTracker) remaining() int {
	if r := t.threshold - t.state.Failures; r > 0 {
		return r
	}
	return 0
}

// warn reports whether the warning threshold has been reached.
func (t *lockoutTracker) warn() bool {
	return t.warning > 0 && t.state.Failures >= t.warning
}

// recordFailure counts one failure and engages the lock at the threshold.
func (t *lockoutTracker) recordFailure() auth.AccountLock {
	next := AttemptState{Failures: t.state.Failures + 1}
	if next.Failures >= t.threshold {
		until := t.clock.Now().Add(t.duration)
		next.LockedUntil = &until
	}
	t.save(next)

	if next.LockedUntil != nil {
		logging.Audit("account_locked", "failures", next.Failures, "until", next.LockedUntil.Format(time.RFC3339))
		until := *next.LockedUntil
		return auth.AccountLock{Locked: true, Until: &until}
	}
	return auth.AccountLock{}
}

func (t *lockoutTracker) reset() {
	if t.state.Failures == 0 && t.state.LockedUntil == nil {
		return
	}
	t.save(AttemptState{})
}

func (t *lockoutTracker) save(state AttemptState) {
	t.state = state
	if err := t.store.SaveAttempts(state); err != nil {
		logging.Warn("Lockout", "Failed to persist lockout state: %v", err)
	}
}
