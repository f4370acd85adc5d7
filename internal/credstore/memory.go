package credstore

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore keeps the record in process memory. It backs tests and
// --no-persist sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	// FailWrites makes every mutating call return an error.
	FailWrites bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

var errMemoryWrite = errors.New("memory store: write failed")

func (s *MemoryStore) Load(_ context.Context) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decodeRecord(s.values)
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	values, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errMemoryWrite
	}
	s.values = values
	return nil
}

func (s *MemoryStore) SaveCredentials(_ context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errMemoryWrite
	}
	s.values = mergeCredentials(s.values, creds)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errMemoryWrite
	}
	s.values = map[string]string{}
	return nil
}

// Raw returns a copy of the persisted entries.
func (s *MemoryStore) Raw() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
