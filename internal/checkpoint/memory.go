package checkpoint

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryStore keeps encoded checkpoints in memory.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	blobs       map[string][]byte
	metrics     map[string][]EpochMetrics
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.blobs = make(map[string][]byte)
	s.metrics = make(map[string][]EpochMetrics)
	return nil
}

var errNotInitialized = errors.New("store is not initialized")

func (s *MemoryStore) SaveCheckpoint(_ context.Context, name string, c *Checkpoint) error {
	blob, err := Encode(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.blobs[name] = blob
	return nil
}

func (s *MemoryStore) GetCheckpoint(_ context.Context, name string) (*Checkpoint, bool, error) {
	s.mu.RLock()
	blob, ok := s.blobs[name]
	initialized := s.initialized
	s.mu.RUnlock()

	if !initialized {
		return nil, false, errNotInitialized
	}
	if !ok {
		return nil, false, nil
	}
	c, err := Decode(blob)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (s *MemoryStore) ListCheckpoints(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.blobs))
	for name := range s.blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) SaveMetrics(_ context.Context, runID string, history []EpochMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.metrics[runID] = append([]EpochMetrics(nil), history...)
	return nil
}

func (s *MemoryStore) GetMetrics(_ context.Context, runID string) ([]EpochMetrics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.metrics[runID]
	return append([]EpochMetrics(nil), history...), ok, nil
}
