package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/baldhumanity/neat4go/neat"
)

// MemoryStore keeps encoded snapshots in memory. Every read decodes a fresh
// copy, so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	snapshots   map[string]map[int][]byte
}

// NewMemoryStore returns an empty store. Call Init before using it.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init prepares the store and drops anything saved before.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.snapshots = make(map[string]map[int][]byte)
	return nil
}

// SaveSnapshot stores snap under its generation, replacing an earlier save
// of the same generation.
func (s *MemoryStore) SaveSnapshot(_ context.Context, runID string, snap *neat.Snapshot) error {
	payload, err := encode(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	run, ok := s.snapshots[runID]
	if !ok {
		run = make(map[int][]byte)
		s.snapshots[runID] = run
	}
	run[snap.Generation] = payload
	return nil
}

// GetSnapshot returns the snapshot of one generation. The bool is false when
// none was saved.
func (s *MemoryStore) GetSnapshot(_ context.Context, runID string, generation int) (*neat.Snapshot, bool, error) {
	s.mu.RLock()
	payload, ok := s.snapshots[runID][generation]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	snap, err := decode(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode snapshot %s/%d: %w", runID, generation, err)
	}
	return snap, true, nil
}

// LatestSnapshot returns the snapshot with the highest generation of the run.
func (s *MemoryStore) LatestSnapshot(ctx context.Context, runID string) (*neat.Snapshot, bool, error) {
	generations, err := s.Generations(ctx, runID)
	if err != nil || len(generations) == 0 {
		return nil, false, err
	}
	return s.GetSnapshot(ctx, runID, generations[len(generations)-1])
}

// Generations lists the saved generations of a run in ascending order.
func (s *MemoryStore) Generations(_ context.Context, runID string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	generations := make([]int, 0, len(s.snapshots[runID]))
	for g := range s.snapshots[runID] {
		generations = append(generations, g)
	}
	sort.Ints(generations)
	return generations, nil
}
