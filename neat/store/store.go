// Package store persists population snapshots between runs.
package store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/baldhumanity/neat4go/neat"
)

// Store keeps snapshots keyed by run and generation.
type Store interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, runID string, snap *neat.Snapshot) error
	GetSnapshot(ctx context.Context, runID string, generation int) (*neat.Snapshot, bool, error)
	LatestSnapshot(ctx context.Context, runID string) (*neat.Snapshot, bool, error)
	Generations(ctx context.Context, runID string) ([]int, error)
}

// NewRunID returns a fresh identifier for a run.
func NewRunID() string {
	return uuid.NewString()
}

// NewStore returns the backend named by kind.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// CloseIfSupported closes stores that hold resources.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

func encode(snap *neat.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := neat.EncodeSnapshot(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(payload []byte) (*neat.Snapshot, error) {
	return neat.DecodeSnapshot(bytes.NewReader(payload))
}
