package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/neat4go/neat"
)

func testPopulation(t *testing.T) *neat.Population {
	t.Helper()
	cfg := neat.DefaultConfig()
	cfg.Neat.Seed = 5
	cfg.Neat.PopSize = 12
	p, err := neat.NewPopulation(cfg)
	require.NoError(t, err)
	return p
}

func evolve(t *testing.T, p *neat.Population) {
	t.Helper()
	_, _, err := p.RunGeneration(func(c *neat.Client) (float64, error) {
		return float64(len(c.Genome().Connections)), nil
	})
	require.NoError(t, err)
}

// exerciseStore runs the behavior every backend shares.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	runID := NewRunID()
	p := testPopulation(t)

	_, ok, err := s.LatestSnapshot(ctx, runID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveSnapshot(ctx, runID, p.Snapshot()))
	evolve(t, p)
	evolve(t, p)
	require.NoError(t, s.SaveSnapshot(ctx, runID, p.Snapshot()))
	require.NoError(t, s.SaveSnapshot(ctx, "other-run", p.Snapshot()))

	generations, err := s.Generations(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, generations)

	latest, ok, err := s.LatestSnapshot(ctx, runID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, latest.Generation)

	restored, err := neat.Restore(latest)
	require.NoError(t, err)
	assert.Equal(t, latest, restored.Snapshot())

	first, ok, err := s.GetSnapshot(ctx, runID, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, first.Generation)

	_, ok, err = s.GetSnapshot(ctx, runID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	// saving the same generation again replaces it
	evolve(t, restored)
	snap := restored.Snapshot()
	snap.Generation = 2
	require.NoError(t, s.SaveSnapshot(ctx, runID, snap))
	generations, err = s.Generations(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, generations)
	replaced, ok, err := s.GetSnapshot(ctx, runID, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.BestScore, replaced.BestScore)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Init(context.Background()))
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "neat.db"))
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
	})
	exerciseStore(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "neat.db")
	p := testPopulation(t)

	s := NewSQLiteStore(path)
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.SaveSnapshot(ctx, "run", p.Snapshot()))
	require.NoError(t, s.Close())

	reopened := NewSQLiteStore(path)
	require.NoError(t, reopened.Init(ctx))
	defer reopened.Close()
	snap, ok, err := reopened.LatestSnapshot(ctx, "run")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, snap.Clients, 12)
}

func TestStoresRequireInit(t *testing.T) {
	ctx := context.Background()
	p := testPopulation(t)

	assert.Error(t, NewMemoryStore().SaveSnapshot(ctx, "run", p.Snapshot()))
	assert.Error(t, NewSQLiteStore(filepath.Join(t.TempDir(), "x.db")).SaveSnapshot(ctx, "run", p.Snapshot()))
	assert.Error(t, NewSQLiteStore("").Init(ctx))
}

func TestNewStore(t *testing.T) {
	s, err := NewStore("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.NoError(t, CloseIfSupported(s))

	s, err = NewStore("sqlite", filepath.Join(t.TempDir(), "neat.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)

	_, err = NewStore("postgres", "")
	assert.Error(t, err)

	assert.NotEqual(t, NewRunID(), NewRunID())
}

func TestInitAgain(t *testing.T) {
	ctx := context.Background()
	p := testPopulation(t)

	memory := NewMemoryStore()
	require.NoError(t, memory.Init(ctx))
	require.NoError(t, memory.SaveSnapshot(ctx, "run", p.Snapshot()))
	require.NoError(t, memory.Init(ctx))
	_, ok, err := memory.LatestSnapshot(ctx, "run")
	require.NoError(t, err)
	assert.False(t, ok, "memory Init starts empty")

	sqlite := NewSQLiteStore(filepath.Join(t.TempDir(), "neat.db"))
	require.NoError(t, sqlite.Init(ctx))
	defer sqlite.Close()
	require.NoError(t, sqlite.SaveSnapshot(ctx, "run", p.Snapshot()))
	require.NoError(t, sqlite.Init(ctx))
	_, ok, err = sqlite.LatestSnapshot(ctx, "run")
	require.NoError(t, err)
	assert.True(t, ok, "sqlite Init keeps an open database")
}
