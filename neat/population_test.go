package neat

import (
	"errors"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPopulation(t *testing.T, configure func(*Config)) *Population {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Neat.Seed = 42
	cfg.Neat.PopSize = 30
	if configure != nil {
		configure(cfg)
	}
	p, err := NewPopulation(cfg)
	require.NoError(t, err)
	return p
}

// requireConsistent checks that species membership and client species ids
// agree and that every genome is well formed.
func requireConsistent(t *testing.T, p *Population) {
	t.Helper()
	owner := map[int]int{}
	for _, s := range p.Species {
		require.False(t, s.Extinct, "species %d", s.ID)
		require.NotZero(t, s.Size(), "species %d", s.ID)
		require.Contains(t, s.ClientIDs, s.BaseID, "species %d", s.ID)
		for _, id := range s.ClientIDs {
			_, dup := owner[id]
			require.False(t, dup, "client %d in two species", id)
			owner[id] = s.ID
			require.Equal(t, s.ID, p.Clients[id].SpeciesID)
		}
	}
	for i, c := range p.Clients {
		require.Equal(t, i, c.ID)
		require.Equal(t, owner[c.ID], c.SpeciesID, "client %d", c.ID)
		require.NoError(t, c.Genome().Validate(), "client %d", c.ID)
	}
}

// genomeFitness prefers larger genomes with positive weights.
func genomeFitness(c *Client) (float64, error) {
	score := float64(len(c.Genome().Connections))
	for _, conn := range c.Genome().Connections {
		if conn.Enabled {
			score += conn.Weight
		}
	}
	return math.Max(score, 0), nil
}

func TestNewPopulation(t *testing.T) {
	p := newTestPopulation(t, nil)

	assert.Len(t, p.Clients, 30)
	assert.NotEmpty(t, p.Species)
	assert.Equal(t, 4, p.Cache.NodeCount())
	assert.Equal(t, 3, p.Cache.ConnectionCount())
	assert.Equal(t, 0, p.Generation)
	assert.True(t, math.IsInf(p.BestScore, -1))
	requireConsistent(t, p)

	for id, pos := range map[int]Position{
		0: {X: inputNodeX, Y: 0.25},
		2: {X: inputNodeX, Y: 0.75},
		3: {X: outputNodeX, Y: 0.5},
	} {
		assert.Equal(t, pos, p.Cache.Node(id).Position, "node %d", id)
	}
}

func TestNewPopulationRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Neat.PopSize = 0
	_, err := NewPopulation(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEvolveKeepsPopulationConsistent(t *testing.T) {
	p := newTestPopulation(t, nil)
	rng := rand.New(rand.NewSource(7))

	for gen := 1; gen <= 25; gen++ {
		for _, c := range p.Clients {
			c.Score = rng.Float64() * 10
		}
		p.Evolve()

		require.Equal(t, gen, p.Generation)
		require.Len(t, p.Clients, 30)
		require.GreaterOrEqual(t, p.Threshold.Threshold, thresholdMin)
		requireConsistent(t, p)
	}
}

func TestEvolveReseedsAfterExtinction(t *testing.T) {
	p := newTestPopulation(t, func(c *Config) {
		c.Reproduction.KillPercentage = 1
		c.Reproduction.SpeciesGracePeriod = 0
		c.Reproduction.InterspeciesMatingRate = 0
	})

	p.Evolve()
	require.Len(t, p.Species, 1)
	assert.Equal(t, 30, p.Species[0].Size())
	requireConsistent(t, p)
}

func TestScore(t *testing.T) {
	p := newTestPopulation(t, nil)

	var calls atomic.Int32
	err := p.Score(4, func(c *Client) (float64, error) {
		calls.Add(1)
		return float64(c.ID), nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 30, calls.Load())
	for _, c := range p.Clients {
		assert.Equal(t, float64(c.ID), c.Score)
	}
	assert.Equal(t, 29, p.Best().ID)
}

func TestScoreErrors(t *testing.T) {
	p := newTestPopulation(t, nil)
	errBoom := errors.New("boom")

	err := p.Score(2, func(c *Client) (float64, error) {
		if c.ID == 3 {
			return 0, errBoom
		}
		return 1, nil
	})
	assert.ErrorIs(t, err, errBoom)

	err = p.Score(2, func(c *Client) (float64, error) {
		if c.ID == 5 {
			return math.NaN(), nil
		}
		return 1, nil
	})
	assert.Error(t, err)
	assert.Equal(t, 1.0, p.Clients[4].Score)
}

func TestRunGenerationTracksBest(t *testing.T) {
	p := newTestPopulation(t, nil)
	p.Workers = 3

	for i := 0; i < 10; i++ {
		best, score, err := p.RunGeneration(genomeFitness)
		require.NoError(t, err)
		require.NotNil(t, best)
		assert.LessOrEqual(t, score, p.BestScore)
	}
	require.NotNil(t, p.BestGenome)
	assert.Equal(t, 10, p.Generation)
	requireConsistent(t, p)
}

func TestRunGenerationIsReproducible(t *testing.T) {
	run := func() *Snapshot {
		p := newTestPopulation(t, nil)
		p.Workers = 4
		for i := 0; i < 15; i++ {
			_, _, err := p.RunGeneration(genomeFitness)
			require.NoError(t, err)
		}
		return p.Snapshot()
	}
	assert.Equal(t, run(), run())
}
