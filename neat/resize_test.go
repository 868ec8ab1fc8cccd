package neat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateClientsGrows(t *testing.T) {
	p := newTestPopulation(t, nil)
	kept := p.Clients[10]

	require.NoError(t, p.UpdateClients(45))
	assert.Len(t, p.Clients, 45)
	assert.Equal(t, 45, p.Config.Neat.PopSize)
	assert.Same(t, kept, p.Clients[10])
	requireConsistent(t, p)
}

func TestUpdateClientsShrinks(t *testing.T) {
	p := newTestPopulation(t, nil)
	for i := 0; i < 3; i++ {
		_, _, err := p.RunGeneration(genomeFitness)
		require.NoError(t, err)
	}

	require.NoError(t, p.UpdateClients(12))
	assert.Len(t, p.Clients, 12)
	requireConsistent(t, p)
	for _, s := range p.Species {
		assert.Less(t, s.ChampionID, 12)
	}

	_, _, err := p.RunGeneration(genomeFitness)
	require.NoError(t, err)
	requireConsistent(t, p)
}

func TestUpdateClientsRejectsEmpty(t *testing.T) {
	p := newTestPopulation(t, nil)
	assert.ErrorIs(t, p.UpdateClients(0), ErrInvalidConfig)
	assert.Len(t, p.Clients, 30)
}

func TestUpdateNodeCountsGrows(t *testing.T) {
	p := newTestPopulation(t, nil)
	env := alwaysEnv(p, 6)
	splitConnection(env, p.Clients[0].Genome(), 1)
	require.Equal(t, 4, p.Clients[0].Genome().Nodes[4].ID)

	require.NoError(t, p.UpdateNodeCounts(3, 2))
	assert.Equal(t, 3, p.Config.Genome.NumInputs)
	assert.Equal(t, 2, p.Config.Genome.NumOutputs)
	assert.Equal(t, 7, p.Cache.NodeCount())

	// inputs 0-3 stay put, output 3 moves to 4, hidden 4 moves to 6
	g := p.Clients[0].Genome()
	ids := make([]int, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, ids)
	assert.True(t, g.HasConnection(ConnectionKey{InNodeID: 1, OutNodeID: 6}))
	assert.True(t, g.HasConnection(ConnectionKey{InNodeID: 6, OutNodeID: 4}))
	assert.Equal(t, 1, g.HiddenCount())

	moved, ok := p.Cache.Connection(2, 4)
	require.True(t, ok)
	assert.Equal(t, 2, moved.Innovation)

	for _, c := range p.Clients {
		out, err := c.Calculate([]float64{1, 2, 3})
		require.NoError(t, err)
		assert.Len(t, out, 2)
	}
	requireConsistent(t, p)

	_, _, err := p.RunGeneration(genomeFitness)
	require.NoError(t, err)
	requireConsistent(t, p)
}

func TestUpdateNodeCountsRejectsShrink(t *testing.T) {
	p := newTestPopulation(t, nil)
	before := p.Snapshot()

	assert.ErrorIs(t, p.UpdateNodeCounts(1, 1), ErrInvalidConfig)
	assert.ErrorIs(t, p.UpdateNodeCounts(2, 0), ErrInvalidConfig)
	assert.NoError(t, p.UpdateNodeCounts(2, 1))
	assert.Equal(t, before, p.Snapshot())
}
