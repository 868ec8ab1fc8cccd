package neat

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alwaysEnv returns an environment whose operators always fire.
func alwaysEnv(p *Population, seed int64) *MutationEnv {
	mc := p.Config.Mutation
	mc.ConnAddProb = 1
	mc.NodeAddProb = 1
	mc.WeightMutateRate = 1
	mc.ToggleRate = 1
	return &MutationEnv{Rand: rand.New(rand.NewSource(seed)), Cache: p.Cache, Config: &mc}
}

// adjacentNodes registers two hidden nodes one ULP apart on the x axis, so no
// node fits strictly between them.
func adjacentNodes(p *Population, x float64) (NodeGene, NodeGene) {
	left := p.Cache.CreateNode()
	p.Cache.SetNodePosition(left.ID, Position{X: x, Y: 0.2})
	right := p.Cache.CreateNode()
	p.Cache.SetNodePosition(right.ID, Position{X: math.Nextafter(x, 1), Y: 0.6})
	return p.Cache.Node(left.ID), p.Cache.Node(right.ID)
}

func outputsFor(t *testing.T, g *Genome, inputs [][]float64) []float64 {
	t.Helper()
	net, err := BuildNetwork(g)
	require.NoError(t, err)
	var out []float64
	for _, in := range inputs {
		res, err := net.Activate(in)
		require.NoError(t, err)
		out = append(out, res...)
	}
	return out
}

func TestAddNodeKeepsLinearNetworkOutput(t *testing.T) {
	p := newTestPopulation(t, func(c *Config) { c.Genome.Activation = "identity" })
	env := alwaysEnv(p, 5)
	g := p.Clients[0].Genome().Copy()
	inputs := [][]float64{{0, 0}, {1, 0.5}, {-2, 3}}

	before := outputsFor(t, g, inputs)
	AddNodeMutation{}.Mutate(env, g)

	require.NoError(t, g.Validate())
	assert.Equal(t, 1, g.HiddenCount())
	// split connection, two new halves and the bias link
	assert.Len(t, g.Connections, 3+3)
	after := outputsFor(t, g, inputs)
	assert.InDeltaSlice(t, before, after, 1e-9)
}

func TestSplitSameConnectionSharesGenes(t *testing.T) {
	p := newTestPopulation(t, nil)
	env := alwaysEnv(p, 9)
	a := p.Clients[0].Genome().Copy()
	b := p.Clients[1].Genome().Copy()
	nodes := p.Cache.NodeCount()

	splitConnection(env, a, 1)
	splitConnection(env, b, 1)

	assert.Equal(t, nodes+1, p.Cache.NodeCount())
	assert.Equal(t, innovations(a), innovations(b))
	assert.Equal(t, a.Nodes, b.Nodes)
	assert.False(t, a.Connections[1].Enabled)
}

func TestAddNodeSkipsBiasConnections(t *testing.T) {
	p := newTestPopulation(t, nil)
	env := alwaysEnv(p, 2)
	g := p.CreateGenome(true)
	bias, ok := p.Cache.Connection(biasNodeID, 3)
	require.True(t, ok)
	g.AddConnection(bias)

	AddNodeMutation{}.Mutate(env, g)
	assert.Equal(t, 0, g.HiddenCount())
	assert.Len(t, g.Connections, 1)
}

func TestAddConnectionKeepsGenomeValid(t *testing.T) {
	p := newTestPopulation(t, func(c *Config) { c.Genome.FullNetwork = false })
	env := alwaysEnv(p, 11)
	g := p.CreateGenome(false)
	require.Empty(t, g.Connections)

	AddConnectionMutation{}.Mutate(env, g)
	require.Len(t, g.Connections, 1)
	assert.True(t, g.Connections[0].Enabled)

	for i := 0; i < 100; i++ {
		AddNodeMutation{}.Mutate(env, g)
		AddConnectionMutation{}.Mutate(env, g)
		require.NoError(t, g.Validate(), "iteration %d", i)
	}
	assert.Positive(t, g.HiddenCount())

	// evaluation order must not depend on state left by a previous call
	net, err := BuildNetwork(g)
	require.NoError(t, err)
	first, err := net.Activate([]float64{0.3, -0.8})
	require.NoError(t, err)
	second, err := net.Activate([]float64{0.3, -0.8})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAddNodeSkipsUnsplittableConnections(t *testing.T) {
	p := newTestPopulation(t, nil)
	env := alwaysEnv(p, 3)
	g := p.CreateGenome(true)
	left, right := adjacentNodes(p, 0.4)
	g.AddNode(left)
	g.AddNode(right)
	g.AddConnection(p.Cache.CreateConnection(left.ID, right.ID))
	require.NoError(t, g.Validate())
	nodes := p.Cache.NodeCount()

	AddNodeMutation{}.Mutate(env, g)
	assert.Equal(t, nodes, p.Cache.NodeCount())
	require.Len(t, g.Connections, 1)
	assert.True(t, g.Connections[0].Enabled)
	assert.NoError(t, g.Validate())
}

func TestAddConnectionSkipsUnsplittablePairs(t *testing.T) {
	p := newTestPopulation(t, nil)
	env := alwaysEnv(p, 8)
	g := NewGenome(&p.Config.Genome)
	left, right := adjacentNodes(p, 0.4)
	g.AddNode(left)
	g.AddNode(right)

	AddConnectionMutation{}.Mutate(env, g)
	assert.Empty(t, g.Connections)
}

func TestAddConnectionIgnoresSaturatedGenome(t *testing.T) {
	p := newTestPopulation(t, nil)
	env := alwaysEnv(p, 4)
	g := p.CreateGenome(false)
	before := innovations(g)

	// every input already feeds the single output
	AddConnectionMutation{}.Mutate(env, g)
	assert.Equal(t, before, innovations(g))
}

func TestWeightsMutationStaysInRange(t *testing.T) {
	p := newTestPopulation(t, func(c *Config) {
		c.Genome.WeightMinValue = -1
		c.Genome.WeightMaxValue = 1
		c.Mutation.WeightRandomizePower = 50
		c.Mutation.WeightShiftRate = 0.5
		c.Mutation.WeightShiftPower = 20
	})
	env := alwaysEnv(p, 8)
	g := p.Clients[0].Genome().Copy()

	for i := 0; i < 50; i++ {
		WeightsMutation{}.Mutate(env, g)
		for _, c := range g.Connections {
			require.GreaterOrEqual(t, c.Weight, -1.0)
			require.LessOrEqual(t, c.Weight, 1.0)
		}
	}
}

func TestToggleMutationFlipsConnections(t *testing.T) {
	p := newTestPopulation(t, func(c *Config) {
		c.Mutation.ToggleEnabled = true
		c.Mutation.ToggleConnectionRate = 1
	})
	env := alwaysEnv(p, 1)
	g := p.Clients[0].Genome().Copy()

	ToggleMutation{}.Mutate(env, g)
	for _, c := range g.Connections {
		assert.False(t, c.Enabled)
	}
	ToggleMutation{}.Mutate(env, g)
	for _, c := range g.Connections {
		assert.True(t, c.Enabled)
	}
}

func TestDefaultMutations(t *testing.T) {
	cfg := DefaultConfig().Mutation
	assert.Len(t, DefaultMutations(&cfg), 3)

	cfg.ToggleEnabled = true
	mutations := DefaultMutations(&cfg)
	require.Len(t, mutations, 4)
	assert.IsType(t, ToggleMutation{}, mutations[2])
	assert.IsType(t, WeightsMutation{}, mutations[3])
}

func TestClientMutateRebuildsNetwork(t *testing.T) {
	p := newTestPopulation(t, nil)
	c := p.Clients[0]
	first, err := c.Calculator()
	require.NoError(t, err)
	cached, err := c.Calculator()
	require.NoError(t, err)
	assert.Same(t, first, cached)

	c.Mutate(alwaysEnv(p, 3), []Mutation{WeightsMutation{}})
	rebuilt, err := c.Calculator()
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)
}
