package neat

import (
	"fmt"
	"math/rand"
)

const (
	addConnectionAttempts = 50
	addNodeAttempts       = 20
)

// MutationEnv is everything a mutation operator may touch besides the genome.
type MutationEnv struct {
	Rand   *rand.Rand
	Cache  *GeneCache
	Config *MutationConfig
}

// Mutation changes a genome in place. Each operator decides on its own
// trigger chance whether it fires at all.
type Mutation interface {
	Mutate(env *MutationEnv, g *Genome)
}

// DefaultMutations returns the operators applied by Client.Mutate, in order.
func DefaultMutations(cfg *MutationConfig) []Mutation {
	mutations := []Mutation{AddConnectionMutation{}, AddNodeMutation{}}
	if cfg.ToggleEnabled {
		mutations = append(mutations, ToggleMutation{})
	}
	return append(mutations, WeightsMutation{})
}

// mustSetWeight is for weights computed from finite values only.
func mustSetWeight(conn *ConnectionGene, value float64, gc *GenomeConfig) {
	if err := conn.SetWeight(value, gc.WeightMinValue, gc.WeightMaxValue); err != nil {
		panic(fmt.Sprintf("mutation produced bad weight: %v", err))
	}
}

// AddConnectionMutation connects two previously unconnected nodes of the
// genome with a random weight.
type AddConnectionMutation struct{}

// Mutate tries a bounded number of random node pairs and gives up silently
// when none of them can take a new connection.
func (AddConnectionMutation) Mutate(env *MutationEnv, g *Genome) {
	if env.Rand.Float64() >= env.Config.ConnAddProb || len(g.Nodes) < 2 {
		return
	}

	for attempt := 0; attempt < addConnectionAttempts; attempt++ {
		a := g.Nodes[env.Rand.Intn(len(g.Nodes))]
		b := g.Nodes[env.Rand.Intn(len(g.Nodes))]

		// No self or vertical connections, and none that could not be split later.
		if a.ID == b.ID || !splittable(a, b) {
			continue
		}
		if a.Position.X > b.Position.X {
			a, b = b, a
		}

		conn, ok := env.Cache.Connection(a.ID, b.ID)
		if ok {
			if _, present := g.ConnectionIndex(conn.Innovation); present {
				continue
			}
		} else {
			conn = env.Cache.CreateConnection(a.ID, b.ID)
		}

		conn.Enabled = true
		mustSetWeight(&conn, env.Rand.NormFloat64(), g.config)
		g.AddConnection(conn)
		return
	}
}

// AddNodeMutation splits a connection into two around a new hidden node.
type AddNodeMutation struct{}

// Mutate picks a random connection, skipping bias connections and those too
// narrow to hold a node between their endpoints, and splits it.
func (AddNodeMutation) Mutate(env *MutationEnv, g *Genome) {
	if env.Rand.Float64() >= env.Config.NodeAddProb || len(g.Connections) == 0 {
		return
	}

	for attempt := 0; attempt < addNodeAttempts; attempt++ {
		i := env.Rand.Intn(len(g.Connections))
		key := g.Connections[i].Key
		if g.config.isBiasConnection(key) {
			continue
		}
		from, _ := g.Node(key.InNodeID)
		to, _ := g.Node(key.OutNodeID)
		if !splittable(from, to) {
			continue
		}
		splitConnection(env, g, i)
		return
	}
}

// splitConnection replaces in->out with in->middle->out. The new path carries
// weight 1.0 into the middle node and the original weight out of it, and the
// original connection is disabled.
func splitConnection(env *MutationEnv, g *Genome, i int) {
	original := g.Connections[i]
	middle := env.Cache.ReplacementNode(original, env.Rand)

	in := env.Cache.CreateConnection(original.Key.InNodeID, middle.ID)
	in.Enabled = true
	mustSetWeight(&in, 1.0, g.config)

	out := env.Cache.CreateConnection(middle.ID, original.Key.OutNodeID)
	out.Enabled = original.Enabled
	mustSetWeight(&out, original.Weight, g.config)

	g.Connections[i].Enabled = false
	g.AddNode(middle)
	g.AddConnection(in)
	g.AddConnection(out)

	if g.config.UseBiasNode {
		bias := env.Cache.CreateConnection(biasNodeID, middle.ID)
		bias.Enabled = true
		mustSetWeight(&bias, 0, g.config)
		g.AddConnection(bias)
	}
}

// ToggleMutation flips the enabled flag of random connections.
type ToggleMutation struct{}

// Mutate flips each connection independently once the operator fires.
func (ToggleMutation) Mutate(env *MutationEnv, g *Genome) {
	if env.Rand.Float64() >= env.Config.ToggleRate {
		return
	}
	for i := range g.Connections {
		if env.Rand.Float64() < env.Config.ToggleConnectionRate {
			g.Connections[i].Enabled = !g.Connections[i].Enabled
		}
	}
}

// WeightsMutation perturbs the weight of every connection. Most weights are
// shifted slightly, the rest are replaced by a fresh random value.
type WeightsMutation struct{}

// Mutate shifts or randomizes each connection weight once the operator fires.
func (WeightsMutation) Mutate(env *MutationEnv, g *Genome) {
	if env.Rand.Float64() >= env.Config.WeightMutateRate {
		return
	}
	for i := range g.Connections {
		conn := &g.Connections[i]
		if env.Rand.Float64() < env.Config.WeightShiftRate {
			mustSetWeight(conn, conn.Weight+env.Rand.NormFloat64()*env.Config.WeightShiftPower, g.config)
		} else {
			mustSetWeight(conn, env.Rand.NormFloat64()*env.Config.WeightRandomizePower, g.config)
		}
	}
}
