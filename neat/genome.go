package neat

import (
	"fmt"
	"math"
	"sort"

	"github.com/baldhumanity/neat4go/neat/nn"
)

// distanceNormalizerMin is the gene count below which disjoint and excess
// genes are counted in absolute terms.
const distanceNormalizerMin = 20

// Genome represents one candidate network. Nodes are kept sorted by ID and
// Connections by innovation number; both are free of duplicates.
type Genome struct {
	Nodes       []NodeGene
	Connections []ConnectionGene

	// config is shared by every genome of a population and relinked after a
	// snapshot is restored.
	config *GenomeConfig
}

// NewGenome creates a genome with no nodes and no connections.
func NewGenome(config *GenomeConfig) *Genome {
	return &Genome{config: config}
}

// Config returns the genome parameters this genome was created with.
func (g *Genome) Config() *GenomeConfig {
	return g.config
}

// String returns a short summary of the genome.
func (g *Genome) String() string {
	return fmt.Sprintf("Genome(Nodes: %d, Hidden: %d, Connections: %d)", len(g.Nodes), g.HiddenCount(), len(g.Connections))
}

// Copy creates a deep copy of the genome sharing the same config.
func (g *Genome) Copy() *Genome {
	return &Genome{
		Nodes:       append([]NodeGene(nil), g.Nodes...),
		Connections: append([]ConnectionGene(nil), g.Connections...),
		config:      g.config,
	}
}

// NodeIndex returns the position of node id in Nodes.
func (g *Genome) NodeIndex(id int) (int, bool) {
	i := sort.Search(len(g.Nodes), func(i int) bool { return g.Nodes[i].ID >= id })
	return i, i < len(g.Nodes) && g.Nodes[i].ID == id
}

// HasNode reports whether node id belongs to the genome.
func (g *Genome) HasNode(id int) bool {
	_, ok := g.NodeIndex(id)
	return ok
}

// Node returns the genome's copy of node id.
func (g *Genome) Node(id int) (NodeGene, bool) {
	i, ok := g.NodeIndex(id)
	if !ok {
		return NodeGene{}, false
	}
	return g.Nodes[i], true
}

// AddNode inserts a node keeping Nodes sorted. A node whose ID is already
// present is ignored.
func (g *Genome) AddNode(node NodeGene) bool {
	i, ok := g.NodeIndex(node.ID)
	if ok {
		return false
	}
	g.Nodes = append(g.Nodes, NodeGene{})
	copy(g.Nodes[i+1:], g.Nodes[i:])
	g.Nodes[i] = node
	return true
}

// ConnectionIndex returns the position of the connection with the given
// innovation number in Connections.
func (g *Genome) ConnectionIndex(innovation int) (int, bool) {
	i := sort.Search(len(g.Connections), func(i int) bool { return g.Connections[i].Innovation >= innovation })
	return i, i < len(g.Connections) && g.Connections[i].Innovation == innovation
}

// HasConnection reports whether the genome holds a connection with this key.
func (g *Genome) HasConnection(key ConnectionKey) bool {
	for _, c := range g.Connections {
		if c.Key == key {
			return true
		}
	}
	return false
}

// AddConnection inserts conn keeping Connections sorted by innovation. A
// connection already present is ignored. Both endpoints must already be part
// of the genome; anything else is a broken invariant and panics.
func (g *Genome) AddConnection(conn ConnectionGene) bool {
	if !g.HasNode(conn.Key.InNodeID) || !g.HasNode(conn.Key.OutNodeID) {
		panic(fmt.Sprintf("connection %s references a node missing from the genome", conn.Key))
	}
	i, ok := g.ConnectionIndex(conn.Innovation)
	if ok || g.HasConnection(conn.Key) {
		return false
	}
	g.Connections = append(g.Connections, ConnectionGene{})
	copy(g.Connections[i+1:], g.Connections[i:])
	g.Connections[i] = conn
	return true
}

// HiddenCount is the number of hidden nodes in the genome.
func (g *Genome) HiddenCount() int {
	count := 0
	for _, n := range g.Nodes {
		if g.config.NodeRole(n.ID) == nn.RoleHidden {
			count++
		}
	}
	return count
}

// lastInnovation is the highest innovation number, or -1 for a genome
// without connections.
func (g *Genome) lastInnovation() int {
	if len(g.Connections) == 0 {
		return -1
	}
	return g.Connections[len(g.Connections)-1].Innovation
}

// Distance calculates the genetic distance between this genome and another.
//
// Connections are aligned by innovation number. Genes present in only one
// genome before the shorter list ends are disjoint, the ones after it are
// excess. Both counts are divided by the larger gene count unless it is below
// distanceNormalizerMin, and the mean weight difference of the matching genes
// is added on top.
func (g *Genome) Distance(other *Genome) float64 {
	a, b := g, other
	if b.lastInnovation() > a.lastInnovation() {
		a, b = b, a
	}

	i, j := 0, 0
	disjoint, similar := 0, 0
	weightDiff := 0.0
	for i < len(a.Connections) && j < len(b.Connections) {
		ca, cb := a.Connections[i], b.Connections[j]
		switch {
		case ca.Innovation == cb.Innovation:
			weightDiff += math.Abs(ca.Weight - cb.Weight)
			similar++
			i++
			j++
		case ca.Innovation > cb.Innovation:
			disjoint++
			j++
		default:
			disjoint++
			i++
		}
	}
	excess := len(a.Connections) - i

	if similar > 0 {
		weightDiff /= float64(similar)
	}
	n := float64(max(len(a.Connections), len(b.Connections)))
	if n < distanceNormalizerMin {
		n = 1
	}

	cfg := g.config
	return cfg.CompatibilityDisjointCoefficient*float64(disjoint)/n +
		cfg.CompatibilityExcessCoefficient*float64(excess)/n +
		cfg.CompatibilityWeightCoefficient*weightDiff
}

// ConfigureCrossover fills an empty genome with the offspring of two parents.
//
// The parent whose last connection carries the higher innovation number is the
// primary one; when both end on the same innovation parent1 stays primary.
// Matching genes take the primary's gene with the mean of both weights,
// disjoint and excess genes of the primary are inherited and disjoint genes of
// the secondary are dropped.
func (g *Genome) ConfigureCrossover(parent1, parent2 *Genome) {
	a, b := parent1, parent2
	if b.lastInnovation() > a.lastInnovation() {
		a, b = b, a
	}
	if g.config == nil {
		g.config = a.config
	}

	for _, n := range a.Nodes {
		if g.config.NodeRole(n.ID) != nn.RoleHidden {
			g.AddNode(n)
		}
	}

	i, j := 0, 0
	for i < len(a.Connections) && j < len(b.Connections) {
		ca, cb := a.Connections[i], b.Connections[j]
		switch {
		case ca.Innovation == cb.Innovation:
			if err := ca.SetWeight(0.5*ca.Weight+0.5*cb.Weight, g.config.WeightMinValue, g.config.WeightMaxValue); err != nil {
				panic(fmt.Sprintf("crossover of %s: %v", ca.Key, err))
			}
			g.inherit(ca, a)
			i++
			j++
		case ca.Innovation < cb.Innovation:
			g.inherit(ca, a)
			i++
		default:
			j++
		}
	}
	for ; i < len(a.Connections); i++ {
		g.inherit(a.Connections[i], a)
	}
}

// inherit copies conn and its endpoint nodes from parent.
func (g *Genome) inherit(conn ConnectionGene, parent *Genome) {
	for _, id := range []int{conn.Key.InNodeID, conn.Key.OutNodeID} {
		node, ok := parent.Node(id)
		if !ok {
			panic(fmt.Sprintf("parent genome lacks node %d of connection %s", id, conn.Key))
		}
		g.AddNode(node)
	}
	g.AddConnection(conn)
}

// Validate checks the structural invariants of the genome: sorted and unique
// genes and connections between member nodes that flow to the right. The
// last one also rules out cycles.
func (g *Genome) Validate() error {
	for i, n := range g.Nodes {
		if i > 0 && g.Nodes[i-1].ID >= n.ID {
			return fmt.Errorf("nodes not strictly sorted at index %d (id %d)", i, n.ID)
		}
		if n.ID < 0 {
			return fmt.Errorf("node has negative id %d", n.ID)
		}
	}

	seen := make(map[ConnectionKey]bool, len(g.Connections))
	for i, c := range g.Connections {
		if i > 0 && g.Connections[i-1].Innovation >= c.Innovation {
			return fmt.Errorf("connections not strictly sorted at index %d (innovation %d)", i, c.Innovation)
		}
		if seen[c.Key] {
			return fmt.Errorf("duplicate connection %s", c.Key)
		}
		seen[c.Key] = true
		if !isFinite(c.Weight) {
			return fmt.Errorf("connection %s: %w", c.Key, ErrInvalidWeight)
		}

		from, ok := g.Node(c.Key.InNodeID)
		if !ok {
			return fmt.Errorf("connection %s references missing node %d", c.Key, c.Key.InNodeID)
		}
		to, ok := g.Node(c.Key.OutNodeID)
		if !ok {
			return fmt.Errorf("connection %s references missing node %d", c.Key, c.Key.OutNodeID)
		}
		if from.ID == to.ID {
			return fmt.Errorf("connection %s is a self loop", c.Key)
		}
		if from.Position.X >= to.Position.X {
			return fmt.Errorf("connection %s does not flow left to right (%.3f -> %.3f)", c.Key, from.Position.X, to.Position.X)
		}
	}
	return nil
}
