package neat

import (
	"fmt"
	"math/rand"
)

// replacementJitter bounds the vertical offset given to a replacement node.
const replacementJitter = 0.05

// GeneCache is the population-wide registry of canonical genes. It hands out
// innovation numbers and remembers which node replaced a split connection, so
// the same structural mutation always yields the same genes.
//
// Every accessor returns copies; the canonical genes are never exposed.
type GeneCache struct {
	nodes        []NodeGene // index == ID
	connections  map[ConnectionKey]ConnectionGene
	byInnovation []ConnectionKey // index == innovation
	replacements map[ConnectionKey]int
}

// NewGeneCache creates an empty cache.
func NewGeneCache() *GeneCache {
	return &GeneCache{
		connections:  make(map[ConnectionKey]ConnectionGene),
		replacements: make(map[ConnectionKey]int),
	}
}

// CreateNode appends a new canonical node whose ID is the current node count.
// The caller sets its position with SetNodePosition.
func (c *GeneCache) CreateNode() NodeGene {
	node := NodeGene{ID: len(c.nodes)}
	c.nodes = append(c.nodes, node)
	return node
}

// Node returns a copy of the canonical node. Unknown ids panic.
func (c *GeneCache) Node(id int) NodeGene {
	if id < 0 || id >= len(c.nodes) {
		panic(fmt.Sprintf("gene cache has no node %d (have %d)", id, len(c.nodes)))
	}
	return c.nodes[id]
}

// SetNodePosition moves a canonical node.
func (c *GeneCache) SetNodePosition(id int, pos Position) {
	if id < 0 || id >= len(c.nodes) {
		panic(fmt.Sprintf("gene cache has no node %d (have %d)", id, len(c.nodes)))
	}
	c.nodes[id].Position = pos
}

// Connection looks up a canonical connection by its endpoints.
func (c *GeneCache) Connection(in, out int) (ConnectionGene, bool) {
	conn, ok := c.connections[ConnectionKey{InNodeID: in, OutNodeID: out}]
	return conn, ok
}

// CreateConnection returns the canonical connection between in and out,
// registering it under the next innovation number when it is new.
func (c *GeneCache) CreateConnection(in, out int) ConnectionGene {
	key := ConnectionKey{InNodeID: in, OutNodeID: out}
	if conn, ok := c.connections[key]; ok {
		return conn
	}
	conn := ConnectionGene{
		Key:        key,
		Innovation: len(c.byInnovation),
		Enabled:    true,
	}
	c.connections[key] = conn
	c.byInnovation = append(c.byInnovation, key)
	return conn
}

// ReplacementNode returns the node that splits conn. The first request for a
// key creates the node at the midpoint of the endpoints with a small vertical
// jitter; later requests return the same node.
func (c *GeneCache) ReplacementNode(conn ConnectionGene, rng *rand.Rand) NodeGene {
	if id, ok := c.replacements[conn.Key]; ok {
		return c.Node(id)
	}

	from := c.Node(conn.Key.InNodeID)
	to := c.Node(conn.Key.OutNodeID)
	pos := midpoint(from.Position, to.Position)
	pos.Y += (rng.Float64()*2 - 1) * replacementJitter

	node := c.CreateNode()
	c.SetNodePosition(node.ID, pos)
	c.replacements[conn.Key] = node.ID
	return c.Node(node.ID)
}

// NodeCount is the number of canonical nodes ever created.
func (c *GeneCache) NodeCount() int {
	return len(c.nodes)
}

// ConnectionCount is the number of innovation numbers handed out so far.
func (c *GeneCache) ConnectionCount() int {
	return len(c.byInnovation)
}

// remap rewrites every node id through fn. Used when the input or output
// count grows and the id ranges shift.
func (c *GeneCache) remap(total int, fn func(int) int) {
	nodes := make([]NodeGene, total)
	present := make([]bool, total)
	for _, n := range c.nodes {
		id := fn(n.ID)
		n.ID = id
		nodes[id] = n
		present[id] = true
	}
	for id := range nodes {
		if !present[id] {
			nodes[id] = NodeGene{ID: id}
		}
	}
	c.nodes = nodes

	connections := make(map[ConnectionKey]ConnectionGene, len(c.connections))
	for i, key := range c.byInnovation {
		conn := c.connections[key]
		conn.Key = ConnectionKey{InNodeID: fn(key.InNodeID), OutNodeID: fn(key.OutNodeID)}
		connections[conn.Key] = conn
		c.byInnovation[i] = conn.Key
	}
	c.connections = connections

	replacements := make(map[ConnectionKey]int, len(c.replacements))
	for key, id := range c.replacements {
		replacements[ConnectionKey{InNodeID: fn(key.InNodeID), OutNodeID: fn(key.OutNodeID)}] = fn(id)
	}
	c.replacements = replacements
}
