package nn

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ErrInputSize is returned by Activate when the input vector does not match
// the number of input nodes of the network.
var ErrInputSize = errors.New("input size does not match network input nodes")

// Role is the function a node plays in the network.
type Role int

const (
	RoleInput Role = iota
	RoleOutput
	RoleHidden
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleInput:
		return "input"
	case RoleOutput:
		return "output"
	case RoleHidden:
		return "hidden"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Neuron describes one node of the network to build.
// X is the horizontal position; hidden nodes are evaluated in ascending X.
type Neuron struct {
	ID   int
	Role Role
	X    float64
}

// Link describes one weighted connection of the network to build.
type Link struct {
	From    int
	To      int
	Weight  float64
	Enabled bool
}

// Option configures a FeedForwardNetwork.
type Option func(*FeedForwardNetwork)

// WithBias makes Activate prepend a constant 1.0 to every input vector, which
// feeds the first input node.
func WithBias() Option {
	return func(n *FeedForwardNetwork) {
		n.bias = true
	}
}

// WithActivation replaces the default Sigmoid activation.
func WithActivation(fn ActivationFunc) Option {
	return func(n *FeedForwardNetwork) {
		if fn != nil {
			n.activation = fn
		}
	}
}

// incomingLink is a link resolved to the index of its source node.
type incomingLink struct {
	from    int
	weight  float64
	enabled bool
}

// neuralNode represents a node during network activation.
type neuralNode struct {
	id       int
	x        float64
	output   float64
	incoming []incomingLink
}

// FeedForwardNetwork is the runnable phenotype of a genome. Input values are
// written to the input nodes, then the hidden nodes are computed left to right
// and finally the output nodes.
//
// Activate mutates the node output buffers in place, so a single network must
// not be activated from several goroutines at once.
type FeedForwardNetwork struct {
	nodes      []neuralNode
	inputs     []int
	hidden     []int
	outputs    []int
	activation ActivationFunc
	bias       bool
}

// New builds a network from its neurons and links. Input and output neurons
// keep the order in which they are given; hidden neurons are ordered by X,
// with ties broken by a topological sort of the enabled links. Enabled links
// must not form a cycle. Disabled links are kept but contribute nothing when
// activating.
func New(neurons []Neuron, links []Link, opts ...Option) (*FeedForwardNetwork, error) {
	net := &FeedForwardNetwork{
		nodes:      make([]neuralNode, 0, len(neurons)),
		activation: Sigmoid,
	}
	for _, opt := range opts {
		opt(net)
	}

	index := make(map[int]int, len(neurons))
	for _, n := range neurons {
		if _, dup := index[n.ID]; dup {
			return nil, fmt.Errorf("duplicate neuron %d", n.ID)
		}
		i := len(net.nodes)
		index[n.ID] = i
		net.nodes = append(net.nodes, neuralNode{id: n.ID, x: n.X})

		switch n.Role {
		case RoleInput:
			net.inputs = append(net.inputs, i)
		case RoleHidden:
			net.hidden = append(net.hidden, i)
		case RoleOutput:
			net.outputs = append(net.outputs, i)
		default:
			return nil, fmt.Errorf("neuron %d has unknown %s", n.ID, n.Role)
		}
	}

	if net.bias && len(net.inputs) == 0 {
		return nil, errors.New("bias requested but network has no input nodes")
	}

	dg := simple.NewDirectedGraph()
	for i := range net.nodes {
		dg.AddNode(simple.Node(i))
	}
	for _, l := range links {
		from, ok := index[l.From]
		if !ok {
			return nil, fmt.Errorf("link %d->%d references unknown node %d", l.From, l.To, l.From)
		}
		to, ok := index[l.To]
		if !ok {
			return nil, fmt.Errorf("link %d->%d references unknown node %d", l.From, l.To, l.To)
		}
		if from == to {
			return nil, fmt.Errorf("link %d->%d is a self loop", l.From, l.To)
		}
		net.nodes[to].incoming = append(net.nodes[to].incoming, incomingLink{
			from:    from,
			weight:  l.Weight,
			enabled: l.Enabled,
		})
		if l.Enabled {
			dg.SetEdge(dg.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}

	order, err := topo.SortStabilized(dg, byID)
	if err != nil {
		return nil, fmt.Errorf("enabled links form a cycle: %w", err)
	}
	rank := make([]int, len(net.nodes))
	for r, n := range order {
		rank[n.ID()] = r
	}

	// Hidden nodes run by X; nodes sharing an X run in dependency order.
	sort.SliceStable(net.hidden, func(a, b int) bool {
		na, nb := net.hidden[a], net.hidden[b]
		if xa, xb := net.nodes[na].x, net.nodes[nb].x; xa != xb {
			return xa < xb
		}
		return rank[na] < rank[nb]
	})

	return net, nil
}

// InputCount returns the number of values Activate expects, excluding the
// bias value that WithBias prepends.
func (net *FeedForwardNetwork) InputCount() int {
	if net.bias {
		return len(net.inputs) - 1
	}
	return len(net.inputs)
}

// OutputCount returns the number of values Activate returns.
func (net *FeedForwardNetwork) OutputCount() int {
	return len(net.outputs)
}

// Activate computes the network's output for a given slice of input values.
func (net *FeedForwardNetwork) Activate(inputs []float64) ([]float64, error) {
	if len(inputs) != net.InputCount() {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrInputSize, len(inputs), net.InputCount())
	}

	offset := 0
	if net.bias {
		net.nodes[net.inputs[0]].output = 1.0
		offset = 1
	}
	for i, v := range inputs {
		net.nodes[net.inputs[i+offset]].output = v
	}

	for _, i := range net.hidden {
		net.compute(i)
	}
	outputs := make([]float64, len(net.outputs))
	for j, i := range net.outputs {
		net.compute(i)
		outputs[j] = net.nodes[i].output
	}
	return outputs, nil
}

// byID makes the topological order independent of map iteration.
func byID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID() < nodes[j].ID()
	})
}

func (net *FeedForwardNetwork) compute(i int) {
	node := &net.nodes[i]
	sum := 0.0
	for _, in := range node.incoming {
		if in.enabled {
			sum += net.nodes[in.from].output * in.weight
		}
	}
	node.output = net.activation(sum)
}
