package neat

import (
	"fmt"

	"github.com/baldhumanity/neat4go/neat/nn"
)

// noSpecies is the SpeciesID of a client that belongs to no species.
const noSpecies = 0

// Client is one individual of the population: a genome, the score the caller
// assigned to it and the species it currently belongs to.
type Client struct {
	ID        int
	Score     float64
	SpeciesID int // noSpecies when unassigned

	genome *Genome
	net    *nn.FeedForwardNetwork // built on demand, dropped when the genome changes
}

// NewClient creates a client owning genome.
func NewClient(id int, genome *Genome) *Client {
	return &Client{ID: id, genome: genome}
}

// Genome returns the client's genome. Callers that change it must go through
// SetGenome or Mutate so the cached network is rebuilt.
func (c *Client) Genome() *Genome {
	return c.genome
}

// SetGenome replaces the genome and invalidates the cached network.
func (c *Client) SetGenome(g *Genome) {
	c.genome = g
	c.net = nil
}

// HasSpecies reports whether the client is assigned to a species.
func (c *Client) HasSpecies() bool {
	return c.SpeciesID != noSpecies
}

// Mutate applies every mutation in order and invalidates the cached network.
func (c *Client) Mutate(env *MutationEnv, mutations []Mutation) {
	for _, m := range mutations {
		m.Mutate(env, c.genome)
	}
	c.net = nil
}

// Calculator returns the network built from the current genome, building it
// first if needed.
func (c *Client) Calculator() (*nn.FeedForwardNetwork, error) {
	if c.net == nil {
		net, err := BuildNetwork(c.genome)
		if err != nil {
			return nil, fmt.Errorf("client %d: %w", c.ID, err)
		}
		c.net = net
	}
	return c.net, nil
}

// Calculate feeds inputs through the client's network.
func (c *Client) Calculate(inputs []float64) ([]float64, error) {
	net, err := c.Calculator()
	if err != nil {
		return nil, err
	}
	return net.Activate(inputs)
}

// BuildNetwork compiles a genome into a feed-forward network.
func BuildNetwork(g *Genome) (*nn.FeedForwardNetwork, error) {
	cfg := g.config

	neurons := make([]nn.Neuron, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		neurons = append(neurons, nn.Neuron{ID: n.ID, Role: cfg.NodeRole(n.ID), X: n.Position.X})
	}
	links := make([]nn.Link, 0, len(g.Connections))
	for _, c := range g.Connections {
		links = append(links, nn.Link{From: c.Key.InNodeID, To: c.Key.OutNodeID, Weight: c.Weight, Enabled: c.Enabled})
	}

	var opts []nn.Option
	if cfg.Activation != "" {
		act, err := nn.GetActivation(cfg.Activation)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nn.WithActivation(act))
	}
	if cfg.UseBiasNode {
		opts = append(opts, nn.WithBias())
	}

	net, err := nn.New(neurons, links, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build network: %w", err)
	}
	return net, nil
}
