package neat

import (
	"fmt"

	"github.com/baldhumanity/neat4go/neat/nn"
)

// UpdateClients resizes the population to n clients. Growing keeps every
// existing client and gives the new ones fresh default genomes; shrinking
// drops the clients with the highest ids and repairs the species they were
// in.
func (p *Population) UpdateClients(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: client count must be positive, got %d", ErrInvalidConfig, n)
	}

	switch {
	case n > len(p.Clients):
		for i := len(p.Clients); i < n; i++ {
			p.Clients = append(p.Clients, NewClient(i, p.CreateGenome(false)))
		}
		p.sortIntoSpecies()
	case n < len(p.Clients):
		p.Clients = p.Clients[:n]
		p.dropMissingMembers()
	}

	p.Config.Neat.PopSize = n
	p.Logger.Info("population resized", "clients", n, "species", len(p.Species))
	return nil
}

// dropMissingMembers removes references to clients that no longer exist.
func (p *Population) dropMissingMembers() {
	n := len(p.Clients)
	alive := p.Species[:0]
	for _, s := range p.Species {
		kept := s.ClientIDs[:0]
		for _, id := range s.ClientIDs {
			if id < n {
				kept = append(kept, id)
			}
		}
		s.ClientIDs = kept

		if len(kept) == 0 {
			s.Extirpate()
			continue
		}
		if s.BaseID >= n {
			s.BaseID = s.Random().ID
		}
		if s.ChampionID >= n {
			s.ChampionID = -1
		}
		alive = append(alive, s)
	}
	p.Species = alive
}

// UpdateNodeCounts grows the number of inputs and outputs of every genome.
// Node ids are shifted so inputs, outputs and hidden nodes stay in their id
// ranges; connections keep their innovation numbers. New input and output
// nodes start unconnected. Shrinking is rejected and leaves the population
// untouched.
func (p *Population) UpdateNodeCounts(inputs, outputs int) error {
	gc := &p.Config.Genome
	if inputs < gc.NumInputs || outputs < gc.NumOutputs {
		return fmt.Errorf("%w: cannot shrink node counts from %d/%d to %d/%d",
			ErrInvalidConfig, gc.NumInputs, gc.NumOutputs, inputs, outputs)
	}
	if inputs == gc.NumInputs && outputs == gc.NumOutputs {
		return nil
	}

	oldIn, oldOut := gc.InputNodeCount(), gc.OutputNodeCount()
	dIn, dOut := inputs-gc.NumInputs, outputs-gc.NumOutputs
	remap := func(id int) int {
		switch {
		case id < oldIn:
			return id
		case id < oldIn+oldOut:
			return id + dIn
		default:
			return id + dIn + dOut
		}
	}

	p.Cache.remap(p.Cache.NodeCount()+dIn+dOut, remap)
	gc.NumInputs, gc.NumOutputs = inputs, outputs
	p.layoutIONodes()

	for _, c := range p.Clients {
		c.SetGenome(p.remapGenome(c.Genome(), remap))
	}
	if p.BestGenome != nil {
		p.BestGenome = p.remapGenome(p.BestGenome, remap)
	}

	p.Logger.Info("node counts updated", "inputs", inputs, "outputs", outputs, "nodes", p.Cache.NodeCount())
	return nil
}

// remapGenome rebuilds g against the remapped cache: every input and output
// node plus its own hidden nodes, and its connections under their new keys.
func (p *Population) remapGenome(g *Genome, remap func(int) int) *Genome {
	gc := &p.Config.Genome
	out := NewGenome(gc)
	for id := 0; id < gc.InputNodeCount()+gc.OutputNodeCount(); id++ {
		out.AddNode(p.Cache.Node(id))
	}
	for _, n := range g.Nodes {
		if id := remap(n.ID); gc.NodeRole(id) == nn.RoleHidden {
			out.AddNode(p.Cache.Node(id))
		}
	}

	out.Connections = make([]ConnectionGene, 0, len(g.Connections))
	for _, c := range g.Connections {
		c.Key = ConnectionKey{InNodeID: remap(c.Key.InNodeID), OutNodeID: remap(c.Key.OutNodeID)}
		out.Connections = append(out.Connections, c)
	}
	return out
}
