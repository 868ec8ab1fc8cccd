package neat

import (
	"fmt"
)

// reproduce refills every client that lost its species during culling and
// mutates the surviving non-champions according to their species' staleness.
func (p *Population) reproduce() {
	var selector ProbabilityMap[*Species]
	for _, s := range p.Species {
		selector.Add(s, s.Score)
	}

	var candidates []*Client
	bred, mated := 0, 0
	for _, c := range p.Clients {
		if c.HasSpecies() {
			// Champions pass to the next generation unchanged.
			if s := p.speciesByID(c.SpeciesID); s != nil && s.ChampionID != c.ID {
				candidates = append(candidates, c)
			}
			continue
		}

		if p.rng.Float64() < p.Config.Reproduction.InterspeciesMatingRate {
			p.mateInterspecies(c, &selector)
			mated++
			continue
		}

		s := selector.Get(p.rng)
		child := s.Breed()
		if child == nil {
			panic(fmt.Sprintf("breeding from empty species %d", s.ID))
		}
		c.SetGenome(child)
		c.Mutate(p.env, p.Mutations)
		s.Put(c, true)
		bred++
	}

	p.mutateStale(candidates)
	p.Logger.Debug("reproduced", "generation", p.Generation, "bred", bred, "interspecies", mated, "candidates", len(candidates))
}

// mateInterspecies crosses members of two fitness-proportionally drawn
// species and founds a new species for the offspring.
func (p *Population) mateInterspecies(c *Client, selector *ProbabilityMap[*Species]) {
	a := selector.Get(p.rng).Random()
	b := selector.Get(p.rng).Random()
	if b.Score > a.Score {
		a, b = b, a
	}
	c.SetGenome(p.crossover(a.Genome(), b.Genome()))
	c.Mutate(p.env, p.Mutations)
	p.addSpecies(c)
}
