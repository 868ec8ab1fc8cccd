package neat

// maxStaleRate is the stale rate past which a species is removed regardless of
// the kill percentage.
const maxStaleRate = 4.0

// StaleRate is the staleness relative to max_stagnation. It is 0 for an
// improving species, 1 at the limit, and keeps growing beyond it.
func (s *Species) StaleRate() float64 {
	return float64(s.Staleness) / float64(s.pop.Config.Stagnation.MaxStagnation)
}

// IsStale reports whether the species has gone max_stagnation generations
// without improving.
func (s *Species) IsStale() bool {
	return s.Staleness >= s.pop.Config.Stagnation.MaxStagnation
}

// StagnationInfo holds the stagnation state of a single species.
type StagnationInfo struct {
	SpeciesID  int
	StaleRate  float64
	IsStagnant bool
}

// Stagnation reports each living species' stagnation state in species order.
func (p *Population) Stagnation() []StagnationInfo {
	infos := make([]StagnationInfo, 0, len(p.Species))
	for _, s := range p.Species {
		infos = append(infos, StagnationInfo{
			SpeciesID:  s.ID,
			StaleRate:  s.StaleRate(),
			IsStagnant: s.IsStale(),
		})
	}
	return infos
}

// mutateStale mutates each candidate with probability equal to its species'
// stale rate. Rates of 1 and above always mutate.
func (p *Population) mutateStale(candidates []*Client) {
	for _, c := range candidates {
		s := p.speciesByID(c.SpeciesID)
		if s == nil {
			continue
		}
		if p.rng.Float64() < s.StaleRate() {
			c.Mutate(p.env, p.Mutations)
		}
	}
}
