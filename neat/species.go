package neat

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrSpeciesExtinct is the panic value (wrapped) when a client is put into a
// species that has already died out.
var ErrSpeciesExtinct = errors.New("species is extinct")

// minSpeciesScore keeps every living species breedable.
const minSpeciesScore = 0.0001

// Species represents a group of similar clients. A client belongs to a species
// when its genome is closer than the population's distance threshold to the
// genome of the species' base client.
type Species struct {
	ID          int
	BaseID      int
	ClientIDs   []int
	Score       float64
	ChampionID  int // -1 when there is no champion
	Staleness   int
	BestScore   float64
	Generations int
	Extinct     bool

	pop *Population
}

// newSpecies creates a species with base as its first member.
func newSpecies(pop *Population, id int, base *Client) *Species {
	s := &Species{
		ID:         id,
		BaseID:     base.ID,
		ChampionID: -1,
		BestScore:  math.Inf(-1),
		pop:        pop,
	}
	s.Put(base, true)
	return s
}

// String returns a short summary of the species.
func (s *Species) String() string {
	return fmt.Sprintf("Species(ID: %d, Base: %d, Members: %d, Score: %.4f, Extinct: %t)",
		s.ID, s.BaseID, len(s.ClientIDs), s.Score, s.Extinct)
}

// Size is the number of members.
func (s *Species) Size() int {
	return len(s.ClientIDs)
}

// Base returns the representative client.
func (s *Species) Base() *Client {
	return s.pop.Clients[s.BaseID]
}

// Champion returns the best member of the last evaluation, or nil.
func (s *Species) Champion() *Client {
	if s.ChampionID < 0 {
		return nil
	}
	return s.pop.Clients[s.ChampionID]
}

// Random returns a uniformly chosen member, or nil for an empty species.
func (s *Species) Random() *Client {
	if len(s.ClientIDs) == 0 {
		return nil
	}
	return s.pop.Clients[s.ClientIDs[s.pop.rng.Intn(len(s.ClientIDs))]]
}

// Matches reports whether the client is close enough to the base genome.
func (s *Species) Matches(c *Client) bool {
	return s.Base().Genome().Distance(c.Genome()) < s.pop.Threshold.Threshold
}

// Put adds the client when force is set or when it matches the species.
// Putting into an extinct species is a broken invariant and panics.
func (s *Species) Put(c *Client, force bool) bool {
	if s.Extinct {
		panic(fmt.Errorf("put client %d into species %d: %w", c.ID, s.ID, ErrSpeciesExtinct))
	}
	if !force && !s.Matches(c) {
		return false
	}
	c.SpeciesID = s.ID
	s.ClientIDs = append(s.ClientIDs, c.ID)
	return true
}

// Evaluate computes the mean member score, picks the champion and updates the
// staleness counter against the best score seen so far.
func (s *Species) Evaluate() {
	if len(s.ClientIDs) == 0 {
		return
	}

	s.ChampionID = -1
	sum := 0.0
	for _, id := range s.ClientIDs {
		c := s.pop.Clients[id]
		sum += c.Score
		if s.ChampionID < 0 || c.Score > s.pop.Clients[s.ChampionID].Score {
			s.ChampionID = id
		}
	}

	if best := s.pop.Clients[s.ChampionID].Score; best > s.BestScore {
		s.BestScore = best
		s.Staleness = 0
	} else {
		s.Staleness++
	}

	s.Score = minSpeciesScore
	if mean := sum / float64(len(s.ClientIDs)); mean > minSpeciesScore {
		s.Score = mean
	}
	s.Generations++
}

// Kill removes the worst scoring share of the members. Species inside their
// grace period are left alone and species stale for far too long die out
// entirely.
func (s *Species) Kill(percentage float64) {
	if s.Generations <= s.pop.Config.Reproduction.SpeciesGracePeriod {
		return
	}
	if s.StaleRate() > maxStaleRate {
		s.Extirpate()
		return
	}

	members := make([]*Client, len(s.ClientIDs))
	for i, id := range s.ClientIDs {
		members[i] = s.pop.Clients[id]
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].Score < members[j].Score })

	kill := int(math.Round(float64(len(members)) * percentage))
	for _, c := range members[:kill] {
		c.SpeciesID = noSpecies
	}
	survivors := members[kill:]
	if len(survivors) == 0 {
		s.Extirpate()
		return
	}

	s.ClientIDs = s.ClientIDs[:0]
	baseAlive, championAlive := false, false
	for _, c := range survivors {
		s.ClientIDs = append(s.ClientIDs, c.ID)
		baseAlive = baseAlive || c.ID == s.BaseID
		championAlive = championAlive || c.ID == s.ChampionID
	}
	if !baseAlive {
		s.BaseID = s.Random().ID
	}
	if !championAlive {
		s.ChampionID = survivors[len(survivors)-1].ID
	}
}

// Reset empties the species down to a single base member, either override or
// a random former member. Members are released so they can be sorted again.
// A species left without candidates dies out.
func (s *Species) Reset(override *Client) {
	s.Score = 0
	s.ChampionID = -1

	candidates := make([]*Client, 0, len(s.ClientIDs))
	for _, id := range s.ClientIDs {
		// ids past the end belong to clients dropped by a shrink
		if id >= len(s.pop.Clients) {
			continue
		}
		c := s.pop.Clients[id]
		c.SpeciesID = noSpecies
		candidates = append(candidates, c)
	}
	s.ClientIDs = s.ClientIDs[:0]

	if len(candidates) == 0 && override == nil {
		s.Extirpate()
		return
	}

	base := override
	if base == nil {
		base = candidates[s.pop.rng.Intn(len(candidates))]
	}
	s.BaseID = base.ID
	s.ChampionID = base.ID
	s.Put(base, true)
}

// Extirpate marks the species extinct and releases every member.
func (s *Species) Extirpate() {
	s.Extinct = true
	for _, id := range s.ClientIDs {
		if id < len(s.pop.Clients) && s.pop.Clients[id].SpeciesID == s.ID {
			s.pop.Clients[id].SpeciesID = noSpecies
		}
	}
	s.ClientIDs = nil
	s.ChampionID = -1
}

// Breed crosses two random members, the better scoring one as the primary
// parent. The same member may be drawn twice. Returns nil for an empty
// species.
func (s *Species) Breed() *Genome {
	a := s.Random()
	b := s.Random()
	if a == nil || b == nil {
		return nil
	}
	if b.Score > a.Score {
		a, b = b, a
	}
	return s.pop.crossover(a.Genome(), b.Genome())
}
