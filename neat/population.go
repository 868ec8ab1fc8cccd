package neat

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// FitnessFunc scores one client. Higher is better; the score must be finite.
// Population.Score may call it from several goroutines at once, but never
// twice at the same time for one client.
type FitnessFunc func(c *Client) (float64, error)

// Population holds the state of the NEAT evolutionary process.
type Population struct {
	Config     *Config
	Cache      *GeneCache
	Clients    []*Client  // Clients[i].ID == i
	Species    []*Species // living species in creation order
	Threshold  DistanceThreshold
	Mutations  []Mutation
	Generation int

	BestGenome *Genome // copy of the best genome scored so far
	BestScore  float64

	// Workers bounds the goroutines RunGeneration uses for scoring.
	Workers int
	Logger  *slog.Logger

	rng           *rand.Rand
	env           *MutationEnv
	nextSpeciesID int
}

// NewPopulation creates a new Population instance from a validated config.
// Every client starts with a fresh genome and is sorted into a species.
func NewPopulation(config *Config) (*Population, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	seed := config.Neat.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	p := &Population{
		Config:        config,
		Cache:         NewGeneCache(),
		Threshold:     NewDistanceThreshold(&config.SpeciesSet),
		Mutations:     DefaultMutations(&config.Mutation),
		BestScore:     math.Inf(-1),
		Workers:       1,
		Logger:        slog.New(slog.DiscardHandler),
		nextSpeciesID: 1,
	}
	p.setRand(rand.New(rand.NewSource(seed)))

	for i := 0; i < config.Genome.InputNodeCount()+config.Genome.OutputNodeCount(); i++ {
		p.Cache.CreateNode()
	}
	p.layoutIONodes()

	p.Clients = make([]*Client, config.Neat.PopSize)
	for i := range p.Clients {
		p.Clients[i] = NewClient(i, p.CreateGenome(false))
	}
	p.sortIntoSpecies()
	return p, nil
}

// setRand installs the random source used by every stochastic step.
func (p *Population) setRand(rng *rand.Rand) {
	p.rng = rng
	p.env = &MutationEnv{Rand: rng, Cache: p.Cache, Config: &p.Config.Mutation}
}

// layoutIONodes places input nodes on the left edge and output nodes on the
// right edge, evenly spread vertically.
func (p *Population) layoutIONodes() {
	in := p.Config.Genome.InputNodeCount()
	out := p.Config.Genome.OutputNodeCount()
	for i := 0; i < in; i++ {
		p.Cache.SetNodePosition(i, Position{X: inputNodeX, Y: float64(i+1) / float64(in+1)})
	}
	for j := 0; j < out; j++ {
		p.Cache.SetNodePosition(in+j, Position{X: outputNodeX, Y: float64(j+1) / float64(out+1)})
	}
}

// CreateGenome returns a genome holding every input and output node. Unless
// forceEmpty is set and when full_network is on, every input is connected to
// every output with a random weight.
func (p *Population) CreateGenome(forceEmpty bool) *Genome {
	gc := &p.Config.Genome
	g := NewGenome(gc)
	in, out := gc.InputNodeCount(), gc.OutputNodeCount()
	for id := 0; id < in+out; id++ {
		g.AddNode(p.Cache.Node(id))
	}

	if forceEmpty || !gc.FullNetwork {
		return g
	}
	for i := 0; i < in; i++ {
		for o := in; o < in+out; o++ {
			conn := p.Cache.CreateConnection(i, o)
			conn.Enabled = true
			mustSetWeight(&conn, p.rng.NormFloat64(), gc)
			g.AddConnection(conn)
		}
	}
	return g
}

// crossover breeds a child of two genomes, a being the fitter parent.
func (p *Population) crossover(a, b *Genome) *Genome {
	child := NewGenome(&p.Config.Genome)
	child.ConfigureCrossover(a, b)
	return child
}

// Rand exposes the population's random source, for callers that want their
// own draws to stay reproducible under the configured seed.
func (p *Population) Rand() *rand.Rand {
	return p.rng
}

// SpeciesByID returns the living species with the given id, or nil.
func (p *Population) SpeciesByID(id int) *Species {
	return p.speciesByID(id)
}

func (p *Population) speciesByID(id int) *Species {
	if id == noSpecies {
		return nil
	}
	for _, s := range p.Species {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// addSpecies founds a new species around base.
func (p *Population) addSpecies(base *Client) *Species {
	s := newSpecies(p, p.nextSpeciesID, base)
	p.nextSpeciesID++
	p.Species = append(p.Species, s)
	p.Logger.Debug("species created", "species", s.ID, "base", base.ID, "generation", p.Generation)
	return s
}

// resetSpecies reduces every species to its base and drops the ones that died
// out doing so.
func (p *Population) resetSpecies() {
	alive := p.Species[:0]
	for _, s := range p.Species {
		s.Reset(nil)
		if !s.Extinct {
			alive = append(alive, s)
		}
	}
	p.Species = alive
}

// sortIntoSpecies puts every client without a species into the first species
// that accepts it, founding a new one when none does.
func (p *Population) sortIntoSpecies() {
	for _, c := range p.Clients {
		if c.HasSpecies() {
			continue
		}
		placed := false
		for _, s := range p.Species {
			if s.Put(c, false) {
				placed = true
				break
			}
		}
		if !placed {
			p.addSpecies(c)
		}
	}
}

// Evolve advances the population by one generation. Every client must have
// been scored beforehand.
func (p *Population) Evolve() {
	p.resetSpecies()
	p.Threshold.Update(&p.Config.SpeciesSet, len(p.Species))
	p.sortIntoSpecies()

	p.Generation++

	alive := p.Species[:0]
	for _, s := range p.Species {
		s.Evaluate()
		s.Kill(p.Config.Reproduction.KillPercentage)
		if s.Size() == 0 {
			if !s.Extinct {
				s.Extirpate()
			}
			p.Logger.Debug("species extinct", "species", s.ID, "generation", p.Generation, "staleness", s.Staleness)
			continue
		}
		alive = append(alive, s)
	}
	p.Species = alive

	if len(p.Species) == 0 {
		c := p.Clients[p.rng.Intn(len(p.Clients))]
		p.addSpecies(c).Evaluate()
		p.Logger.Info("all species extinct, reseeded from a random client", "client", c.ID, "generation", p.Generation)
	}

	p.reproduce()

	p.Logger.Info("generation evolved",
		"generation", p.Generation,
		"species", len(p.Species),
		"threshold", p.Threshold.Threshold,
		"nodes", p.Cache.NodeCount(),
		"connections", p.Cache.ConnectionCount(),
	)
}

// Score runs fitnessFunc for every client on at most workers goroutines and
// stores the results. The first error is returned once all calls finished;
// scores of clients whose call failed are left unchanged.
func (p *Population) Score(workers int, fitnessFunc FitnessFunc) error {
	if workers < 1 {
		workers = 1
	}
	wp := pool.New().WithErrors().WithMaxGoroutines(workers)
	for _, c := range p.Clients {
		wp.Go(func() error {
			score, err := fitnessFunc(c)
			if err != nil {
				return fmt.Errorf("client %d: %w", c.ID, err)
			}
			if !isFinite(score) {
				return fmt.Errorf("client %d: score %v is not finite", c.ID, score)
			}
			c.Score = score
			return nil
		})
	}
	return wp.Wait()
}

// Best returns the highest scoring client of the current scores.
func (p *Population) Best() *Client {
	var best *Client
	for _, c := range p.Clients {
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	return best
}

// RunGeneration executes a single generation: score every client, remember
// the best genome, then evolve. It returns a copy of this generation's best
// genome and its score, taken before evolving.
func (p *Population) RunGeneration(fitnessFunc FitnessFunc) (*Genome, float64, error) {
	start := time.Now()
	if err := p.Score(p.Workers, fitnessFunc); err != nil {
		return nil, 0, fmt.Errorf("fitness evaluation failed in generation %d: %w", p.Generation, err)
	}

	best := p.Best()
	genome, score := best.Genome().Copy(), best.Score
	if score > p.BestScore {
		p.BestScore = score
		p.BestGenome = genome.Copy()
		p.Logger.Info("new best genome", "generation", p.Generation, "score", score, "genome", genome.String())
	}

	p.Evolve()
	p.Logger.Debug("generation finished", "generation", p.Generation, "elapsed", time.Since(start))
	return genome, score, nil
}
