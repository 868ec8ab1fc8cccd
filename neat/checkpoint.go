package neat

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"time"
)

// ErrInvalidSnapshot is returned when a snapshot breaks a population
// invariant and cannot be restored.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is the complete state of a population as plain data. It round-trips
// through Snapshot and Restore without loss; the random source is the one
// exception and is reseeded on restore.
type Snapshot struct {
	Config        Config
	Nodes         []NodeGene       // canonical nodes, index == ID
	Connections   []ConnectionGene // canonical connections, index == innovation
	Replacements  []Replacement
	Clients       []ClientSnapshot
	Species       []SpeciesSnapshot
	Threshold     DistanceThreshold
	Generation    int
	NextSpeciesID int
	BestGenome    *GenomeSnapshot
	BestScore     float64
}

// Replacement records that NodeID was created by splitting Key.
type Replacement struct {
	Key    ConnectionKey
	NodeID int
}

// GenomeSnapshot holds the genes of one genome.
type GenomeSnapshot struct {
	Nodes       []NodeGene
	Connections []ConnectionGene
}

// ClientSnapshot holds one client.
type ClientSnapshot struct {
	Score     float64
	SpeciesID int
	Genome    GenomeSnapshot
}

// SpeciesSnapshot holds one living species.
type SpeciesSnapshot struct {
	ID          int
	BaseID      int
	ClientIDs   []int
	Score       float64
	ChampionID  int
	Staleness   int
	BestScore   float64
	Generations int
}

func snapshotGenome(g *Genome) GenomeSnapshot {
	return GenomeSnapshot{
		Nodes:       append([]NodeGene(nil), g.Nodes...),
		Connections: append([]ConnectionGene(nil), g.Connections...),
	}
}

// Snapshot captures the population state.
func (p *Population) Snapshot() *Snapshot {
	snap := &Snapshot{
		Config:        *p.Config,
		Nodes:         append([]NodeGene(nil), p.Cache.nodes...),
		Connections:   make([]ConnectionGene, 0, len(p.Cache.byInnovation)),
		Threshold:     p.Threshold,
		Generation:    p.Generation,
		NextSpeciesID: p.nextSpeciesID,
		BestScore:     p.BestScore,
	}
	for _, key := range p.Cache.byInnovation {
		snap.Connections = append(snap.Connections, p.Cache.connections[key])
	}
	for key, id := range p.Cache.replacements {
		snap.Replacements = append(snap.Replacements, Replacement{Key: key, NodeID: id})
	}
	sort.Slice(snap.Replacements, func(i, j int) bool { return snap.Replacements[i].NodeID < snap.Replacements[j].NodeID })

	for _, c := range p.Clients {
		snap.Clients = append(snap.Clients, ClientSnapshot{
			Score:     c.Score,
			SpeciesID: c.SpeciesID,
			Genome:    snapshotGenome(c.Genome()),
		})
	}
	for _, s := range p.Species {
		snap.Species = append(snap.Species, SpeciesSnapshot{
			ID:          s.ID,
			BaseID:      s.BaseID,
			ClientIDs:   append([]int(nil), s.ClientIDs...),
			Score:       s.Score,
			ChampionID:  s.ChampionID,
			Staleness:   s.Staleness,
			BestScore:   s.BestScore,
			Generations: s.Generations,
		})
	}
	if p.BestGenome != nil {
		best := snapshotGenome(p.BestGenome)
		snap.BestGenome = &best
	}
	return snap
}

// Restore rebuilds a population from a snapshot after checking every
// structural invariant. The random source is reseeded from the configured
// seed and the generation.
func Restore(snap *Snapshot) (*Population, error) {
	config := snap.Config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	gc := &config.Genome

	cache, err := restoreCache(snap, gc)
	if err != nil {
		return nil, err
	}

	p := &Population{
		Config:        &config,
		Cache:         cache,
		Threshold:     snap.Threshold,
		Mutations:     DefaultMutations(&config.Mutation),
		Generation:    snap.Generation,
		BestScore:     snap.BestScore,
		Workers:       1,
		Logger:        slog.New(slog.DiscardHandler),
		nextSpeciesID: snap.NextSpeciesID,
	}
	seed := config.Neat.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p.setRand(rand.New(rand.NewSource(seed + int64(snap.Generation))))

	if len(snap.Clients) == 0 {
		return nil, fmt.Errorf("%w: no clients", ErrInvalidSnapshot)
	}
	if !isFinite(snap.Threshold.Threshold) || !isFinite(snap.Threshold.Velocity) {
		return nil, fmt.Errorf("%w: threshold state is not finite", ErrInvalidSnapshot)
	}
	for i, cs := range snap.Clients {
		g, err := restoreGenome(cs.Genome, gc, cache)
		if err != nil {
			return nil, fmt.Errorf("%w: client %d: %v", ErrInvalidSnapshot, i, err)
		}
		c := NewClient(i, g)
		c.Score = cs.Score
		c.SpeciesID = cs.SpeciesID
		p.Clients = append(p.Clients, c)
	}
	if snap.BestGenome != nil {
		if p.BestGenome, err = restoreGenome(*snap.BestGenome, gc, cache); err != nil {
			return nil, fmt.Errorf("%w: best genome: %v", ErrInvalidSnapshot, err)
		}
	}

	if err := p.restoreSpecies(snap.Species); err != nil {
		return nil, err
	}
	return p, nil
}

func restoreCache(snap *Snapshot, gc *GenomeConfig) (*GeneCache, error) {
	cache := NewGeneCache()
	if len(snap.Nodes) < gc.InputNodeCount()+gc.OutputNodeCount() {
		return nil, fmt.Errorf("%w: %d nodes cannot hold %d inputs and %d outputs",
			ErrInvalidSnapshot, len(snap.Nodes), gc.InputNodeCount(), gc.OutputNodeCount())
	}
	for i, n := range snap.Nodes {
		if n.ID != i {
			return nil, fmt.Errorf("%w: node at index %d has id %d", ErrInvalidSnapshot, i, n.ID)
		}
		cache.nodes = append(cache.nodes, n)
	}
	for i, c := range snap.Connections {
		if c.Innovation != i {
			return nil, fmt.Errorf("%w: connection at index %d has innovation %d", ErrInvalidSnapshot, i, c.Innovation)
		}
		if _, dup := cache.connections[c.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate connection %s", ErrInvalidSnapshot, c.Key)
		}
		if c.Key.InNodeID >= len(cache.nodes) || c.Key.OutNodeID >= len(cache.nodes) || c.Key.InNodeID < 0 || c.Key.OutNodeID < 0 {
			return nil, fmt.Errorf("%w: connection %s references unknown node", ErrInvalidSnapshot, c.Key)
		}
		cache.connections[c.Key] = c
		cache.byInnovation = append(cache.byInnovation, c.Key)
	}
	for _, r := range snap.Replacements {
		if _, ok := cache.connections[r.Key]; !ok {
			return nil, fmt.Errorf("%w: replacement for unknown connection %s", ErrInvalidSnapshot, r.Key)
		}
		if r.NodeID < 0 || r.NodeID >= len(cache.nodes) {
			return nil, fmt.Errorf("%w: replacement node %d out of range", ErrInvalidSnapshot, r.NodeID)
		}
		cache.replacements[r.Key] = r.NodeID
	}
	return cache, nil
}

func restoreGenome(gs GenomeSnapshot, gc *GenomeConfig, cache *GeneCache) (*Genome, error) {
	g := &Genome{
		Nodes:       append([]NodeGene(nil), gs.Nodes...),
		Connections: append([]ConnectionGene(nil), gs.Connections...),
		config:      gc,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	for id := 0; id < gc.InputNodeCount()+gc.OutputNodeCount(); id++ {
		if !g.HasNode(id) {
			return nil, fmt.Errorf("missing input/output node %d", id)
		}
	}
	for _, n := range g.Nodes {
		if n.ID >= cache.NodeCount() {
			return nil, fmt.Errorf("node %d is not in the gene cache", n.ID)
		}
	}
	for _, c := range g.Connections {
		canonical, ok := cache.connections[c.Key]
		if !ok || canonical.Innovation != c.Innovation {
			return nil, fmt.Errorf("connection %s (innovation %d) does not match the gene cache", c.Key, c.Innovation)
		}
		if c.Weight < gc.WeightMinValue || c.Weight > gc.WeightMaxValue {
			return nil, fmt.Errorf("connection %s weight %v outside [%v, %v]", c.Key, c.Weight, gc.WeightMinValue, gc.WeightMaxValue)
		}
	}
	return g, nil
}

func (p *Population) restoreSpecies(snaps []SpeciesSnapshot) error {
	owner := make(map[int]int, len(p.Clients)) // client id -> species id
	for _, ss := range snaps {
		if ss.ID <= noSpecies || ss.ID >= p.nextSpeciesID {
			return fmt.Errorf("%w: species id %d outside [1, %d)", ErrInvalidSnapshot, ss.ID, p.nextSpeciesID)
		}
		if p.speciesByID(ss.ID) != nil {
			return fmt.Errorf("%w: duplicate species %d", ErrInvalidSnapshot, ss.ID)
		}
		if len(ss.ClientIDs) == 0 {
			return fmt.Errorf("%w: species %d has no members", ErrInvalidSnapshot, ss.ID)
		}

		baseFound, championFound := false, ss.ChampionID == -1
		for _, id := range ss.ClientIDs {
			if id < 0 || id >= len(p.Clients) {
				return fmt.Errorf("%w: species %d references unknown client %d", ErrInvalidSnapshot, ss.ID, id)
			}
			if other, taken := owner[id]; taken {
				return fmt.Errorf("%w: client %d is in species %d and %d", ErrInvalidSnapshot, id, other, ss.ID)
			}
			if p.Clients[id].SpeciesID != ss.ID {
				return fmt.Errorf("%w: client %d points at species %d, not %d", ErrInvalidSnapshot, id, p.Clients[id].SpeciesID, ss.ID)
			}
			owner[id] = ss.ID
			baseFound = baseFound || id == ss.BaseID
			championFound = championFound || id == ss.ChampionID
		}
		if !baseFound {
			return fmt.Errorf("%w: base %d of species %d is not a member", ErrInvalidSnapshot, ss.BaseID, ss.ID)
		}
		if !championFound {
			return fmt.Errorf("%w: champion %d of species %d is not a member", ErrInvalidSnapshot, ss.ChampionID, ss.ID)
		}

		p.Species = append(p.Species, &Species{
			ID:          ss.ID,
			BaseID:      ss.BaseID,
			ClientIDs:   append([]int(nil), ss.ClientIDs...),
			Score:       ss.Score,
			ChampionID:  ss.ChampionID,
			Staleness:   ss.Staleness,
			BestScore:   ss.BestScore,
			Generations: ss.Generations,
			pop:         p,
		})
	}

	for _, c := range p.Clients {
		if _, ok := owner[c.ID]; !ok && c.HasSpecies() {
			return fmt.Errorf("%w: client %d points at missing species %d", ErrInvalidSnapshot, c.ID, c.SpeciesID)
		}
	}
	return nil
}

// EncodeSnapshot writes a gzip compressed gob encoding of snap to w.
func EncodeSnapshot(w io.Writer, snap *Snapshot) error {
	gzWriter := gzip.NewWriter(w)
	if err := gob.NewEncoder(gzWriter).Encode(snap); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode population data: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush compressed population data: %w", err)
	}
	return nil
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gzReader.Close()

	snap := &Snapshot{}
	if err := gob.NewDecoder(gzReader).Decode(snap); err != nil {
		return nil, fmt.Errorf("failed to decode population data from checkpoint: %w", err)
	}
	return snap, nil
}

// SaveCheckpoint saves the current state of the Population to a file.
func (p *Population) SaveCheckpoint(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", filePath, err)
	}
	if err := EncodeSnapshot(file, p.Snapshot()); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint file '%s': %w", filePath, err)
	}
	p.Logger.Info("checkpoint saved", "path", filePath, "generation", p.Generation)
	return nil
}

// LoadCheckpoint loads a Population state from a checkpoint file.
func LoadCheckpoint(filePath string) (*Population, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file '%s': %w", filePath, err)
	}
	defer file.Close()

	snap, err := DecodeSnapshot(file)
	if err != nil {
		return nil, err
	}
	p, err := Restore(snap)
	if err != nil {
		return nil, fmt.Errorf("checkpoint '%s': %w", filePath, err)
	}
	return p, nil
}
