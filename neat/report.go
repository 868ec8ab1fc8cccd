package neat

// SpeciesReport aggregates the members of one species, or of the whole
// population for Report.Total.
type SpeciesReport struct {
	SpeciesID      int // 0 for the population total
	Clients        int
	MeanScore      float64
	ScoreStdev     float64
	MeanHidden     float64
	MeanConnection float64 // connections beyond the initial full network
	Staleness      int
	BestScore      float64
}

// Report is a read-only summary of the population, suitable for rendering a
// table or exporting metrics.
type Report struct {
	Generation       int
	Species          []SpeciesReport
	Total            SpeciesReport
	TotalNodes       int
	TotalConnections int
	Threshold        float64
	BestScore        float64
}

// Report summarizes the current state of the population.
func (p *Population) Report() Report {
	r := Report{
		Generation:       p.Generation,
		Species:          make([]SpeciesReport, 0, len(p.Species)),
		TotalNodes:       p.Cache.NodeCount(),
		TotalConnections: p.Cache.ConnectionCount(),
		Threshold:        p.Threshold.Threshold,
		BestScore:        p.BestScore,
	}
	for _, s := range p.Species {
		members := make([]*Client, 0, len(s.ClientIDs))
		for _, id := range s.ClientIDs {
			members = append(members, p.Clients[id])
		}
		sr := p.averages(members)
		sr.SpeciesID = s.ID
		sr.Staleness = s.Staleness
		sr.BestScore = s.BestScore
		r.Species = append(r.Species, sr)
	}
	r.Total = p.averages(p.Clients)
	r.Total.BestScore = MaxFloat(clientScores(p.Clients))
	return r
}

// averages ignores the connections every genome starts with when
// full_network is on, so only evolved innovations are counted.
func (p *Population) averages(clients []*Client) SpeciesReport {
	sr := SpeciesReport{Clients: len(clients)}
	if len(clients) == 0 {
		return sr
	}

	gc := &p.Config.Genome
	initial := 0
	if gc.FullNetwork {
		initial = gc.InputNodeCount() * gc.OutputNodeCount()
	}

	hidden, conns := 0, 0
	for _, c := range clients {
		hidden += c.Genome().HiddenCount()
		conns += len(c.Genome().Connections) - initial
	}
	n := float64(len(clients))
	scores := clientScores(clients)
	sr.MeanScore = Mean(scores)
	sr.ScoreStdev = Stdev(scores)
	sr.MeanHidden = float64(hidden) / n
	sr.MeanConnection = float64(conns) / n
	return sr
}

func clientScores(clients []*Client) []float64 {
	scores := make([]float64, len(clients))
	for i, c := range clients {
		scores[i] = c.Score
	}
	return scores
}
