package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/neat4go/neat"
)

func TestCollectorEmitsNothingBeforeObserve(t *testing.T) {
	c := NewCollector(nil)
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestCollectorExportsReport(t *testing.T) {
	c := NewCollector(prometheus.Labels{"run": "r1"})
	c.Observe(neat.Report{
		Generation:       7,
		TotalNodes:       12,
		TotalConnections: 30,
		Threshold:        2.5,
		BestScore:        3.75,
		Total:            neat.SpeciesReport{Clients: 10},
		Species: []neat.SpeciesReport{
			{SpeciesID: 1, Clients: 6, MeanScore: 2, Staleness: 1},
			{SpeciesID: 4, Clients: 4, MeanScore: 1.5, MeanHidden: 0.5},
		},
	})

	assert.Equal(t, 7+6*2, testutil.CollectAndCount(c))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "neat_species_clients"))

	expected := `
# HELP neat_best_score Best score seen so far.
# TYPE neat_best_score gauge
neat_best_score{run="r1"} 3.75
# HELP neat_generation Number of generations evolved.
# TYPE neat_generation gauge
neat_generation{run="r1"} 7
# HELP neat_species_clients Members per species.
# TYPE neat_species_clients gauge
neat_species_clients{run="r1",species="1"} 6
neat_species_clients{run="r1",species="4"} 4
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"neat_best_score", "neat_generation", "neat_species_clients"))
}

func TestCollectorFromPopulation(t *testing.T) {
	cfg := neat.DefaultConfig()
	cfg.Neat.Seed = 3
	cfg.Neat.PopSize = 20
	p, err := neat.NewPopulation(cfg)
	require.NoError(t, err)

	c := NewCollector(nil)
	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(c))

	c.Observe(p.Report())
	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
	assert.Equal(t, 7+6*len(p.Species), testutil.CollectAndCount(c))
}
