// Package metrics exports population reports as Prometheus metrics.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/baldhumanity/neat4go/neat"
)

const namespace = "neat"

// Collector serves the last report passed to Observe. Observing after each
// generation keeps scrapes from racing with Evolve.
type Collector struct {
	mu     sync.RWMutex
	report neat.Report
	seen   bool

	generation       *prometheus.Desc
	species          *prometheus.Desc
	clients          *prometheus.Desc
	bestScore        *prometheus.Desc
	threshold        *prometheus.Desc
	totalNodes       *prometheus.Desc
	totalConnections *prometheus.Desc
	speciesClients   *prometheus.Desc
	speciesScore     *prometheus.Desc
	speciesStdev     *prometheus.Desc
	speciesHidden    *prometheus.Desc
	speciesConns     *prometheus.Desc
	speciesStale     *prometheus.Desc
}

// NewCollector creates a collector. constLabels are attached to every metric,
// e.g. a run id.
func NewCollector(constLabels prometheus.Labels) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, constLabels)
	}
	return &Collector{
		generation:       desc("generation", "Number of generations evolved."),
		species:          desc("species", "Number of living species."),
		clients:          desc("clients", "Number of clients in the population."),
		bestScore:        desc("best_score", "Best score seen so far."),
		threshold:        desc("distance_threshold", "Current species distance threshold."),
		totalNodes:       desc("nodes_created", "Node genes ever created."),
		totalConnections: desc("connections_created", "Innovation numbers handed out."),
		speciesClients:   desc("species_clients", "Members per species.", "species"),
		speciesScore:     desc("species_mean_score", "Mean member score per species.", "species"),
		speciesStdev:     desc("species_score_stdev", "Sample standard deviation of member scores per species.", "species"),
		speciesHidden:    desc("species_mean_hidden_nodes", "Mean hidden node count per species.", "species"),
		speciesConns:     desc("species_mean_connections", "Mean evolved connection count per species.", "species"),
		speciesStale:     desc("species_staleness", "Generations without improvement per species.", "species"),
	}
}

// Observe replaces the report served to scrapes.
func (c *Collector) Observe(r neat.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report = r
	c.seen = true
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.generation, c.species, c.clients, c.bestScore, c.threshold, c.totalNodes, c.totalConnections,
		c.speciesClients, c.speciesScore, c.speciesStdev, c.speciesHidden, c.speciesConns, c.speciesStale,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector. Nothing is emitted before the
// first Observe.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.seen {
		return
	}

	r := c.report
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	gauge(c.generation, float64(r.Generation))
	gauge(c.species, float64(len(r.Species)))
	gauge(c.clients, float64(r.Total.Clients))
	gauge(c.bestScore, r.BestScore)
	gauge(c.threshold, r.Threshold)
	gauge(c.totalNodes, float64(r.TotalNodes))
	gauge(c.totalConnections, float64(r.TotalConnections))

	for _, s := range r.Species {
		id := strconv.Itoa(s.SpeciesID)
		gauge(c.speciesClients, float64(s.Clients), id)
		gauge(c.speciesScore, s.MeanScore, id)
		gauge(c.speciesStdev, s.ScoreStdev, id)
		gauge(c.speciesHidden, s.MeanHidden, id)
		gauge(c.speciesConns, s.MeanConnection, id)
		gauge(c.speciesStale, float64(s.Staleness), id)
	}
}
