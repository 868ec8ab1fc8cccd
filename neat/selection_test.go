package neat

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbabilityMapFollowsWeights(t *testing.T) {
	var m ProbabilityMap[string]
	weights := map[string]float64{"a": 1, "b": 2, "c": 7}
	for _, k := range []string{"a", "b", "c"} {
		m.Add(k, weights[k])
	}
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 10.0, m.Total())

	rng := rand.New(rand.NewSource(17))
	const draws = 100000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		counts[m.Get(rng)]++
	}
	for k, w := range weights {
		p := w / m.Total()
		sigma := math.Sqrt(draws * p * (1 - p))
		assert.InDelta(t, draws*p, float64(counts[k]), 3*sigma, "element %s", k)
	}
}

func TestProbabilityMapIgnoresUnusableWeights(t *testing.T) {
	var m ProbabilityMap[int]
	m.Add(1, 0)
	m.Add(2, -3)
	m.Add(3, math.NaN())
	m.Add(4, math.Inf(1))
	assert.Equal(t, 0, m.Len())
	assert.Panics(t, func() { m.Get(rand.New(rand.NewSource(1))) })

	m.Add(5, 0.25)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		assert.Equal(t, 5, m.Get(rng))
	}
}
