package neat

import (
	"math/rand"
	"sort"
)

// ProbabilityMap draws elements with probability proportional to their
// weight.
type ProbabilityMap[E any] struct {
	elements   []E
	cumulative []float64 // running weight total, one per element
	total      float64
}

// Add registers element with weight. Non-positive and non-finite weights can
// never be drawn, so they are ignored.
func (m *ProbabilityMap[E]) Add(element E, weight float64) {
	if !(weight > 0) || !isFinite(weight) {
		return
	}
	m.total += weight
	m.elements = append(m.elements, element)
	m.cumulative = append(m.cumulative, m.total)
}

// Len is the number of drawable elements.
func (m *ProbabilityMap[E]) Len() int {
	return len(m.elements)
}

// Total is the sum of all drawable weights.
func (m *ProbabilityMap[E]) Total() float64 {
	return m.total
}

// Get draws one element. Drawing from an empty map panics.
func (m *ProbabilityMap[E]) Get(rng *rand.Rand) E {
	if len(m.elements) == 0 {
		panic("neat: draw from empty probability map")
	}
	r := rng.Float64() * m.total
	i := sort.Search(len(m.cumulative), func(i int) bool { return m.cumulative[i] > r })
	if i == len(m.cumulative) {
		i--
	}
	return m.elements[i]
}
