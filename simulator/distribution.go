package simulator

import (
	"math"
	"math/rand"
)

// sampler draws the uniform random values the simulation needs.
// It is not safe for concurrent use; the simulator owns exactly one.
type sampler struct {
	rng *rand.Rand
}

func newSampler(rng *rand.Rand) *sampler {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &sampler{rng: rng}
}

// unit returns a value in [0, 1)
func (s *sampler) unit() float64 {
	return s.rng.Float64()
}

// between returns a value in [lo, hi)
func (s *sampler) between(lo, hi float64) float64 {
	if lo >= hi {
		return lo
	}
	return lo + s.rng.Float64()*(hi-lo)
}

// uniform samples a configured range
func (s *sampler) uniform(r Range) float64 {
	return s.between(r.Min, r.Max)
}

// angle returns a direction in [0, 2π)
func (s *sampler) angle() float64 {
	return s.rng.Float64() * 2 * math.Pi
}

// pick returns a uniformly chosen element of values, or "" when empty
func (s *sampler) pick(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[s.rng.Intn(len(values))]
}
