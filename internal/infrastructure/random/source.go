package random

import (
	"math/rand/v2"
	"sync"
)

// Source draws uniform values. The zero value uses the global generator.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func New() *Source {
	return &Source{}
}

// NewSeeded returns a deterministic source, used for reproducible runs.
func NewSeeded(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Source) Uniform(min, max float64) float64 {
	if max < min {
		min, max = max, min
	}
	return min + s.float64()*(max-min)
}

func (s *Source) float64() float64 {
	if s.rng == nil {
		return rand.Float64()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
