package main

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is the randomness the engine draws from: spawn edge and offset,
// power-up type, drop chance and respawn position.
type Rand interface {
	Float64() float64
}

// lockedRand is a math/rand source safe for concurrent requests
type lockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewRand returns a concurrency-safe Rand seeded with seed, or with the clock when seed is 0
func NewRand(seed int64) Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{src: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

// SeqRand replays a fixed sequence of values, cycling when exhausted
type SeqRand struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSeqRand returns a Rand that yields values in order
func NewSeqRand(values ...float64) *SeqRand {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &SeqRand{values: values}
}

func (s *SeqRand) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// pickIndex maps a [0,1) draw onto n buckets
func pickIndex(rng Rand, n int) int {
	i := int(rng.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
