package orchestrator

import (
	"math/rand"
	"time"

	"github.com/randomizedcoder/go-othello-arena/internal/book"
)

// ShuffleSource provides deterministic per-worker opening orders. A fixed
// run seed reproduces every worker's order; workers never share a stream.
type ShuffleSource struct {
	seed int64
}

// NewShuffleSource creates a shuffle source for the given run seed.
func NewShuffleSource(seed int64) *ShuffleSource {
	return &ShuffleSource{seed: seed}
}

// NewShuffleSourceFromTime creates a shuffle source seeded from the clock.
func NewShuffleSourceFromTime() *ShuffleSource {
	return NewShuffleSource(time.Now().UnixNano())
}

// Seed returns the run seed.
func (s *ShuffleSource) Seed() int64 {
	return s.seed
}

// ForWorker returns a random generator seeded for one worker.
func (s *ShuffleSource) ForWorker(worker int) *rand.Rand {
	return rand.New(rand.NewSource(int64(worker) ^ s.seed))
}

// Order returns the book indices of r in a random permutation.
func (s *ShuffleSource) Order(worker int, r book.Range) []int {
	order := make([]int, r.Len())
	for i := range order {
		order[i] = r.Start + i
	}
	rng := s.ForWorker(worker)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}
