// Package selection picks which file a binding plays on each activation.
//
// The policy set is closed (Random, RoundRobin, Shuffle) and dispatched with a
// switch. Strategies never modify the file list they are given and tolerate a
// Cursor that was persisted against a different list.
package selection

import (
	"math/rand/v2"
	"slices"
	"sync"
)

// Selector carries the random source shared by Random and Shuffle.
// It is safe for concurrent use; serializing calls for one binding's
// Cursor is the caller's job.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Selector with a randomly seeded source.
func New() *Selector {
	return NewSeeded(rand.Uint64(), rand.Uint64())
}

// NewSeeded returns a Selector with a fixed seed, for reproducible tests.
func NewSeeded(seed1, seed2 uint64) *Selector {
	return &Selector{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

var processSelector = New()

// Next picks with the process-wide Selector.
func Next(mode Mode, files []string, cur *Cursor) (string, bool) {
	return processSelector.Next(mode, files, cur)
}

// Next returns the next file for mode and advances cur. It returns false
// when files is empty or mode is unknown; callers treat that as a no-op.
// cur may be nil for Random.
func (s *Selector) Next(mode Mode, files []string, cur *Cursor) (string, bool) {
	if len(files) == 0 {
		return "", false
	}
	if cur == nil {
		cur = &Cursor{}
	}

	switch mode {
	case Random:
		return files[s.intN(len(files))], true
	case RoundRobin:
		return nextRoundRobin(files, cur), true
	case Shuffle:
		return s.nextShuffle(files, cur), true
	default:
		return "", false
	}
}

func nextRoundRobin(files []string, cur *Cursor) string {
	n := len(files)
	i := cur.RRIndex % n
	if i < 0 {
		i += n
	}
	cur.RRIndex = (i + 1) % n
	return files[i]
}

func (s *Selector) nextShuffle(files []string, cur *Cursor) string {
	if cur.Pos < 0 || cur.Pos >= len(cur.Queue) || !samePool(cur.Queue, files) {
		cur.Queue = slices.Clone(files)
		s.shuffle(cur.Queue)
		cur.Pos = 0
	}
	f := cur.Queue[cur.Pos]
	cur.Pos++
	return f
}

// samePool reports whether queue is a permutation of files. A queue saved
// before the list was edited fails this check and is discarded.
func samePool(queue, files []string) bool {
	if len(queue) != len(files) {
		return false
	}
	counts := make(map[string]int, len(files))
	for _, f := range files {
		counts[f]++
	}
	for _, q := range queue {
		counts[q]--
		if counts[q] < 0 {
			return false
		}
	}
	return true
}

func (s *Selector) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// shuffle is a Fisher-Yates permutation in place.
func (s *Selector) shuffle(items []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
