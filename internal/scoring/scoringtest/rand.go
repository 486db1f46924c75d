// Package scoringtest provides deterministic randomness for scoring tests.
package scoringtest

import "sync"

// SequenceRand replays fixed Float64 and IntN values in order, wrapping
// around when a sequence runs out. IntN results are reduced modulo n.
type SequenceRand struct {
	floats []float64
	ints   []int
	fi, ii int
	mu     sync.Mutex
}

// NewSequenceRand creates a SequenceRand. Empty sequences yield zeros.
func NewSequenceRand(floats []float64, ints []int) *SequenceRand {
	return &SequenceRand{floats: floats, ints: ints}
}

// Float64 returns the next scripted float.
func (r *SequenceRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return 0
	}
	v := r.floats[r.fi%len(r.floats)]
	r.fi++
	return v
}

// IntN returns the next scripted int reduced into [0, n).
func (r *SequenceRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 || n <= 0 {
		return 0
	}
	v := r.ints[r.ii%len(r.ints)] % n
	r.ii++
	if v < 0 {
		v += n
	}
	return v
}

// Draws returns how many floats and ints have been consumed.
func (r *SequenceRand) Draws() (floats, ints int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fi, r.ii
}

// Constant returns a SequenceRand that always yields v and 0.
func Constant(v float64) *SequenceRand {
	return NewSequenceRand([]float64{v}, nil)
}
