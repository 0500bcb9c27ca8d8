package expreplay

import (
	"golang.org/x/exp/rand"

	"github.com/qlearn-go/qlearn/timestep"
)

// uniform is a Replayer that samples stored transitions uniformly at
// random, with replacement. Sampling with replacement keeps Sample()
// well defined when the requested batch size is close to the number of
// stored transitions and matches the distribution the buffer would
// converge to anyway for large buffers.
type uniform struct {
	transitions []timestep.Transition

	// next is the slot the next Add writes to; the ring advances
	// next through [0, maxCapacity) so the oldest slot is always
	// overwritten first
	next   int
	filled int

	minCapacity int
	maxCapacity int
	batchSize   int

	rng *rand.Rand
}

// NewUniform returns a Replayer which samples transitions uniformly at
// random with replacement. Sampling is legal once
// max(minCapacity, batchSize) transitions have been stored.
func NewUniform(minCapacity, maxCapacity, batchSize int,
	seed uint64) (Replayer, error) {
	if err := validateCapacity(minCapacity, maxCapacity, batchSize); err != nil {
		return nil, err
	}

	return &uniform{
		transitions: make([]timestep.Transition, maxCapacity),
		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		batchSize:   batchSize,
		rng:         rand.New(rand.NewSource(seed)),
	}, nil
}

// Add adds a transition to the buffer, overwriting the logically
// oldest slot when the buffer is at capacity
func (u *uniform) Add(t timestep.Transition) error {
	u.transitions[u.next] = t
	u.next = (u.next + 1) % u.maxCapacity
	if u.filled < u.maxCapacity {
		u.filled++
	}
	return nil
}

// Sample samples a batch of transitions uniformly at random with
// replacement
func (u *uniform) Sample() ([]timestep.Transition, []int, []float64, error) {
	if u.filled == 0 {
		return nil, nil, nil, &ExpReplayError{"sample", errEmptyBuffer}
	}
	if u.filled < u.MinCapacity() {
		return nil, nil, nil, &ExpReplayError{"sample", errInsufficientSamples}
	}

	batch := make([]timestep.Transition, u.batchSize)
	slots := make([]int, u.batchSize)
	weights := make([]float64, u.batchSize)
	for i := range batch {
		slot := u.rng.Intn(u.filled)
		batch[i] = u.transitions[slot]
		slots[i] = slot
		weights[i] = 1.0
	}

	return batch, slots, weights, nil
}

// Capacity returns the current number of transitions in the buffer
func (u *uniform) Capacity() int {
	return u.filled
}

// MaxCapacity returns the maximum number of transitions allowed in the
// buffer
func (u *uniform) MaxCapacity() int {
	return u.maxCapacity
}

// MinCapacity returns the number of transitions required in the buffer
// before sampling is allowed
func (u *uniform) MinCapacity() int {
	if u.minCapacity > u.batchSize {
		return u.minCapacity
	}
	return u.batchSize
}

// BatchSize returns the number of transitions returned by Sample()
func (u *uniform) BatchSize() int {
	return u.batchSize
}
