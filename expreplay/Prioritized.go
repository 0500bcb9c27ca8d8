package expreplay

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/qlearn-go/qlearn/timestep"
)

// priorityEpsilon is added to temporal-difference error magnitudes so
// that no stored transition ever has zero probability of being
// resampled
const priorityEpsilon = 1e-6

// prioritized is a Replayer that samples stored transitions with
// probability proportional to priority^alpha. Sampling returns
// importance-sampling correction weights (1/(N*P(i)))^beta, normalized
// so the largest weight in a batch is 1. Beta anneals from its initial
// value toward 1 by betaGrowth per Sample call.
type prioritized struct {
	transitions []timestep.Transition
	tree        *sumTree

	alpha      float64
	beta       float64
	betaGrowth float64

	// maxPriority tracks the largest priority seen so far; fresh
	// transitions are stored at this priority so each is sampled at
	// least once before its priority reflects an observed TD error
	maxPriority float64

	next   int
	filled int

	minCapacity int
	maxCapacity int
	batchSize   int

	rng *rand.Rand
}

// NewPrioritized returns a Replayer which samples transitions with
// probability proportional to priority^alpha. Alpha controls the
// degree of prioritization (0 recovers uniform sampling). Beta0 is the
// initial importance-sampling correction exponent, annealed toward 1
// by betaGrowth on each Sample call.
func NewPrioritized(minCapacity, maxCapacity, batchSize int,
	alpha, beta0, betaGrowth float64, seed uint64) (Replayer, error) {
	if err := validateCapacity(minCapacity, maxCapacity, batchSize); err != nil {
		return nil, err
	}
	if alpha < 0 {
		return nil, fmt.Errorf("new: alpha must be non-negative \n\thave(%v)",
			alpha)
	}
	if beta0 < 0 || beta0 > 1 {
		return nil, fmt.Errorf("new: beta0 not in [0, 1] \n\thave(%v)", beta0)
	}
	if betaGrowth < 0 {
		return nil, fmt.Errorf("new: betaGrowth must be non-negative "+
			"\n\thave(%v)", betaGrowth)
	}

	return &prioritized{
		transitions: make([]timestep.Transition, maxCapacity),
		tree:        newSumTree(maxCapacity),
		alpha:       alpha,
		beta:        beta0,
		betaGrowth:  betaGrowth,
		maxPriority: 1.0,
		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		batchSize:   batchSize,
		rng:         rand.New(rand.NewSource(seed)),
	}, nil
}

// Add adds a transition to the buffer at the maximum priority seen so
// far, overwriting the logically oldest slot when at capacity
func (p *prioritized) Add(t timestep.Transition) error {
	p.transitions[p.next] = t
	p.tree.Update(p.next, p.maxPriority)

	p.next = (p.next + 1) % p.maxCapacity
	if p.filled < p.maxCapacity {
		p.filled++
	}
	return nil
}

// Sample samples a batch of transitions with probability proportional
// to priority^alpha, returning importance-sampling weights normalized
// so the maximum weight in the batch is 1
func (p *prioritized) Sample() ([]timestep.Transition, []int, []float64, error) {
	if p.filled == 0 {
		return nil, nil, nil, &ExpReplayError{"sample", errEmptyBuffer}
	}
	if p.filled < p.MinCapacity() {
		return nil, nil, nil, &ExpReplayError{"sample", errInsufficientSamples}
	}

	total := p.tree.Total()
	n := float64(p.filled)

	batch := make([]timestep.Transition, p.batchSize)
	slots := make([]int, p.batchSize)
	weights := make([]float64, p.batchSize)

	maxWeight := 0.0
	for i := range batch {
		slot := p.tree.Find(p.rng.Float64() * total)
		prob := p.tree.Priority(slot) / total

		batch[i] = p.transitions[slot]
		slots[i] = slot
		weights[i] = math.Pow(1.0/(n*prob), p.beta)
		if weights[i] > maxWeight {
			maxWeight = weights[i]
		}
	}

	// Normalizing by the largest weight keeps the gradient scale of a
	// batch bounded
	for i := range weights {
		weights[i] /= maxWeight
	}

	p.beta += p.betaGrowth
	if p.beta > 1.0 {
		p.beta = 1.0
	}

	return batch, slots, weights, nil
}

// UpdatePriorities sets the priority of each slot from the magnitude
// of the temporal-difference error observed for the transition stored
// there
func (p *prioritized) UpdatePriorities(slots []int, tdErrors []float64) error {
	if len(slots) != len(tdErrors) {
		return fmt.Errorf("updatepriorities: invalid number of errors "+
			"\n\twant(%v) \n\thave(%v)", len(slots), len(tdErrors))
	}

	for i, slot := range slots {
		if slot < 0 || slot >= p.maxCapacity {
			return fmt.Errorf("updatepriorities: slot out of range "+
				"\n\twant[0, %v) \n\thave(%v)", p.maxCapacity, slot)
		}

		priority := math.Pow(math.Abs(tdErrors[i])+priorityEpsilon, p.alpha)
		p.tree.Update(slot, priority)
		if priority > p.maxPriority {
			p.maxPriority = priority
		}
	}
	return nil
}

// Beta returns the current importance-sampling correction exponent
func (p *prioritized) Beta() float64 {
	return p.beta
}

// Capacity returns the current number of transitions in the buffer
func (p *prioritized) Capacity() int {
	return p.filled
}

// MaxCapacity returns the maximum number of transitions allowed in the
// buffer
func (p *prioritized) MaxCapacity() int {
	return p.maxCapacity
}

// MinCapacity returns the number of transitions required in the buffer
// before sampling is allowed
func (p *prioritized) MinCapacity() int {
	if p.minCapacity > p.batchSize {
		return p.minCapacity
	}
	return p.batchSize
}

// BatchSize returns the number of transitions returned by Sample()
func (p *prioritized) BatchSize() int {
	return p.batchSize
}
