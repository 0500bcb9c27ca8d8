// Package expreplay implements experience replay buffers
package expreplay

import (
	"fmt"

	"github.com/qlearn-go/qlearn/timestep"
)

// Replayer implements an experience replay buffer. Transitions are
// stored in a bounded ring: once the buffer is full, each Add
// overwrites the logically oldest slot.
type Replayer interface {
	// Add adds a transition to the buffer
	Add(t timestep.Transition) error

	// Sample samples a batch of transitions from the buffer. It
	// returns the sampled transitions, the buffer slots they occupy,
	// and a per-sample importance weight. Slots remain valid until
	// the next Add overwrites them and can be passed to a
	// PriorityUpdater. For non-prioritized buffers every weight is 1.
	Sample() ([]timestep.Transition, []int, []float64, error)

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in
	// the buffer before the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// PriorityUpdater is a Replayer whose sampling distribution depends on
// per-slot priorities that can be refreshed after a learning step.
type PriorityUpdater interface {
	Replayer

	// UpdatePriorities sets the priority of each slot from the
	// magnitude of the temporal-difference error observed for the
	// transition stored there
	UpdatePriorities(slots []int, tdErrors []float64) error
}

// SamplerType selects the sampling distribution of a replay buffer
type SamplerType string

const (
	// Uniform samples stored transitions uniformly at random
	Uniform SamplerType = "Uniform"

	// Prioritized samples stored transitions with probability
	// proportional to priority^alpha
	Prioritized SamplerType = "Prioritized"
)

// Config describes a specific configuration of a Replayer
type Config struct {
	SampleMethod SamplerType
	MaxCapacity  int
	MinCapacity  int
	BatchSize    int

	// Prioritized replay parameters, ignored by the uniform variant
	Alpha      float64 // Degree of prioritization
	Beta0      float64 // Initial importance-sampling correction
	BetaGrowth float64 // Per-sample annealing of beta toward 1
}

// Create creates and returns the Replayer described by the Config
func (c Config) Create(seed uint64) (Replayer, error) {
	switch c.SampleMethod {
	case Uniform:
		return NewUniform(c.MinCapacity, c.MaxCapacity, c.BatchSize, seed)
	case Prioritized:
		return NewPrioritized(c.MinCapacity, c.MaxCapacity, c.BatchSize,
			c.Alpha, c.Beta0, c.BetaGrowth, seed)
	}
	return nil, fmt.Errorf("create: no such sample method %v", c.SampleMethod)
}

// validateCapacity checks the capacity arguments shared by all
// Replayer variants
func validateCapacity(minCapacity, maxCapacity, batchSize int) error {
	if minCapacity <= 0 {
		return fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < 1 {
		return fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if batchSize < 1 {
		return fmt.Errorf("new: batchSize must be >= 1")
	}
	if maxCapacity < batchSize {
		return fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", batchSize, maxCapacity)
	}
	if maxCapacity < minCapacity {
		return fmt.Errorf("new: cannot have min capacity (%v) > max "+
			"buffer capacity (%v), sampling would never be legal",
			minCapacity, maxCapacity)
	}
	return nil
}
