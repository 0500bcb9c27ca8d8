package qlearning

import "fmt"

// Config implements a configuration of the Q-learning algorithm. A
// Config is validated once, on construction of the agent, and never
// mutated afterwards.
type Config struct {
	// StepSize is the learning rate used when the agent constructs
	// its own value function (see NewLinear). Agents given an
	// externally constructed value function ignore it, since the
	// value function's optimizer owns the learning rate.
	StepSize float64

	// Gamma is the discount factor, in [0, 1)
	Gamma float64

	// TargetSyncInterval is the number of environment steps between
	// copies of the online network's parameters into the target
	// network
	TargetSyncInterval int

	// ExplorationSteps is the number of transitions that must be
	// stored before learning starts
	ExplorationSteps int

	// DoubleQ selects the double Q-learning update: action selection
	// by the online network, action evaluation by the target network
	DoubleQ bool

	// StepLimit is the maximum number of steps per episode
	StepLimit int

	// BatchSize is the number of transitions per learning step. It
	// must equal the batch size of the replay buffer.
	BatchSize int
}

// Validate checks the Config to ensure it is a valid configuration of
// a Q-learning agent
func (c Config) Validate() error {
	if c.Gamma < 0 || c.Gamma >= 1 {
		return fmt.Errorf("config: discount factor not in [0, 1) "+
			"\n\thave(%v)", c.Gamma)
	}
	if c.TargetSyncInterval < 1 {
		return fmt.Errorf("config: target networks must be synced at "+
			"positive step intervals \n\twant(>0) \n\thave(%v)",
			c.TargetSyncInterval)
	}
	if c.ExplorationSteps < 0 {
		return fmt.Errorf("config: exploration steps must be non-negative"+
			" \n\thave(%v)", c.ExplorationSteps)
	}
	if c.StepLimit < 1 {
		return fmt.Errorf("config: step limit must be positive \n\thave(%v)",
			c.StepLimit)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch size must be positive \n\thave(%v)",
			c.BatchSize)
	}
	return nil
}
