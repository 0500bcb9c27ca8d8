// Package policy implements action selection strategies for
// value-based agents
package policy

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// EGreedy implements an ε-greedy policy over a finite action set.
//
// With probability ε a uniformly random action is selected, otherwise
// the greedy action is selected, with the lowest index winning ties.
// The exploration rate ε may decay over time: every decayInterval
// selections ε is reduced by decay, clamped at a minimum rate. ε is
// monotonically non-increasing. Decay is suspended while the policy is
// in evaluation mode.
type EGreedy struct {
	epsilon    float64
	minEpsilon float64

	decay         float64
	decayInterval int
	untilDecay    int

	actions int
	explore distuv.Categorical
	rng     *rand.Rand
	eval    bool
}

// NewEGreedy returns a new EGreedy policy with a fixed exploration
// rate epsilon over the given number of actions
func NewEGreedy(epsilon float64, actions int, seed uint64) (*EGreedy, error) {
	return NewDecayingEGreedy(epsilon, epsilon, 1.0, 0, actions, seed)
}

// NewDecayingEGreedy returns a new EGreedy policy whose exploration
// rate starts at epsilon and is reduced by decay every decayInterval
// action selections, never dropping below minEpsilon. A decayInterval
// of 0 disables decay.
func NewDecayingEGreedy(epsilon, minEpsilon, decay float64,
	decayInterval, actions int, seed uint64) (*EGreedy, error) {
	if epsilon < 0 || epsilon > 1 {
		return nil, fmt.Errorf("egreedy: epsilon not in [0, 1] \n\thave(%v)",
			epsilon)
	}
	if minEpsilon > epsilon {
		return nil, fmt.Errorf("egreedy: minimum rate exceeds initial rate"+
			" \n\twant(≤ %v) \n\thave(%v)", epsilon, minEpsilon)
	}
	if minEpsilon < 0 {
		return nil, fmt.Errorf("egreedy: minimum rate must be non-negative"+
			" \n\thave(%v)", minEpsilon)
	}
	if decayInterval < 0 {
		return nil, fmt.Errorf("egreedy: decay interval must be "+
			"non-negative \n\thave(%v)", decayInterval)
	}
	if decayInterval > 0 && decay <= 0 {
		return nil, fmt.Errorf("egreedy: decay amount must be positive"+
			" \n\thave(%v)", decay)
	}
	if actions < 1 {
		return nil, fmt.Errorf("egreedy: must have at least one action"+
			" \n\thave(%v)", actions)
	}

	source := rand.NewSource(seed)

	// Uniform categorical distribution over actions for the
	// exploration branch
	weights := make([]float64, actions)
	for i := range weights {
		weights[i] = 1.0 / float64(actions)
	}
	explore := distuv.NewCategorical(weights, source)

	return &EGreedy{
		epsilon:       epsilon,
		minEpsilon:    minEpsilon,
		decay:         decay,
		decayInterval: decayInterval,
		untilDecay:    decayInterval,
		actions:       actions,
		explore:       explore,
		rng:           rand.New(source),
	}, nil
}

// SelectAction selects an action given the action values of the
// current state
func (p *EGreedy) SelectAction(actionValues mat.Vector) (int, error) {
	if actionValues.Len() != p.actions {
		return 0, fmt.Errorf("selectaction: invalid number of action "+
			"values \n\twant(%v) \n\thave(%v)", p.actions, actionValues.Len())
	}

	// In evaluation mode selection is purely greedy
	action := greedy(actionValues)
	if !p.eval && p.rng.Float64() < p.epsilon {
		action = int(p.explore.Rand())
	}

	if !p.eval {
		p.step()
	}
	return action, nil
}

// step advances the decay schedule by one action selection
func (p *EGreedy) step() {
	if p.decayInterval == 0 {
		return
	}

	p.untilDecay--
	if p.untilDecay > 0 {
		return
	}
	p.untilDecay = p.decayInterval

	p.epsilon -= p.decay
	if p.epsilon < p.minEpsilon {
		p.epsilon = p.minEpsilon
	}
}

// Epsilon returns the current exploration rate
func (p *EGreedy) Epsilon() float64 {
	return p.epsilon
}

// Eval sets the policy to evaluation mode, in which action selection
// is greedy and the decay schedule does not advance
func (p *EGreedy) Eval() {
	p.eval = true
}

// Train sets the policy to training mode
func (p *EGreedy) Train() {
	p.eval = false
}

// IsEval returns whether the policy is in evaluation mode
func (p *EGreedy) IsEval() bool {
	return p.eval
}

// SelectGreedy returns the greedy action for the given action values
// regardless of the current exploration rate, without advancing the
// decay schedule
func (p *EGreedy) SelectGreedy(actionValues mat.Vector) (int, error) {
	if actionValues.Len() != p.actions {
		return 0, fmt.Errorf("selectgreedy: invalid number of action "+
			"values \n\twant(%v) \n\thave(%v)", p.actions, actionValues.Len())
	}
	return greedy(actionValues), nil
}

// greedy returns the index of the maximum action value. Ties are
// broken deterministically: the lowest index wins.
func greedy(actionValues mat.Vector) int {
	argmax := 0
	max := actionValues.AtVec(0)
	for i := 1; i < actionValues.Len(); i++ {
		if v := actionValues.AtVec(i); v > max {
			max = v
			argmax = i
		}
	}
	return argmax
}
