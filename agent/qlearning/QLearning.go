// Package qlearning implements target-network-stabilized Q-learning
// with experience replay
package qlearning

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/qlearn-go/qlearn/environment"
	"github.com/qlearn-go/qlearn/expreplay"
	"github.com/qlearn-go/qlearn/policy"
	"github.com/qlearn-go/qlearn/timestep"
	"github.com/qlearn-go/qlearn/vfn"
	"github.com/qlearn-go/qlearn/vfn/linear"
)

// State describes the lifecycle of a Q-learning agent
type State int

const (
	Uninitialized State = iota

	// Exploring: transitions are stored but no learning happens yet
	Exploring

	// Learning: the steady state; every step stores a transition,
	// performs one gradient update, and periodically syncs the target
	// network
	Learning

	// Converged and Failed are terminal and decided by the caller,
	// since success criteria are domain-defined
	Converged
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Exploring:
		return "Exploring"
	case Learning:
		return "Learning"
	case Converged:
		return "Converged"
	case Failed:
		return "Failed"
	}
	return "Unknown"
}

// QLearning learns action values by temporal-difference updates over
// replayed experience. Two value functions of identical architecture
// are held: the online network, updated by gradient descent each
// learning step, and the target network, which provides the update
// targets and is updated from the online network's parameters every
// TargetSyncInterval steps through the value function's Set. By default
// Set copies exactly, so the target is a snapshot of some past online
// network, but a value function may be configured for soft Polyak
// updates instead (see vfn/mlp Config.Tau).
//
// A QLearning owns all of its mutable state, so multiple agents can be
// instantiated independently in the same process.
type QLearning struct {
	env    environment.Environment
	policy *policy.EGreedy
	replay expreplay.Replayer

	online vfn.ValueFunction
	target vfn.ValueFunction

	config Config

	state      State
	totalSteps int
	stored     int
}

// New returns a new QLearning agent acting in env, selecting actions
// with p, replaying experience from replay, and approximating action
// values with v. The target network is created as an independent clone
// of v.
func New(env environment.Environment, p *policy.EGreedy,
	replay expreplay.Replayer, v vfn.ValueFunction,
	config Config) (*QLearning, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if replay.BatchSize() != config.BatchSize {
		return nil, fmt.Errorf("new: replay batch size does not match "+
			"configuration \n\twant(%v) \n\thave(%v)", config.BatchSize,
			replay.BatchSize())
	}
	if v.ObservationDimension() != env.ObservationDimension() {
		return nil, fmt.Errorf("new: value function features do not match "+
			"environment \n\twant(%v) \n\thave(%v)",
			env.ObservationDimension(), v.ObservationDimension())
	}
	if v.ActionCount() != env.ActionCount() {
		return nil, fmt.Errorf("new: value function actions do not match "+
			"environment \n\twant(%v) \n\thave(%v)", env.ActionCount(),
			v.ActionCount())
	}

	target, err := v.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %v",
			err)
	}

	return &QLearning{
		env:    env,
		policy: p,
		replay: replay,
		online: v,
		target: target,
		config: config,
		state:  Exploring,
	}, nil
}

// NewLinear returns a QLearning agent whose value function is linear
// in the environment's observation features, learning with step size
// config.StepSize
func NewLinear(env environment.Environment, p *policy.EGreedy,
	replay expreplay.Replayer, config Config) (*QLearning, error) {
	v, err := linear.New(env.ObservationDimension(), env.ActionCount(),
		config.StepSize)
	if err != nil {
		return nil, err
	}
	return New(env, p, replay, v, config)
}

// Episode runs a single episode: the environment is reset, then
// stepped until termination or the configured step limit. Each step
// stores the observed transition and, once the agent is in the
// Learning state, performs one gradient update on the online network.
// The total discounted return of the episode is returned.
//
// Cancelling ctx stops the episode at the next step boundary.
func (q *QLearning) Episode(ctx context.Context) (float64, error) {
	if q.state == Converged || q.state == Failed {
		return 0, fmt.Errorf("episode: cannot run episode in %v state",
			q.state)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	step := q.env.Reset()
	ret := 0.0
	discount := 1.0

	for t := 0; t < q.config.StepLimit && !step.Last(); t++ {
		if err := ctx.Err(); err != nil {
			return ret, err
		}

		values, err := q.actionValues(step.Observation)
		if err != nil {
			return ret, q.checkFatal(err)
		}
		action, err := q.policy.SelectAction(values)
		if err != nil {
			return ret, err
		}

		next, err := q.env.Step(action)
		if err != nil {
			// The partial transition is discarded; the replay buffer
			// is untouched
			return ret, &EnvironmentError{Err: err}
		}

		if err := q.replay.Add(timestep.NewTransition(step, action,
			next)); err != nil {
			return ret, fmt.Errorf("episode: could not store transition:"+
				" %v", err)
		}
		q.stored++
		q.totalSteps++

		if q.state == Exploring && q.stored >= q.config.ExplorationSteps &&
			q.stored >= q.replay.MinCapacity() {
			q.state = Learning
		}

		if q.state == Learning {
			if err := q.learn(); err != nil {
				return ret, q.checkFatal(err)
			}
		}

		if q.totalSteps%q.config.TargetSyncInterval == 0 {
			if err := q.target.Set(q.online); err != nil {
				return ret, fmt.Errorf("episode: could not sync target "+
					"network: %v", err)
			}
		}

		ret += discount * next.Reward
		discount *= q.config.Gamma
		step = next
	}

	return ret, nil
}

// learn samples a batch of transitions, computes their TD targets
// using the target network, and performs one gradient update on the
// online network
func (q *QLearning) learn() error {
	batch, slots, isWeights, err := q.replay.Sample()
	if err != nil {
		if expreplay.IsEmptyBuffer(err) || expreplay.IsInsufficientSamples(err) {
			// Unreachable given the state machine's gating
			return fmt.Errorf("learn: %w", errInsufficientData)
		}
		return fmt.Errorf("learn: could not sample: %v", err)
	}

	states, actions, targets, err := q.batchTargets(batch)
	if err != nil {
		return err
	}

	// TD errors observed before the update refresh the priorities of
	// the sampled slots
	if updater, ok := q.replay.(expreplay.PriorityUpdater); ok {
		current, err := q.online.Predict(states)
		if err != nil {
			return err
		}

		tdErrors := make([]float64, len(batch))
		for i := range batch {
			tdErrors[i] = targets[i] - current.At(i, actions[i])
		}
		if err := updater.UpdatePriorities(slots, tdErrors); err != nil {
			return fmt.Errorf("learn: could not update priorities: %v", err)
		}
	}

	return q.online.GradientStep(states, targets, actions, isWeights)
}

// batchTargets computes the TD targets of a batch of transitions. The
// states batch and taken actions are returned alongside the targets so
// callers can feed them straight into a gradient update.
func (q *QLearning) batchTargets(batch []timestep.Transition) (*mat.Dense,
	[]int, []float64, error) {
	n := len(batch)
	features := q.online.ObservationDimension()

	states := mat.NewDense(n, features, nil)
	nextStates := mat.NewDense(n, features, nil)
	actions := make([]int, n)
	for i, tr := range batch {
		setRow(states, i, tr.State)
		setRow(nextStates, i, tr.NextState)
		actions[i] = tr.Action
	}

	nextValues, err := q.target.Predict(nextStates)
	if err != nil {
		return nil, nil, nil, err
	}

	// Double Q-learning decouples action selection (online network)
	// from action evaluation (target network)
	var nextOnline *mat.Dense
	if q.config.DoubleQ {
		nextOnline, err = q.online.Predict(nextStates)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	targets := make([]float64, n)
	for i, tr := range batch {
		if tr.Terminal {
			targets[i] = tr.Reward
			continue
		}
		if q.config.DoubleQ {
			selected := argmaxRow(nextOnline, i)
			targets[i] = tr.Reward + q.config.Gamma*nextValues.At(i, selected)
		} else {
			targets[i] = tr.Reward + q.config.Gamma*maxRow(nextValues, i)
		}
	}

	return states, actions, targets, nil
}

// TdErrors returns the temporal-difference error of each transition
// under the current online and target networks, without updating any
// parameters
func (q *QLearning) TdErrors(transitions []timestep.Transition) ([]float64,
	error) {
	if len(transitions) == 0 {
		return nil, nil
	}

	states, actions, targets, err := q.batchTargets(transitions)
	if err != nil {
		return nil, err
	}
	current, err := q.online.Predict(states)
	if err != nil {
		return nil, err
	}

	tdErrors := make([]float64, len(transitions))
	for i := range transitions {
		tdErrors[i] = targets[i] - current.At(i, actions[i])
	}
	return tdErrors, nil
}

// actionValues returns the online network's action values for a single
// observation
func (q *QLearning) actionValues(obs mat.Vector) (mat.Vector, error) {
	state := mat.NewDense(1, obs.Len(), nil)
	setRow(state, 0, obs)

	values, err := q.online.Predict(state)
	if err != nil {
		return nil, err
	}
	return values.RowView(0), nil
}

// GreedyAction returns the greedy action of the online network for the
// given observation without advancing the policy's decay schedule
func (q *QLearning) GreedyAction(obs mat.Vector) (int, error) {
	values, err := q.actionValues(obs)
	if err != nil {
		return 0, err
	}
	return q.policy.SelectGreedy(values)
}

// checkFatal moves the agent to the Failed state when err is
// unrecoverable: numeric divergence must not be trained through, and
// an underfilled buffer at a learning step is an invariant violation
func (q *QLearning) checkFatal(err error) error {
	if vfn.IsDivergence(err) || IsInsufficientData(err) {
		q.state = Failed
	}
	return err
}

// MarkConverged records the caller's decision that training has
// converged. Success criteria are domain-defined, so the agent never
// makes this transition itself.
func (q *QLearning) MarkConverged() {
	q.state = Converged
}

// MarkFailed records the caller's decision that training has failed,
// for example because an episode budget was exhausted
func (q *QLearning) MarkFailed() {
	q.state = Failed
}

// State returns the current lifecycle state of the agent
func (q *QLearning) State() State {
	return q.state
}

// TotalSteps returns the number of environment steps taken across all
// episodes
func (q *QLearning) TotalSteps() int {
	return q.totalSteps
}

// Eval sets the agent into evaluation mode: action selection is
// greedy and exploration does not decay
func (q *QLearning) Eval() {
	q.policy.Eval()
}

// Train sets the agent into training mode
func (q *QLearning) Train() {
	q.policy.Train()
}

// setRow copies a state vector into row i of a batch matrix
func setRow(batch *mat.Dense, i int, state mat.Vector) {
	for j := 0; j < state.Len(); j++ {
		batch.Set(i, j, state.AtVec(j))
	}
}

// maxRow returns the maximum value in row i of values
func maxRow(values *mat.Dense, i int) float64 {
	_, cols := values.Dims()
	max := values.At(i, 0)
	for j := 1; j < cols; j++ {
		if v := values.At(i, j); v > max {
			max = v
		}
	}
	return max
}

// argmaxRow returns the column of the maximum value in row i of
// values, with the lowest column winning ties
func argmaxRow(values *mat.Dense, i int) int {
	_, cols := values.Dims()
	argmax := 0
	max := values.At(i, 0)
	for j := 1; j < cols; j++ {
		if v := values.At(i, j); v > max {
			max = v
			argmax = j
		}
	}
	return argmax
}
