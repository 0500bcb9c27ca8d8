package experiment

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/qlearn-go/qlearn/agent/qlearning"
	"github.com/qlearn-go/qlearn/environment"
	"github.com/qlearn-go/qlearn/environment/gridworld"
	"github.com/qlearn-go/qlearn/experiment/tracker"
	"github.com/qlearn-go/qlearn/expreplay"
	"github.com/qlearn-go/qlearn/policy"
)

// newTestAgent wires a small GridWorld agent whose episodes all start
// one step left of the goal, so every episode pays the same return
func newTestAgent(t *testing.T) *qlearning.QLearning {
	start := environment.NewSingleStart(mat.NewVecDense(2,
		[]float64{0, 0}))
	env, err := gridworld.New(1, 2, 1, 0, 10, 0.9, start)
	if err != nil {
		t.Fatal(err)
	}

	p, err := policy.NewEGreedy(0.0, env.ActionCount(), 14)
	if err != nil {
		t.Fatal(err)
	}
	replay, err := expreplay.NewUniform(1, 100, 1, 14)
	if err != nil {
		t.Fatal(err)
	}

	conf := qlearning.Config{
		StepSize:           0.1,
		Gamma:              0.9,
		TargetSyncInterval: 1000,
		ExplorationSteps:   1_000_000,
		StepLimit:          10,
		BatchSize:          1,
	}
	q, err := qlearning.NewLinear(env, p, replay, conf)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

// TestOnlineConvergence checks that the experiment marks the agent
// converged once the moving average of returns reaches the threshold
func TestOnlineConvergence(t *testing.T) {
	q := newTestAgent(t)

	// An episode's return is bounded below by a full step-limit episode
	// of step rewards, so this threshold is reached as soon as the
	// window fills
	e, err := NewOnline(q, 100, 3, -100.0)
	if err != nil {
		t.Fatal(err)
	}

	final, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if final != qlearning.Converged {
		t.Errorf("incorrect final state \n\twant(%v) \n\thave(%v)",
			qlearning.Converged, final)
	}
	if len(e.Returns()) != 3 {
		t.Errorf("experiment should stop once converged \n\twant(%v "+
			"episodes) \n\thave(%v)", 3, len(e.Returns()))
	}
}

// TestOnlineBudgetExhausted checks that the experiment marks the agent
// failed when the episode budget runs out
func TestOnlineBudgetExhausted(t *testing.T) {
	q := newTestAgent(t)

	// An unreachable threshold exhausts the budget
	e, err := NewOnline(q, 5, 3, 1000.0)
	if err != nil {
		t.Fatal(err)
	}

	final, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if final != qlearning.Failed {
		t.Errorf("incorrect final state \n\twant(%v) \n\thave(%v)",
			qlearning.Failed, final)
	}
	if len(e.Returns()) != 5 {
		t.Errorf("incorrect number of episodes \n\twant(%v) \n\thave(%v)",
			5, len(e.Returns()))
	}
}

// TestOnlineTrackers checks that every finished episode reaches the
// registered trackers and that Save persists their data
func TestOnlineTrackers(t *testing.T) {
	q := newTestAgent(t)

	filename := filepath.Join(t.TempDir(), "data.bin")
	saver := tracker.NewReturn(filename)

	e, err := NewOnline(q, 4, 10, 1000.0)
	if err != nil {
		t.Fatal(err)
	}
	e.Register(saver)

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Save(); err != nil {
		t.Fatal(err)
	}

	data := tracker.LoadData(filename)
	if len(data) != 4 {
		t.Fatalf("incorrect number of tracked episodes \n\twant(%v) "+
			"\n\thave(%v)", 4, len(data))
	}
	for i, ret := range e.Returns() {
		if math.Abs(data[i]-ret) > 1e-12 {
			t.Errorf("episode %v: tracked return differs \n\twant(%v) "+
				"\n\thave(%v)", i, ret, data[i])
		}
	}
}

// TestOnlineValidation checks construction validation
func TestOnlineValidation(t *testing.T) {
	q := newTestAgent(t)

	if _, err := NewOnline(q, 0, 3, 0.0); err == nil {
		t.Error("expected error for non-positive episode budget")
	}
	if _, err := NewOnline(q, 10, 0, 0.0); err == nil {
		t.Error("expected error for non-positive window")
	}
}

// TestOnlineContextCancel checks that cancelling the context stops the
// experiment with the underlying error
func TestOnlineContextCancel(t *testing.T) {
	q := newTestAgent(t)

	e, err := NewOnline(q, 100, 3, 1000.0)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Run(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}
