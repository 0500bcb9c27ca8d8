package timestep

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestNewTransition checks that a Transition takes its reward and
// terminal flag from the resulting timestep
func TestNewTransition(t *testing.T) {
	state := mat.NewVecDense(2, []float64{1, 0})
	next := mat.NewVecDense(2, []float64{0, 1})

	step := New(First, 0, 0.9, state, 0)
	nextStep := New(Mid, -1, 0.9, next, 1)

	tr := NewTransition(step, 3, nextStep)
	if tr.Action != 3 {
		t.Errorf("incorrect action \n\twant(%v) \n\thave(%v)", 3, tr.Action)
	}
	if tr.Reward != -1 {
		t.Errorf("reward should come from the resulting step \n\twant(%v)"+
			" \n\thave(%v)", -1, tr.Reward)
	}
	if tr.Terminal {
		t.Error("transition to a Mid step should not be terminal")
	}
	if tr.State != state || tr.NextState != next {
		t.Error("transition should reference the observed state vectors")
	}

	nextStep.StepType = Last
	tr = NewTransition(step, 0, nextStep)
	if !tr.Terminal {
		t.Error("transition to a Last step should be terminal")
	}
}

// TestStepTypePredicates checks the First, Mid, and Last predicates
func TestStepTypePredicates(t *testing.T) {
	obs := mat.NewVecDense(1, nil)

	step := New(First, 0, 1, obs, 0)
	if !step.First() || step.Mid() || step.Last() {
		t.Error("incorrect predicates for a First step")
	}

	step = New(Mid, 0, 1, obs, 1)
	if step.First() || !step.Mid() || step.Last() {
		t.Error("incorrect predicates for a Mid step")
	}

	step = New(Last, 0, 1, obs, 2)
	if step.First() || step.Mid() || !step.Last() {
		t.Error("incorrect predicates for a Last step")
	}
}
