package linear

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/qlearn-go/qlearn/vfn"
)

// TestLinearRegression checks that repeated gradient steps move
// predictions toward fixed targets
func TestLinearRegression(t *testing.T) {
	l, err := New(2, 2, 0.1)
	if err != nil {
		t.Fatal(err)
	}

	states := mat.NewDense(2, 2, []float64{
		1.0, 0.0,
		0.0, 1.0,
	})
	targets := []float64{2.0, -3.0}
	actions := []int{0, 1}

	for i := 0; i < 200; i++ {
		if err := l.GradientStep(states, targets, actions, nil); err != nil {
			t.Fatal(err)
		}
	}

	values, err := l.Predict(states)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(values.At(0, 0)-2.0) > 1e-6 {
		t.Errorf("incorrect estimate for action 0 \n\twant(%v) \n\thave(%v)",
			2.0, values.At(0, 0))
	}
	if math.Abs(values.At(1, 1)+3.0) > 1e-6 {
		t.Errorf("incorrect estimate for action 1 \n\twant(%v) \n\thave(%v)",
			-3.0, values.At(1, 1))
	}
}

// TestLinearUpdatesOnlyTakenAction checks that a gradient step moves
// only the weight row of the taken action
func TestLinearUpdatesOnlyTakenAction(t *testing.T) {
	l, err := New(2, 3, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	states := mat.NewDense(1, 2, []float64{1.0, 1.0})
	if err := l.GradientStep(states, []float64{1.0}, []int{1}, nil); err != nil {
		t.Fatal(err)
	}

	values, err := l.Predict(states)
	if err != nil {
		t.Fatal(err)
	}
	if values.At(0, 0) != 0 || values.At(0, 2) != 0 {
		t.Errorf("untaken actions changed \n\thave(%v, %v)",
			values.At(0, 0), values.At(0, 2))
	}
	if values.At(0, 1) == 0 {
		t.Error("taken action did not change")
	}
}

// TestLinearImportanceWeights checks that importance-sampling weights
// scale the update
func TestLinearImportanceWeights(t *testing.T) {
	full, _ := New(1, 1, 0.1)
	half, _ := New(1, 1, 0.1)

	states := mat.NewDense(1, 1, []float64{1.0})
	targets := []float64{1.0}
	actions := []int{0}

	full.GradientStep(states, targets, actions, []float64{1.0})
	half.GradientStep(states, targets, actions, []float64{0.5})

	fullValues, _ := full.Predict(states)
	halfValues, _ := half.Predict(states)
	if math.Abs(fullValues.At(0, 0)-2*halfValues.At(0, 0)) > 1e-12 {
		t.Errorf("weight 0.5 should halve the update \n\thave(%v, %v)",
			fullValues.At(0, 0), halfValues.At(0, 0))
	}
}

// TestLinearCloneIndependence checks that updating a clone leaves the
// original unchanged and vice versa
func TestLinearCloneIndependence(t *testing.T) {
	l, err := New(1, 1, 0.1)
	if err != nil {
		t.Fatal(err)
	}

	cloned, err := l.Clone()
	if err != nil {
		t.Fatal(err)
	}

	states := mat.NewDense(1, 1, []float64{1.0})
	if err := l.GradientStep(states, []float64{1.0}, []int{0}, nil); err != nil {
		t.Fatal(err)
	}

	cloneValues, err := cloned.Predict(states)
	if err != nil {
		t.Fatal(err)
	}
	if cloneValues.At(0, 0) != 0 {
		t.Errorf("clone changed by original's update \n\thave(%v)",
			cloneValues.At(0, 0))
	}
}

// TestLinearSet checks that Set copies parameters exactly and that
// later updates of the source do not propagate
func TestLinearSet(t *testing.T) {
	source, _ := New(1, 1, 0.1)
	dest, _ := New(1, 1, 0.1)

	states := mat.NewDense(1, 1, []float64{1.0})
	source.GradientStep(states, []float64{1.0}, []int{0}, nil)

	if err := dest.Set(source); err != nil {
		t.Fatal(err)
	}

	srcValues, _ := source.Predict(states)
	dstValues, _ := dest.Predict(states)
	if srcValues.At(0, 0) != dstValues.At(0, 0) {
		t.Errorf("Set did not copy parameters \n\twant(%v) \n\thave(%v)",
			srcValues.At(0, 0), dstValues.At(0, 0))
	}

	source.GradientStep(states, []float64{1.0}, []int{0}, nil)
	srcValues, _ = source.Predict(states)
	dstValues, _ = dest.Predict(states)
	if srcValues.At(0, 0) == dstValues.At(0, 0) {
		t.Error("Set should copy, not alias, parameters")
	}
}

// TestLinearDivergence checks that predictions containing NaN or Inf
// are reported as divergence
func TestLinearDivergence(t *testing.T) {
	l, err := New(1, 1, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	states := mat.NewDense(1, 1, []float64{1.0})
	l.GradientStep(states, []float64{math.Inf(1)}, []int{0}, nil)

	_, err = l.Predict(states)
	if !vfn.IsDivergence(err) {
		t.Errorf("expected divergence error \n\thave(%v)", err)
	}
}

// TestLinearValidation checks construction and argument validation
func TestLinearValidation(t *testing.T) {
	if _, err := New(0, 1, 0.1); err == nil {
		t.Error("expected error for zero features")
	}
	if _, err := New(1, 0, 0.1); err == nil {
		t.Error("expected error for zero actions")
	}
	if _, err := New(1, 1, 0.0); err == nil {
		t.Error("expected error for non-positive learning rate")
	}

	l, _ := New(2, 2, 0.1)
	badStates := mat.NewDense(1, 3, []float64{1, 2, 3})
	if _, err := l.Predict(badStates); err == nil {
		t.Error("expected error for mismatched feature size")
	}

	states := mat.NewDense(1, 2, []float64{1, 2})
	if err := l.GradientStep(states, []float64{1.0}, []int{5}, nil); err == nil {
		t.Error("expected error for out of range action")
	}
	if err := l.GradientStep(states, []float64{1, 2}, []int{0}, nil); err == nil {
		t.Error("expected error for mismatched targets")
	}
}
