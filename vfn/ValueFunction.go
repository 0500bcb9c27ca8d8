// Package vfn defines the action-value function contract consumed by
// learning algorithms
package vfn

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ValueFunction approximates action values for a finite action set.
//
// A ValueFunction is an opaque differentiable function: learning
// algorithms only predict with it, push gradient updates into it, and
// copy its parameters. The online and target networks of a Q-learning
// agent are two independently owned ValueFunctions of the same
// concrete type: the target is refreshed by Set, never by
// GradientStep.
type ValueFunction interface {
	// Predict returns the estimated action values for each state in
	// the batch. The input has one state per row; the output has one
	// row per state and one column per action. Predict fails with a
	// divergence error if the approximator produces NaN or ±Inf.
	Predict(states *mat.Dense) (*mat.Dense, error)

	// GradientStep performs one gradient update toward the given
	// regression targets. For sample i, only the output for
	// actions[i] receives gradient; all other action outputs are held
	// at their predicted values. The optional weights scale each
	// sample's squared error; nil means uniform weighting.
	GradientStep(states *mat.Dense, targets []float64, actions []int,
		weights []float64) error

	// Set copies the parameters of source into the receiver. The
	// source must be of the same concrete type and architecture.
	Set(source ValueFunction) error

	// Clone returns an independent copy of the receiver with its own
	// parameters
	Clone() (ValueFunction, error)

	// ObservationDimension returns the length of state vectors
	ObservationDimension() int

	// ActionCount returns the number of actions predicted per state
	ActionCount() int
}

var errDiverged = errors.New("approximator produced NaN or Inf")

// DivergenceError reports that a ValueFunction produced non-finite
// outputs. Training on such outputs would silently corrupt the
// parameters, so callers must treat this error as fatal.
type DivergenceError struct {
	Op string
}

// Error satisfies the error interface
func (d *DivergenceError) Error() string {
	return d.Op + ": " + errDiverged.Error()
}

// IsDivergence returns whether an error reports non-finite
// value-function outputs
func IsDivergence(err error) bool {
	var divergence *DivergenceError
	return errors.As(err, &divergence)
}

// CheckFinite returns a DivergenceError if any element of values is
// NaN or ±Inf. Implementations call it on every prediction so that
// numeric divergence surfaces immediately rather than being masked by
// clamping.
func CheckFinite(op string, values *mat.Dense) error {
	rows, cols := values.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := values.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &DivergenceError{Op: op}
			}
		}
	}
	return nil
}
