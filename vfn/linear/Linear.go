// Package linear implements an action-value function using linear
// function approximation
package linear

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/qlearn-go/qlearn/vfn"
)

// Linear approximates action values as a linear function of state
// features: one weight vector per action, so the value of action a in
// state s is the dot product of s with row a of the weight matrix.
type Linear struct {
	weights      *mat.Dense // actions x features
	learningRate float64
	features     int
	actions      int
}

// New returns a new zero-initialized Linear value function
func New(features, actions int, learningRate float64) (*Linear, error) {
	if features < 1 {
		return nil, fmt.Errorf("linear: features must be >= 1 \n\thave(%v)",
			features)
	}
	if actions < 1 {
		return nil, fmt.Errorf("linear: actions must be >= 1 \n\thave(%v)",
			actions)
	}
	if learningRate <= 0 {
		return nil, fmt.Errorf("linear: learning rate must be positive "+
			"\n\thave(%v)", learningRate)
	}

	return &Linear{
		weights:      mat.NewDense(actions, features, nil),
		learningRate: learningRate,
		features:     features,
		actions:      actions,
	}, nil
}

// Predict returns the estimated action values for each state in the
// batch, one row per state and one column per action
func (l *Linear) Predict(states *mat.Dense) (*mat.Dense, error) {
	rows, cols := states.Dims()
	if cols != l.features {
		return nil, fmt.Errorf("predict: invalid feature size \n\twant(%v)"+
			" \n\thave(%v)", l.features, cols)
	}

	values := mat.NewDense(rows, l.actions, nil)
	values.Mul(states, l.weights.T())

	if err := vfn.CheckFinite("predict", values); err != nil {
		return nil, err
	}
	return values, nil
}

// GradientStep performs one semi-gradient update per sample toward the
// given targets. For sample i only the weight row of actions[i] moves:
//
//	w(a) <- w(a) + α * weight_i * (target_i - w(a)·s_i) * s_i
func (l *Linear) GradientStep(states *mat.Dense, targets []float64,
	actions []int, weights []float64) error {
	rows, cols := states.Dims()
	if cols != l.features {
		return fmt.Errorf("gradientstep: invalid feature size \n\twant(%v)"+
			" \n\thave(%v)", l.features, cols)
	}
	if len(targets) != rows || len(actions) != rows {
		return fmt.Errorf("gradientstep: invalid batch \n\twant(%v targets,"+
			" %v actions) \n\thave(%v, %v)", rows, rows, len(targets),
			len(actions))
	}
	if weights != nil && len(weights) != rows {
		return fmt.Errorf("gradientstep: invalid number of weights "+
			"\n\twant(%v) \n\thave(%v)", rows, len(weights))
	}

	for i := 0; i < rows; i++ {
		action := actions[i]
		if action < 0 || action >= l.actions {
			return fmt.Errorf("gradientstep: invalid action \n\twant[0, %v)"+
				" \n\thave(%v)", l.actions, action)
		}

		state := states.RowView(i)
		row := l.weights.RowView(action).(*mat.VecDense)
		estimate := mat.Dot(row, state)

		scale := l.learningRate * (targets[i] - estimate)
		if weights != nil {
			scale *= weights[i]
		}
		row.AddScaledVec(row, scale, state)
	}
	return nil
}

// Set copies the parameters of source, which must be a *Linear of the
// same shape, into the receiver
func (l *Linear) Set(source vfn.ValueFunction) error {
	src, ok := source.(*Linear)
	if !ok {
		return fmt.Errorf("set: source is a %T, not a *linear.Linear", source)
	}
	if src.features != l.features || src.actions != l.actions {
		return fmt.Errorf("set: architecture mismatch \n\twant(%v x %v)"+
			" \n\thave(%v x %v)", l.actions, l.features, src.actions,
			src.features)
	}

	l.weights.Copy(src.weights)
	return nil
}

// Clone returns an independent copy of the value function
func (l *Linear) Clone() (vfn.ValueFunction, error) {
	clone := &Linear{
		weights:      mat.DenseCopyOf(l.weights),
		learningRate: l.learningRate,
		features:     l.features,
		actions:      l.actions,
	}
	return clone, nil
}

// ObservationDimension returns the length of state vectors
func (l *Linear) ObservationDimension() int {
	return l.features
}

// ActionCount returns the number of actions predicted per state
func (l *Linear) ActionCount() int {
	return l.actions
}
