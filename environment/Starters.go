package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// UniformStarter samples starting state vectors from a
// multi-dimensional uniform distribution over fixed bounds
type UniformStarter struct {
	features int
	rand     *distmv.Uniform
}

// NewUniformStarter returns a new UniformStarter, sampling dimension i
// uniformly from bounds[i]
func NewUniformStarter(bounds []r1.Interval, seed uint64) UniformStarter {
	source := rand.NewSource(seed)
	dist := distmv.NewUniform(bounds, source)

	return UniformStarter{len(bounds), dist}
}

// Start returns a starting state vector
func (u UniformStarter) Start() mat.Vector {
	return mat.NewVecDense(u.features, u.rand.Rand(nil))
}

// CategoricalStarter returns starting states as vectors sampled from a
// multi-dimensional uniform categorical distribution. The categorical
// distributions sample values in (0, 1, 2, ... N).
type CategoricalStarter struct {
	features int
	rand     []distuv.Categorical
}

// NewCategoricalStarter returns a new CategoricalStarter, sampling
// dimension i from (0, 1, 2, ... bounds[i]-1)
func NewCategoricalStarter(bounds []int, seed uint64) CategoricalStarter {
	source := rand.NewSource(seed)

	dists := make([]distuv.Categorical, len(bounds))
	for i := range dists {
		weights := make([]float64, bounds[i])
		for j := range weights {
			weights[j] = 1.0 / float64(len(weights))
		}

		dists[i] = distuv.NewCategorical(weights, source)
	}

	return CategoricalStarter{len(bounds), dists}
}

// Start returns a starting state vector
func (c CategoricalStarter) Start() mat.Vector {
	start := make([]float64, c.features)
	for i := range start {
		start[i] = c.rand[i].Rand()
	}

	return mat.NewVecDense(c.features, start)
}

// SingleStart always starts episodes from the same state
type SingleStart struct {
	state mat.Vector
}

// NewSingleStart returns a Starter that always returns state
func NewSingleStart(state mat.Vector) SingleStart {
	return SingleStart{state}
}

// Start returns the starting state vector
func (s SingleStart) Start() mat.Vector {
	return s.state
}
