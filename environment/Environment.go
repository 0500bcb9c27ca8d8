// Package environment outlines the interfaces and structs needed to
// implement and consume concrete environments
package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/qlearn-go/qlearn/timestep"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() mat.Vector
}

// Ender determines whether the current episode should be ended,
// mutating the timestep's StepType field when it should
type Ender interface {
	End(*timestep.TimeStep) bool
}

// Environment implements a simulated environment with a finite set of
// actions, enumerated from 0. An Environment starts ready to use:
// Reset() need only be called between episodes.
//
// Step returns an error only when the simulation itself fails. Episode
// termination is not an error; it is signalled by the returned
// TimeStep's StepType.
type Environment interface {
	Reset() timestep.TimeStep
	Step(action int) (timestep.TimeStep, error)

	// ActionCount returns the number of discrete actions
	ActionCount() int

	// ObservationDimension returns the length of observation vectors
	ObservationDimension() int
}
