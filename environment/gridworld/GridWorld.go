// Package gridworld implements 2D gridworld environments
package gridworld

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/qlearn-go/qlearn/environment"
	"github.com/qlearn-go/qlearn/timestep"
)

// Actions available in a GridWorld
const (
	MoveUp int = iota
	MoveDown
	MoveLeft
	MoveRight
	numActions
)

// GridWorld is a deterministic R x C gridworld. The agent occupies a
// single cell and moves one cell per step; moves off the grid leave
// the position unchanged. Observations are one-hot encodings of the
// agent's cell. Each step costs StepReward until the goal cell is
// reached, which yields GoalReward and ends the episode.
type GridWorld struct {
	rows, cols int
	position   int
	goal       int

	StepReward float64
	GoalReward float64

	discount float64
	starter  environment.Starter
	ender    environment.Ender

	currentStep timestep.TimeStep
}

// New creates a new GridWorld with r rows and c columns, goal cell
// (goalX, goalY), and episodes cut off after stepLimit steps. Starting
// cells are drawn from s, which returns vectors of (x, y) coordinates;
// coordinates outside the grid are clamped to the nearest cell.
func New(r, c, goalX, goalY, stepLimit int, discount float64,
	s environment.Starter) (*GridWorld, error) {
	if r < 1 || c < 1 {
		return nil, fmt.Errorf("gridworld: invalid dimensions (%v, %v)", r, c)
	}
	if goalX < 0 || goalX >= c || goalY < 0 || goalY >= r {
		return nil, fmt.Errorf("gridworld: goal (%v, %v) outside %v x %v "+
			"grid", goalX, goalY, r, c)
	}

	g := &GridWorld{
		rows:       r,
		cols:       c,
		goal:       goalY*c + goalX,
		StepReward: -1.0,
		GoalReward: 0.0,
		discount:   discount,
		starter:    s,
		ender:      environment.NewStepLimit(stepLimit),
	}
	g.Reset()

	return g, nil
}

// ActionCount returns the number of discrete actions
func (g *GridWorld) ActionCount() int {
	return numActions
}

// ObservationDimension returns the length of observation vectors
func (g *GridWorld) ObservationDimension() int {
	return g.rows * g.cols
}

// Dims gets the rows and columns of the GridWorld
func (g *GridWorld) Dims() (r, c int) {
	return g.rows, g.cols
}

// AtGoal returns whether the agent is currently at the goal cell
func (g *GridWorld) AtGoal() bool {
	return g.position == g.goal
}

// Reset resets the GridWorld to a starting position and returns the
// first timestep of the new episode
func (g *GridWorld) Reset() timestep.TimeStep {
	start := g.starter.Start()
	x, y := int(start.AtVec(0)), int(start.AtVec(1))

	// Starters are not required to know the grid's dimensions, so
	// out-of-grid starts are clamped to the nearest cell
	x = clampInt(x, 0, g.cols-1)
	y = clampInt(y, 0, g.rows-1)
	g.position = y*g.cols + x

	step := timestep.New(timestep.First, 0, g.discount, g.observation(), 0)
	g.currentStep = step
	return step
}

// Step takes a single environmental step given an action and returns
// the next timestep
func (g *GridWorld) Step(action int) (timestep.TimeStep, error) {
	x, y := g.position%g.cols, g.position/g.cols

	switch action {
	case MoveUp:
		if y > 0 {
			y--
		}
	case MoveDown:
		if y < g.rows-1 {
			y++
		}
	case MoveLeft:
		if x > 0 {
			x--
		}
	case MoveRight:
		if x < g.cols-1 {
			x++
		}
	default:
		return timestep.TimeStep{}, fmt.Errorf("step: invalid action %v "+
			"not in [0, %v)", action, numActions)
	}
	g.position = y*g.cols + x

	stepType := timestep.Mid
	reward := g.StepReward
	if g.AtGoal() {
		stepType = timestep.Last
		reward = g.GoalReward
	}

	step := timestep.New(stepType, reward, g.discount, g.observation(),
		g.currentStep.Number+1)
	g.ender.End(&step)

	g.currentStep = step
	return step, nil
}

// clampInt bounds v to the interval [lo, hi]
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// observation returns the one-hot encoding of the current position
func (g *GridWorld) observation() mat.Vector {
	obs := mat.NewVecDense(g.rows*g.cols, nil)
	obs.SetVec(g.position, 1.0)
	return obs
}

func (g *GridWorld) String() string {
	str := "GridWorld | %v x %v  |  Goal: (%v, %v)"
	return fmt.Sprintf(str, g.rows, g.cols, g.goal%g.cols, g.goal/g.cols)
}
