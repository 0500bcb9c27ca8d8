package main

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/qlearn-go/qlearn/agent/qlearning"
	"github.com/qlearn-go/qlearn/environment"
	"github.com/qlearn-go/qlearn/environment/gridworld"
	"github.com/qlearn-go/qlearn/experiment"
	"github.com/qlearn-go/qlearn/experiment/tracker"
	"github.com/qlearn-go/qlearn/expreplay"
	"github.com/qlearn-go/qlearn/policy"
)

func main() {
	var seed uint64 = 192382

	// Create the environment
	start := environment.NewSingleStart(mat.NewVecDense(2, []float64{0, 0}))
	env, err := gridworld.New(5, 5, 4, 4, 100, 0.99, start)
	if err != nil {
		panic(err)
	}

	// Create the behaviour policy
	p, err := policy.NewDecayingEGreedy(1.0, 0.05, 0.001, 10,
		env.ActionCount(), seed)
	if err != nil {
		panic(err)
	}

	// Create the experience replay buffer
	replayConf := expreplay.Config{
		SampleMethod: expreplay.Uniform,
		MaxCapacity:  10_000,
		MinCapacity:  100,
		BatchSize:    32,
	}
	replay, err := replayConf.Create(seed)
	if err != nil {
		panic(err)
	}

	// Create the learning algorithm
	agentConf := qlearning.Config{
		StepSize:           0.01,
		Gamma:              0.99,
		TargetSyncInterval: 100,
		ExplorationSteps:   500,
		StepLimit:          100,
		BatchSize:          32,
	}
	q, err := qlearning.NewLinear(env, p, replay, agentConf)
	if err != nil {
		panic(err)
	}

	// Experiment
	var saver tracker.Tracker = tracker.NewReturn("./data.bin")
	e, err := experiment.NewOnline(q, 1_000, 25, -10.0, saver)
	if err != nil {
		panic(err)
	}
	e.WithProgress()

	final, err := e.Run(context.Background())
	if err != nil {
		panic(err)
	}
	fmt.Println("Final state:", final)
	e.Save()

	data := tracker.LoadData("./data.bin")
	fmt.Println(data[len(data)-10:])
}
