// Package experiment implements the caller-driven training loop around
// a learning agent
package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/samuelfneumann/progressbar"

	"github.com/qlearn-go/qlearn/agent/qlearning"
	"github.com/qlearn-go/qlearn/experiment/tracker"
)

// Online runs an agent online for up to a fixed budget of episodes,
// recording episodic returns with Trackers. The experiment, not the
// agent, decides when training has converged or failed: training
// converges when the moving average of returns over the most recent
// window episodes reaches the convergence threshold, and fails when
// the episode budget is exhausted first.
type Online struct {
	agent       *qlearning.QLearning
	maxEpisodes int

	window    int
	threshold float64
	returns   []float64

	trackers []tracker.Tracker

	// Whether to display a progress bar over episodes
	progress bool
}

// NewOnline creates and returns a new online experiment running agent
// for at most maxEpisodes episodes. Training is judged converged when
// the average return over the last window episodes reaches threshold.
// The trackers t determine which training data is saved.
func NewOnline(agent *qlearning.QLearning, maxEpisodes, window int,
	threshold float64, t ...tracker.Tracker) (*Online, error) {
	if maxEpisodes < 1 {
		return nil, fmt.Errorf("newonline: episode budget must be positive"+
			" \n\thave(%v)", maxEpisodes)
	}
	if window < 1 {
		return nil, fmt.Errorf("newonline: window must be positive "+
			"\n\thave(%v)", window)
	}

	return &Online{
		agent:       agent,
		maxEpisodes: maxEpisodes,
		window:      window,
		threshold:   threshold,
		trackers:    t,
	}, nil
}

// Register registers a tracker.Tracker with the experiment so that
// data generated while training can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// WithProgress makes Run display a progress bar over episodes
func (o *Online) WithProgress() *Online {
	o.progress = true
	return o
}

// Run runs episodes until the agent converges, the episode budget is
// exhausted, or ctx is cancelled, and returns the agent's final state.
// Run drives the agent's terminal transitions: MarkConverged when the
// moving-average criterion is met, MarkFailed when the budget runs
// out.
func (o *Online) Run(ctx context.Context) (qlearning.State, error) {
	var bar *progressbar.ProgressBar
	if o.progress {
		bar = progressbar.New(40, o.maxEpisodes, time.Second,
			false)
		bar.Display()
		defer bar.Close()
	}

	for episode := 0; episode < o.maxEpisodes; episode++ {
		episodeReturn, err := o.agent.Episode(ctx)
		if err != nil {
			return o.agent.State(), fmt.Errorf("run: episode %v: %w",
				episode, err)
		}

		o.track(episode, episodeReturn)
		if bar != nil {
			bar.Increment()
		}

		if o.converged() {
			o.agent.MarkConverged()
			return o.agent.State(), nil
		}
	}

	o.agent.MarkFailed()
	return o.agent.State(), nil
}

// converged returns whether the moving average of returns over the
// most recent window episodes has reached the convergence threshold
func (o *Online) converged() bool {
	if len(o.returns) < o.window {
		return false
	}

	sum := 0.0
	for _, r := range o.returns[len(o.returns)-o.window:] {
		sum += r
	}
	return sum/float64(o.window) >= o.threshold
}

// track records a finished episode with every tracker
func (o *Online) track(episode int, episodeReturn float64) {
	o.returns = append(o.returns, episodeReturn)
	for _, t := range o.trackers {
		t.Track(episode, episodeReturn)
	}
}

// Save saves all the data cached by the experiment's trackers
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return err
		}
	}
	return nil
}

// Returns returns the episodic returns observed so far
func (o *Online) Returns() []float64 {
	return o.returns
}
