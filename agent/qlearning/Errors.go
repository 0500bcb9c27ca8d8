package qlearning

import "errors"

// EnvironmentError reports that the environment failed while stepping.
// The episode is aborted and the partial transition discarded, leaving
// the replay buffer consistent.
type EnvironmentError struct {
	Err error
}

// Error satisfies the error interface
func (e *EnvironmentError) Error() string {
	return "environment: " + e.Err.Error()
}

// Unwrap returns the underlying environment error
func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// IsEnvironmentFailure returns whether an error reports a failure of
// the environment collaborator
func IsEnvironmentFailure(err error) bool {
	var envErr *EnvironmentError
	return errors.As(err, &envErr)
}

var errInsufficientData = errors.New("replay buffer underfilled at " +
	"learning step")

// IsInsufficientData returns whether an error reports that a learning
// step found the replay buffer underfilled. The state machine's gating
// prevents this; if it surfaces anyway it is an internal invariant
// violation and fatal.
func IsInsufficientData(err error) bool {
	return errors.Is(err, errInsufficientData)
}
