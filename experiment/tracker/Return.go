package tracker

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Return tracks the total discounted return of every episode and gob
// encodes the returns to a data file when saved
type Return struct {
	returns  []float64
	filename string
}

// NewReturn returns a new Return tracker which saves to filename
func NewReturn(filename string) *Return {
	return &Return{filename: filename}
}

// Track caches the return of a finished episode
func (r *Return) Track(_ int, episodeReturn float64) {
	r.returns = append(r.returns, episodeReturn)
}

// Save writes all cached returns to the tracker's data file
func (r *Return) Save() error {
	file, err := os.Create(r.filename)
	if err != nil {
		return fmt.Errorf("save: could not create data file: %v", err)
	}
	defer file.Close()

	enc := gob.NewEncoder(file)
	if err := enc.Encode(r.returns); err != nil {
		return fmt.Errorf("save: could not encode data: %v", err)
	}
	return nil
}

// Returns returns the episodic returns cached so far
func (r *Return) Returns() []float64 {
	return r.returns
}
