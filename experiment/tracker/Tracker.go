// Package tracker implements Trackers, which record and save data
// generated while training
package tracker

import (
	"encoding/gob"
	"log"
	"os"
)

// Tracker keeps track of training data and saves the data after
// training has finished. An experiment sends each finished episode to
// its Trackers; each Tracker decides which data it caches and saves.
type Tracker interface {
	Track(episode int, episodeReturn float64)
	Save() error
}

// LoadData loads and returns the data saved by a Tracker
func LoadData(filename string) []float64 {
	file, err := os.Open(filename)
	if err != nil {
		log.Fatalf("could not open data file: %v", err)
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	var data []float64

	err = dec.Decode(&data)
	if err != nil {
		log.Fatalf("could not decode data: %v", err)
	}

	return data
}
