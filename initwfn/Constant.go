package initwfn

import G "gorgonia.org/gorgonia"

// ZeroesConfig implements a configuration of constant zero
// initialization
type ZeroesConfig struct{}

// NewZeroes returns a new all-zero weight initializer
func NewZeroes() (*InitWFn, error) {
	return newInitWFn(ZeroesConfig{})
}

// Type returns the type of initialization algorithm described by the
// configuration.
func (z ZeroesConfig) Type() Type {
	return Zeroes
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (z ZeroesConfig) Create() G.InitWFn {
	return G.Zeroes()
}

// OnesConfig implements a configuration of constant one initialization
type OnesConfig struct{}

// NewOnes returns a new all-one weight initializer
func NewOnes() (*InitWFn, error) {
	return newInitWFn(OnesConfig{})
}

// Type returns the type of initialization algorithm described by the
// configuration.
func (o OnesConfig) Type() Type {
	return Ones
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (o OnesConfig) Create() G.InitWFn {
	return G.Ones()
}
