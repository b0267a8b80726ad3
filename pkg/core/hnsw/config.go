package hnsw

import (
	"fmt"
	"math"
)

// Default construction parameters, matching the values the corpus indexer
// has always been tuned with.
const (
	DefaultM              = 4
	DefaultEfConstruction = 20
)

// DefaultML is the level normalization factor used when Config.ML is zero.
const DefaultML = 1.0 / 1.5

// Config holds the fixed parameters of an Index. They cannot change after New.
type Config struct {
	// M is the maximum number of neighbors a node keeps per layer.
	M int `yaml:"m" json:"m"`
	// EfConstruction is the beam width used while linking a new node.
	EfConstruction int `yaml:"ef_construction" json:"ef_construction"`
	// EfSearch is the default beam width for queries. 0 falls back to EfConstruction.
	EfSearch int `yaml:"ef_search" json:"ef_search"`
	// ML scales the level sampler. 0 selects DefaultML; a negative value
	// selects the textbook 1/ln(M).
	ML float64 `yaml:"ml" json:"ml"`
}

// DefaultConfig returns the parameters used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		M:              DefaultM,
		EfConstruction: DefaultEfConstruction,
		ML:             DefaultML,
	}
}

// withDefaults resolves the zero values documented on Config.
func (c Config) withDefaults() Config {
	if c.M == 0 {
		c.M = DefaultM
	}
	if c.EfConstruction == 0 {
		c.EfConstruction = DefaultEfConstruction
	}
	switch {
	case c.ML == 0:
		c.ML = DefaultML
	case c.ML < 0 && c.M > 1:
		c.ML = 1 / math.Log(float64(c.M))
	}
	return c
}

// Validate reports the first parameter that makes the configuration unusable.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.M < 1 {
		return fmt.Errorf("%w: m must be at least 1, got %d", ErrInvalidConfig, c.M)
	}
	if c.EfConstruction < 1 {
		return fmt.Errorf("%w: ef_construction must be at least 1, got %d", ErrInvalidConfig, c.EfConstruction)
	}
	if c.EfSearch < 0 {
		return fmt.Errorf("%w: ef_search must not be negative, got %d", ErrInvalidConfig, c.EfSearch)
	}
	if math.IsNaN(c.ML) || math.IsInf(c.ML, 0) || c.ML < 0 {
		return fmt.Errorf("%w: ml must be a finite positive number, got %v", ErrInvalidConfig, c.ML)
	}
	return nil
}
