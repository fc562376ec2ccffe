// Package motion implements the paths a room's virtual source follows while
// a generator is active. Paths are pure step functions; scheduling lives in
// the service package.
package motion

import (
	"github.com/navikt/zspatial/internal/models"
	"github.com/navikt/zspatial/internal/spatial"
)

// Kind identifies a generator path
type Kind string

const (
	// KindOrbit sweeps the source around a circle
	KindOrbit Kind = "orbit"
	// KindSpiral sweeps the source along a figure-eight
	KindSpiral Kind = "spiral"
)

// Settings are the resolved tunables of a generator
type Settings struct {
	Speed              float64
	Radius             float64
	Falloff            float64
	MinGain            float64
	MaxGain            float64
	MaxHearingDistance float64
}

// OrbitDefaults apply to the orbit generator when a room has no overrides
var OrbitDefaults = Settings{
	Speed:              0.7,
	Radius:             25,
	Falloff:            0.01,
	MinGain:            0.13,
	MaxGain:            1.0,
	MaxHearingDistance: 100,
}

// SpiralDefaults apply to the figure-eight generator when a room has no overrides.
// Speed only feeds the Doppler approximation; angular speed is fixed.
var SpiralDefaults = Settings{
	Speed:              0.01,
	Radius:             25,
	Falloff:            0.01,
	MinGain:            0.13,
	MaxGain:            1.0,
	MaxHearingDistance: 50,
}

// WithOverrides returns s with every non-nil tunable applied
func (s Settings) WithOverrides(t models.Tunables) Settings {
	if t.Speed != nil {
		s.Speed = *t.Speed
	}
	if t.Radius != nil {
		s.Radius = *t.Radius
	}
	if t.Falloff != nil {
		s.Falloff = *t.Falloff
	}
	if t.MinGain != nil {
		s.MinGain = *t.MinGain
	}
	if t.MaxGain != nil {
		s.MaxGain = *t.MaxGain
	}
	if t.MaxHearingDistance != nil {
		s.MaxHearingDistance = *t.MaxHearingDistance
	}
	return s
}

// SpatialConfig returns the subset of settings the spatial model consumes
func (s Settings) SpatialConfig() spatial.Config {
	return spatial.Config{
		Speed:              s.Speed,
		Falloff:            s.Falloff,
		MinGain:            s.MinGain,
		MaxGain:            s.MaxGain,
		MaxHearingDistance: s.MaxHearingDistance,
	}
}
