// Package spatial computes per-participant audio parameters from positions.
// Everything here is a pure function of its inputs.
package spatial

import (
	"math"

	"github.com/navikt/zspatial/internal/models"
)

// FalloffKind names a distance-to-gain curve
type FalloffKind string

const (
	Exponential   FalloffKind = "exponential"
	Linear        FalloffKind = "linear"
	Quadratic     FalloffKind = "quadratic"
	InverseSquare FalloffKind = "inverse_square"
)

// GainModel maps a distance to a gain between MinGain and MaxGain
type GainModel struct {
	Kind    FalloffKind
	Falloff float64
	MinGain float64
	MaxGain float64
}

// Default models per falloff family
var (
	ExponentialModel   = GainModel{Kind: Exponential, Falloff: 0.05, MinGain: 0.15, MaxGain: 1.0}
	LinearModel        = GainModel{Kind: Linear, Falloff: 0.01, MinGain: 0.15, MaxGain: 1.0}
	QuadraticModel     = GainModel{Kind: Quadratic, Falloff: 0.0001, MinGain: 0.35, MaxGain: 1.0}
	InverseSquareModel = GainModel{Kind: InverseSquare, Falloff: 0.001, MinGain: 0.2, MaxGain: 1.0}
)

// DefaultGainModel is used for immediate, gain-only snapshots
var DefaultGainModel = QuadraticModel

// GainAt returns the gain at the given distance, never below MinGain
func (m GainModel) GainAt(distance float64) float64 {
	var gain float64
	switch m.Kind {
	case Exponential:
		gain = m.MaxGain * math.Exp(-m.Falloff*distance)
	case Linear:
		gain = m.MaxGain - m.Falloff*distance
	case InverseSquare:
		gain = m.MaxGain / (1 + m.Falloff*distance*distance)
	default:
		gain = m.MaxGain - m.Falloff*distance*distance
	}
	return math.Max(m.MinGain, gain)
}

// Gain returns the gain heard at listener for a source at source
func (m GainModel) Gain(listener, source models.Position) float64 {
	return m.GainAt(listener.DistanceTo(source))
}
