package spatial

import (
	"math"

	"github.com/navikt/zspatial/internal/models"
)

// DopplerFactor scales radial speed into a pitch ratio offset
const DopplerFactor = 0.005

// Config holds the tunables of the full gain/pan/pitch model
type Config struct {
	Speed              float64
	Falloff            float64
	MinGain            float64
	MaxGain            float64
	MaxHearingDistance float64
}

// Params are the audio parameters computed for one participant
type Params struct {
	Gain  float64
	Pan   float64
	Pitch float64
}

// Compute returns gain, pan and pitch for a participant while the source
// moves along a path whose instantaneous phase is phase (radians).
//
// Gain uses inverse-square falloff on the squared distance, pan is linear in
// the horizontal offset and pitch approximates the Doppler shift from the
// radial component of the source velocity.
func Compute(participant, source models.Position, cfg Config, phase float64) Params {
	dx := participant.X - source.X
	dy := participant.Y - source.Y
	distanceSq := dx*dx + dy*dy

	gain := math.Max(cfg.MinGain, cfg.MaxGain/(1+cfg.Falloff*distanceSq))

	pan := 0.0
	if cfg.MaxHearingDistance > 0 {
		pan = clamp((source.X-participant.X)/cfg.MaxHearingDistance, -1, 1)
	}

	radialSpeed := -(dx*math.Sin(phase) + dy*math.Cos(phase)) * cfg.Speed
	pitch := 1 + radialSpeed*DopplerFactor

	return Params{Gain: gain, Pan: pan, Pitch: pitch}
}

// ToMessage converts params to their wire form with the given ramp time
func (p Params) ToMessage(rampTime float64) models.SpatialParams {
	pan, pitch := p.Pan, p.Pitch
	return models.SpatialParams{
		Gain:     p.Gain,
		Pan:      &pan,
		Pitch:    &pitch,
		RampTime: rampTime,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
