package motion

import (
	"math"
	"time"

	"github.com/navikt/zspatial/internal/models"
	"github.com/navikt/zspatial/internal/spatial"
)

// SpiralPeriod is the time the figure-eight takes to complete one cycle
const SpiralPeriod = 8 * time.Second

// Frame is one step of a path: where the source is and the phase angle that
// produced it, which the spatial model needs for the Doppler term.
type Frame struct {
	Source models.Position
	Phase  float64
}

// Path advances a virtual source. Implementations are not safe for
// concurrent use; each generator owns its path.
type Path interface {
	Kind() Kind
	Config() spatial.Config
	// Next returns the frame for a tick that fires elapsed after the path started
	Next(elapsed time.Duration) Frame
}

// Orbit moves the source around a circle by a fixed angle per emitted frame
type Orbit struct {
	origin   models.Position
	settings Settings
	tick     int
}

// NewOrbit returns an orbit around origin
func NewOrbit(origin models.Position, settings Settings) *Orbit {
	return &Orbit{origin: origin, settings: settings}
}

func (o *Orbit) Kind() Kind { return KindOrbit }

func (o *Orbit) Config() spatial.Config { return o.settings.SpatialConfig() }

// Next ignores elapsed time; the angle depends only on how many frames were emitted
func (o *Orbit) Next(time.Duration) Frame {
	angle := float64(o.tick) * o.settings.Speed * math.Pi / 30
	o.tick++
	return Frame{
		Source: models.Position{
			X: o.origin.X + o.settings.Radius*math.Cos(angle),
			Y: o.origin.Y + o.settings.Radius*math.Sin(angle),
		},
		Phase: angle,
	}
}

// Spiral moves the source along a figure-eight driven by wall-clock time
type Spiral struct {
	origin      models.Position
	settings    Settings
	phaseOffset float64
}

// NewSpiral returns a figure-eight around origin. phaseOffset shifts the
// starting point so rooms started together do not move in lockstep.
func NewSpiral(origin models.Position, settings Settings, phaseOffset float64) *Spiral {
	return &Spiral{origin: origin, settings: settings, phaseOffset: phaseOffset}
}

func (s *Spiral) Kind() Kind { return KindSpiral }

func (s *Spiral) Config() spatial.Config { return s.settings.SpatialConfig() }

func (s *Spiral) Next(elapsed time.Duration) Frame {
	angularSpeed := 2 * math.Pi / float64(SpiralPeriod.Milliseconds())
	t := math.Mod(float64(elapsed.Milliseconds())*angularSpeed+s.phaseOffset, 2*math.Pi)
	r := s.settings.Radius
	return Frame{
		Source: models.Position{
			X: s.origin.X + r*math.Sin(t),
			Y: s.origin.Y + r*math.Sin(t)*math.Cos(t),
		},
		Phase: t,
	}
}
