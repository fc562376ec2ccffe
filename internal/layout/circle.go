// Package layout places an ordered set of participants on the room plane.
package layout

import (
	"math"

	"github.com/navikt/zspatial/internal/models"
)

// Circle distributes participants evenly on a circle around Origin, starting
// at the top (-90 degrees) and proceeding clockwise in collection order.
type Circle struct {
	Origin models.Position
	Radius float64
	// SoloOffset is how far above Origin a lone participant is placed
	SoloOffset float64
}

// NewCircle returns a circle layout where a lone participant sits one radius above origin
func NewCircle(origin models.Position, radius float64) Circle {
	return Circle{Origin: origin, Radius: radius, SoloOffset: radius}
}

// Arrange returns n positions, one per participant in order
func (c Circle) Arrange(n int) []models.Position {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []models.Position{{X: c.Origin.X, Y: c.Origin.Y - c.SoloOffset}}
	}

	positions := make([]models.Position, n)
	step := 2 * math.Pi / float64(n)
	for i := range positions {
		angle := float64(i)*step - math.Pi/2
		positions[i] = models.Position{
			X: c.Origin.X + c.Radius*math.Cos(angle),
			Y: c.Origin.Y + c.Radius*math.Sin(angle),
		}
	}
	return positions
}
