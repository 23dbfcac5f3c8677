package joystick

import "math"

const (
	baseScale  = 0.35 // base diameter relative to the short side of the viewport
	stickScale = 0.35 // knob diameter relative to the base
)

// Geometry describes a circular stick: the knob travels inside the base.
type Geometry struct {
	Radius      float64
	StickRadius float64
}

func GeometryForViewport(width, height float64) Geometry {
	base := math.Min(width, height) * baseScale
	return Geometry{
		Radius:      base / 2,
		StickRadius: base * stickScale / 2,
	}
}

func (g Geometry) MaxTravel() float64 {
	return math.Max(0, g.Radius-g.StickRadius)
}

// Constrain keeps the displacement inside the travel circle. A drag past the edge is
// projected onto the circle along the same angle, so diagonals keep their direction.
func (g Geometry) Constrain(dx, dy float64) (x, y float64, clamped bool) {
	travel := g.MaxTravel()
	if math.Hypot(dx, dy) <= travel {
		return dx, dy, false
	}

	angle := math.Atan2(dy, dx)
	return travel * math.Cos(angle), travel * math.Sin(angle), true
}

// Normalize turns a drag delta into stick percentages in [-100,100]. Screen y grows
// downwards, so dragging up gives a positive y.
func (g Geometry) Normalize(dx, dy float64) (x, y float64) {
	travel := g.MaxTravel()
	if travel == 0 || math.IsNaN(dx) || math.IsNaN(dy) {
		return 0, 0
	}

	rx, ry, _ := g.Constrain(dx, dy)
	return clamp100(rx / travel * 100), clamp100(-ry / travel * 100)
}

// cos/sin on the boundary can land a hair past 100
func clamp100(v float64) float64 {
	return math.Max(-100, math.Min(100, v))
}
