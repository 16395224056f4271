package coord

import (
	"math"
)

// Frame describes a coordinate rotation transform: a pivot point in the
// active work coordinates and an angle in degrees. Valid is false when no
// rotation is in effect.
type Frame struct {
	X, Y  float64
	Angle float64
	Valid bool
}

// Shift will return a copy of f with the pivot moved by (dx, dy).
func (f Frame) Shift(dx, dy float64) Frame {
	f.X += dx
	f.Y += dy
	return f
}

// Apply will rotate p about the frame pivot. Z passes through.
// If the frame is not valid, p is returned unchanged.
func (f Frame) Apply(p Point) Point {
	if !f.Valid {
		return p
	}
	rad := f.Angle * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	dx, dy := p.X-f.X, p.Y-f.Y
	p.X = f.X + dx*cos - dy*sin
	p.Y = f.Y + dx*sin + dy*cos
	return p
}
