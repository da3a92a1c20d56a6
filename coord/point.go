package coord

import (
	"math"
)

// Point is a position or delta on all five axes, in millimeters
// unless stated otherwise.
type Point struct{ X, Y, Z, A, B float64 }

func (p Point) Equal(b Point) bool {
	return p == b
}

// Get returns the value for a single axis.
func (p Point) Get(a Axes) float64 {
	switch a {
	case AxisX:
		return p.X
	case AxisY:
		return p.Y
	case AxisZ:
		return p.Z
	case AxisA:
		return p.A
	case AxisB:
		return p.B
	}
	return 0
}

// Set will update every axis in a to val.
func (p *Point) Set(a Axes, val float64) {
	if a.Any(AxisX) {
		p.X = val
	}
	if a.Any(AxisY) {
		p.Y = val
	}
	if a.Any(AxisZ) {
		p.Z = val
	}
	if a.Any(AxisA) {
		p.A = val
	}
	if a.Any(AxisB) {
		p.B = val
	}
}

func (p Point) Mul(val float64) Point {
	p.X *= val
	p.Y *= val
	p.Z *= val
	p.A *= val
	p.B *= val
	return p
}

func (p Point) Div(val float64) Point {
	p.X /= val
	p.Y /= val
	p.Z /= val
	p.A /= val
	p.B /= val
	return p
}

// Add will add the target values to p.
func (p Point) Add(target Point) Point {
	p.X += target.X
	p.Y += target.Y
	p.Z += target.Z
	p.A += target.A
	p.B += target.B
	return p
}

// Sub will subtract the target values from p.
func (p Point) Sub(target Point) Point {
	p.X -= target.X
	p.Y -= target.Y
	p.Z -= target.Z
	p.A -= target.A
	p.B -= target.B
	return p
}

// Abs returns p with every component made non-negative.
func (p Point) Abs() Point {
	return Point{math.Abs(p.X), math.Abs(p.Y), math.Abs(p.Z), math.Abs(p.A), math.Abs(p.B)}
}

// Mask returns a copy of p with every axis outside of a set to zero.
func (p Point) Mask(a Axes) Point {
	var res Point
	for _, ax := range AxisList {
		if a.Has(ax) {
			res.Set(ax, p.Get(ax))
		}
	}
	return res
}

// Magnitude is the euclidean length of p over the axes in a.
func (p Point) Magnitude(a Axes) float64 {
	var acc float64
	for _, ax := range AxisList {
		if a.Has(ax) {
			v := p.Get(ax)
			acc += v * v
		}
	}
	return math.Sqrt(acc)
}

// Largest returns the largest absolute component of p over the axes in a.
func (p Point) Largest(a Axes) float64 {
	var res float64
	for _, ax := range AxisList {
		if a.Has(ax) {
			if v := math.Abs(p.Get(ax)); v > res {
				res = v
			}
		}
	}
	return res
}

// XYZ returns the planar distance components only.
func (p Point) XYZ() Point {
	return Point{X: p.X, Y: p.Y, Z: p.Z}
}
