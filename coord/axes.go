package coord

import "strings"

// Axes is a set of machine axes.
type Axes uint8

const (
	AxisX Axes = 1 << iota
	AxisY
	AxisZ
	AxisA
	AxisB

	XYZ  = AxisX | AxisY | AxisZ
	AB   = AxisA | AxisB
	All  = XYZ | AB
	None = Axes(0)
)

// AxisList is every axis in wire order.
var AxisList = []Axes{AxisX, AxisY, AxisZ, AxisA, AxisB}

// Has returns true if every axis in a is present.
func (s Axes) Has(a Axes) bool { return s&a == a && a != 0 }

// Any returns true if at least one axis in a is present.
func (s Axes) Any(a Axes) bool { return s&a != 0 }

// Only returns the subset of s that is also in a.
func (s Axes) Only(a Axes) Axes { return s & a }

// Without returns s with the axes in a removed.
func (s Axes) Without(a Axes) Axes { return s &^ a }

// Index returns the wire position (0-4) of a single axis, or -1.
func (s Axes) Index() int {
	for i, a := range AxisList {
		if s == a {
			return i
		}
	}
	return -1
}

func (s Axes) String() string {
	if s == 0 {
		return "none"
	}
	var b strings.Builder
	for i, a := range AxisList {
		if s.Has(a) {
			b.WriteByte("XYZAB"[i])
		}
	}
	return b.String()
}
