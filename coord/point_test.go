package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoint_Add(t *testing.T) {
	a := Point{X: 1, Y: 2, Z: 3, A: 4, B: 5}
	b := Point{X: 4, Y: 5, Z: 6, A: -4, B: 1}

	assert.Equal(t, Point{X: 5, Y: 7, Z: 9, A: 0, B: 6}, a.Add(b))
	assert.Equal(t, Point{X: -3, Y: -3, Z: -3, A: 8, B: 4}, a.Sub(b))
}

func TestPoint_Magnitude(t *testing.T) {
	p := Point{X: 3, Y: 4, Z: 12, A: 100}

	assert.Equal(t, 5.0, p.Magnitude(AxisX|AxisY))
	assert.Equal(t, 13.0, p.Magnitude(XYZ))
	assert.InEpsilon(t, 100.84, p.Magnitude(All), .001)
	assert.Equal(t, 0.0, p.Magnitude(None))
}

func TestPoint_Largest(t *testing.T) {
	p := Point{X: -3, Y: 4, Z: 1, A: -9}

	assert.Equal(t, 4.0, p.Largest(XYZ))
	assert.Equal(t, 9.0, p.Largest(All))
	assert.Equal(t, 3.0, p.Largest(AxisX))
}

func TestPoint_SetMask(t *testing.T) {
	var p Point
	p.Set(AxisX|AxisB, 2)
	assert.Equal(t, Point{X: 2, B: 2}, p)
	assert.Equal(t, 2.0, p.Get(AxisB))

	p = Point{1, 2, 3, 4, 5}
	assert.Equal(t, Point{Y: 2, A: 4}, p.Mask(AxisY|AxisA))
	assert.Equal(t, Point{1, 2, 3, 0, 0}, p.XYZ())
}

func TestAxes(t *testing.T) {
	s := AxisX | AxisZ
	assert.True(t, s.Has(AxisX))
	assert.False(t, s.Has(XYZ))
	assert.True(t, s.Any(XYZ))
	assert.False(t, s.Has(None))
	assert.Equal(t, AxisZ, s.Without(AxisX))
	assert.Equal(t, "XZ", s.String())
	assert.Equal(t, 3, AxisA.Index())
	assert.Equal(t, -1, XYZ.Index())
	assert.Equal(t, Axes(0x1F), All)
}
