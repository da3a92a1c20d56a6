package vm

import (
	"math"

	"github.com/mastercactapus/gpx/coord"
	"github.com/mastercactapus/gpx/x3g"
)

func (m *Machine) stepsPerMM(a coord.Axes) float64 {
	switch a {
	case coord.AxisX:
		return m.prof.X.StepsPerMM
	case coord.AxisY:
		return m.prof.Y.StepsPerMM
	case coord.AxisZ:
		return m.prof.Z.StepsPerMM
	case coord.AxisA:
		return m.prof.A.StepsPerMM
	case coord.AxisB:
		return m.prof.B.StepsPerMM
	}
	return 0
}

func (m *Machine) maxFeedrate(a coord.Axes) float64 {
	switch a {
	case coord.AxisX:
		return m.prof.X.MaxFeedrate
	case coord.AxisY:
		return m.prof.Y.MaxFeedrate
	case coord.AxisZ:
		return m.prof.Z.MaxFeedrate
	case coord.AxisA:
		return m.prof.A.MaxFeedrate
	case coord.AxisB:
		return m.prof.B.MaxFeedrate
	}
	return 0
}

// toSteps converts a position to motor steps. When excess is given, the
// rounding error of the extruder axes is carried into the next call.
func (m *Machine) toSteps(p coord.Point, excess *coord.Point) x3g.Steps {
	var s x3g.Steps
	s[0] = int32(math.Round(p.X * m.prof.X.StepsPerMM))
	s[1] = int32(math.Round(p.Y * m.prof.Y.StepsPerMM))
	s[2] = int32(math.Round(p.Z * m.prof.Z.StepsPerMM))
	if excess == nil {
		s[3] = int32(math.Round(p.A * m.prof.A.StepsPerMM))
		s[4] = int32(math.Round(p.B * m.prof.B.StepsPerMM))
		return s
	}

	v := p.A*m.prof.A.StepsPerMM + excess.A
	r := math.Round(v)
	excess.A = v - r
	s[3] = int32(r)

	v = p.B*m.prof.B.StepsPerMM + excess.B
	r = math.Round(v)
	excess.B = v - r
	s[4] = int32(r)
	return s
}

// deltaMM is the distance from the current position to the target over
// the given axes, with the extrusion factor applied to A and B.
func (m *Machine) deltaMM(axes coord.Axes) coord.Point {
	d := m.target.Sub(m.pos).Mask(axes)
	d.A = d.A * float64(m.override[0].ExtrusionFactor) / 100
	d.B = d.B * float64(m.override[1].ExtrusionFactor) / 100
	return d
}

// deltaSteps is the unsigned number of steps each axis moves.
func (m *Machine) deltaSteps(axes coord.Axes, d coord.Point) coord.Point {
	var res coord.Point
	for _, a := range coord.AxisList {
		if axes.Has(a) {
			res.Set(a, math.Round(math.Abs(d.Get(a))*m.stepsPerMM(a)))
		}
	}
	return res
}

// minDDA returns the shortest step interval the linear axes allow, in
// microseconds.
func (m *Machine) minDDA() float64 {
	if m.longestDDA == 0 {
		m.longestDDA = math.Inf(1)
		for _, a := range []coord.Axes{coord.AxisX, coord.AxisY, coord.AxisZ} {
			dda := math.Trunc(60000000 / (m.maxFeedrate(a) * m.stepsPerMM(a)))
			if dda < m.longestDDA {
				m.longestDDA = dda
			}
		}
	}
	return m.longestDDA
}

// homeFeedrate returns the fastest home feedrate of the linear axes.
func (m *Machine) homeFeedrate(axes coord.Axes) float64 {
	var res float64
	if axes.Has(coord.AxisX) {
		res = m.prof.X.HomeFeedrate
	}
	if axes.Has(coord.AxisY) && res < m.prof.Y.HomeFeedrate {
		res = m.prof.Y.HomeFeedrate
	}
	if axes.Has(coord.AxisZ) && res < m.prof.Z.HomeFeedrate {
		res = m.prof.Z.HomeFeedrate
	}
	return res
}

// safeFeedrate limits feedrate so no axis of the move exceeds its
// maximum. A zero feedrate means the current one.
func (m *Machine) safeFeedrate(axes coord.Axes, d coord.Point, feedrate float64) float64 {
	if feedrate == 0 {
		feedrate = m.feedrate * float64(m.speed) / 100
	}
	if feedrate == 0 {
		for _, a := range coord.AxisList {
			if f := m.maxFeedrate(a); f > feedrate {
				feedrate = f
			}
		}
	}

	distance := d.Magnitude(axes & coord.XYZ)
	for _, a := range []coord.Axes{coord.AxisX, coord.AxisY, coord.AxisZ} {
		if axes.Has(a) && feedrate*d.Get(a)/distance > m.maxFeedrate(a) {
			feedrate = m.maxFeedrate(a) * distance / d.Get(a)
		}
	}
	for _, a := range []coord.Axes{coord.AxisA, coord.AxisB} {
		if !axes.Has(a) {
			continue
		}
		if distance == 0 {
			if feedrate > m.maxFeedrate(a) {
				feedrate = m.maxFeedrate(a)
			}
		} else if feedrate*d.Get(a)/distance > m.maxFeedrate(a) {
			feedrate = m.maxFeedrate(a) * distance / d.Get(a)
		}
	}
	return feedrate
}

// setUnknown forgets the position of axes.
func (m *Machine) setUnknown(axes coord.Axes) {
	m.known &^= axes & m.mask
	for _, a := range coord.AxisList {
		if axes.Has(a) {
			m.pos.Set(a, 0)
		}
	}
}

// setFilamentScale sets the extrusion scale of tool for filament of the
// given diameter.
func (m *Machine) setFilamentScale(tool int, diameter float64) {
	nominal := m.prof.NominalFilamentDiameter / 2
	actual := diameter / 2
	m.override[tool].scale = (nominal * nominal) / (actual * actual)
}
