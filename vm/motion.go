package vm

import (
	"math"

	"github.com/mastercactapus/gpx/coord"
	"github.com/mastercactapus/gpx/gcode"
)

// calculateTarget sets the target position from the axes of cmd and
// returns the requested movement. relative is set when the linear axes
// must be sent as a delta.
func (m *Machine) calculateTarget(cmd *gcode.Command) (delta coord.Point, relative bool, err error) {
	offset := m.offsets[m.offset]
	scale := 1.0
	if m.macrosEnabled {
		offset = offset.Add(m.userOffset.XYZ())
		scale = m.userScale
	}

	axes := cmd.Axes()
	val := cmd.Point()
	for _, a := range []coord.Axes{coord.AxisX, coord.AxisY, coord.AxisZ} {
		m.target.Set(a, m.pos.Get(a))
		if !axes.Has(a) {
			continue
		}
		if m.relative {
			delta.Set(a, val.Get(a)*scale)
			m.target.Set(a, m.target.Get(a)+delta.Get(a))
			relative = true
		} else {
			m.target.Set(a, (val.Get(a)+offset.Get(a))*scale)
			delta.Set(a, m.target.Get(a)-m.pos.Get(a))
		}
	}

	for i, a := range []coord.Axes{coord.AxisA, coord.AxisB} {
		m.target.Set(a, m.pos.Get(a))
		if !axes.Has(a) {
			continue
		}
		v := val.Get(a) * m.override[i].scale
		if m.relative || m.extruderRelative {
			delta.Set(a, v)
			m.target.Set(a, m.target.Get(a)+v)
		} else {
			m.target.Set(a, v)
			delta.Set(a, v-m.pos.Get(a))
		}
	}

	if cmd.Has(gcode.FieldF) {
		m.feedrate = cmd.F
	}

	if m.ditto {
		switch {
		case axes.Has(coord.AxisA):
			delta.B = delta.A
			if m.known.Has(coord.AxisA) {
				m.target.B = m.target.A
				m.known |= coord.AxisB & m.mask
			}
			cmd.SetAxes(coord.AxisB)
		case axes.Has(coord.AxisB):
			delta.A = delta.B
			if m.known.Has(coord.AxisB) {
				m.target.A = m.target.B
				m.known |= coord.AxisA & m.mask
			}
			cmd.SetAxes(coord.AxisA)
		}
	}

	return delta, relative, m.checkZ()
}

// checkZ fires the next Z triggered command once the target reaches its
// height.
func (m *Machine) checkZ() error {
	if !m.macrosEnabled || !m.runMacros || m.zIndex >= len(m.zCommands) {
		return nil
	}
	zc := m.zCommands[m.zIndex]
	if zc.z > m.target.Z {
		return nil
	}
	m.zIndex++

	if zc.nozzle != 0 || zc.platform != 0 {
		return m.fireTemperature(zc)
	}

	f := m.filaments[zc.filament]
	if f.diameter > 0.0001 {
		if m.ditto {
			m.setFilamentScale(1, f.diameter)
			m.setFilamentScale(0, f.diameter)
		} else {
			m.setFilamentScale(m.extruder, f.diameter)
		}
	}
	if f.temp != 0 && m.tools[m.extruder].nozzle != f.temp {
		if m.ditto {
			if err := m.setNozzleTemperature(1, f.temp); err != nil {
				return err
			}
			if err := m.setNozzleTemperature(0, f.temp); err != nil {
				return err
			}
			m.tools[0].nozzle, m.tools[1].nozzle = f.temp, f.temp
		} else {
			if err := m.setNozzleTemperature(m.extruder, f.temp); err != nil {
				return err
			}
			m.tools[m.extruder].nozzle = f.temp
		}
	}
	if f.led != 0 {
		if err := m.enc.SetLEDRGB(f.led, 0); err != nil {
			return err
		}
	}
	if m.zIndex < len(m.zCommands) {
		m.doPauseAt = commandQueue
	}
	return nil
}

func (m *Machine) fireTemperature(zc zCommand) error {
	if zc.nozzle != 0 {
		for tool := 0; tool < 2; tool++ {
			t := &m.tools[tool]
			if (m.extruder == tool || t.nozzle != 0) && t.nozzle != zc.nozzle {
				if err := m.setNozzleTemperature(tool, zc.nozzle); err != nil {
					return err
				}
				t.nozzle = zc.nozzle
				m.override[tool].ActiveTemperature = zc.nozzle
			}
		}
	}
	if zc.platform != 0 {
		tool := -1
		switch {
		case m.prof.A.HasHeatedPlatform && m.tools[0].platform != 0 && m.tools[0].platform != zc.platform:
			tool = 0
		case m.prof.B.HasHeatedPlatform && m.tools[1].platform != 0 && m.tools[1].platform != zc.platform:
			tool = 1
		}
		if tool >= 0 {
			if err := m.setPlatformTemperature(tool, zc.platform); err != nil {
				return err
			}
			m.tools[tool].platform = zc.platform
			m.override[tool].PlatformTemperature = zc.platform
		}
	}
	return nil
}

// updatePosition makes the target current.
func (m *Machine) updatePosition(axes coord.Axes) {
	if m.target.Z != m.pos.Z {
		m.layerHeight = math.Abs(m.target.Z - m.pos.Z)
		if max := m.prof.NozzleDiameter * 0.85; m.layerHeight > max {
			m.layerHeight = max
		}
	}
	m.pos = m.target
	if !m.relative {
		m.known |= axes & m.mask
	}
}

// rewriteExtrusion replaces the extrusion of a move with the amount of
// filament needed to fill a track of the given length.
func (m *Machine) rewriteExtrusion(tool int, distance, e float64) float64 {
	o := m.override[tool]
	var area float64
	if o.ActualFilamentDiameter > 0.0001 {
		r := o.ActualFilamentDiameter / 2
		area = math.Pi * r * r * o.PackingDensity
	} else {
		r := m.prof.NominalFilamentDiameter / 2
		area = math.Pi * r * r * m.prof.NominalPackingDensity
	}
	scale := m.prof.NozzleDiameter * m.layerHeight / area
	res := distance * scale
	if e < 0 {
		res = -res
	}
	return res * float64(o.ExtrusionFactor) / 100
}

// queueMove emits the move to the target at feedrate, or the current
// feedrate if zero. Moves involving axes of unknown position are sent
// relative, or as an unaccelerated absolute move when that makes every
// axis known.
func (m *Machine) queueMove(axes coord.Axes, delta coord.Point, relative bool, feedrate float64) error {
	mask := axes & m.mask
	unknown := ^(m.known | mask) & m.mask
	if m.known&mask != mask && !relative && unknown == 0 {
		return m.queueAbsolute()
	}

	d := delta
	if unknown == 0 && !relative {
		d = m.deltaMM(axes)
	}
	steps := m.deltaSteps(axes, d)
	if steps.Magnitude(axes) == 0 {
		return nil
	}

	distance := d.Magnitude(axes & coord.XYZ)
	if m.rewrite5D && axes.Any(coord.AB) && distance > 0.0001 {
		if axes.Has(coord.AxisA) && d.A > 0.0001 {
			d.A = m.rewriteExtrusion(0, distance, d.A)
			if m.known.Has(coord.AxisA) {
				m.target.A = m.pos.A + d.A
			}
			steps.A = math.Round(math.Abs(d.A) * m.prof.A.StepsPerMM)
		}
		if axes.Has(coord.AxisB) && d.B > 0.0001 {
			d.B = m.rewriteExtrusion(1, distance, d.B)
			if m.known.Has(coord.AxisB) {
				m.target.B = m.pos.B + d.B
			}
			steps.B = math.Round(math.Abs(d.B) * m.prof.B.StepsPerMM)
		}
	}

	target := m.target
	if relative {
		target = delta
	}
	for _, a := range []coord.Axes{coord.AxisX, coord.AxisY, coord.AxisZ} {
		if unknown.Has(a) {
			target.Set(a, 0)
		}
	}
	target.A, target.B = -d.A, -d.B
	m.acc.A += d.A
	m.acc.B += d.B

	d = d.Abs()
	feedrate = m.safeFeedrate(axes, d, feedrate)
	minutes := distance / feedrate
	if minutes == 0 {
		distance = 0
		if axes.Has(coord.AxisA) {
			distance = d.A
		}
		if axes.Has(coord.AxisB) && distance < d.B {
			distance = d.B
		}
		minutes = distance / feedrate
	}
	feedrate /= 60

	spin := func(tool int, ax coord.Axes, spm, maxFeed, motorSteps float64) {
		t := &m.tools[tool]
		if d.Get(ax) != 0 || t.motor == 0 || t.rpm == 0 {
			t.rpm = 0
			return
		}
		rpm := math.Min(t.rpm, maxFeed*spm/motorSteps)
		if t.motor < 0 {
			rpm = -rpm
		}
		v := minutes * rpm * motorSteps / spm
		d.Set(ax, v)
		steps.Set(ax, math.Round(math.Abs(v)*spm))
		target.Set(ax, -v)
	}
	spin(0, coord.AxisA, m.prof.A.StepsPerMM, m.prof.A.MaxFeedrate, m.prof.A.MotorSteps)
	spin(1, coord.AxisB, m.prof.B.StepsPerMM, m.prof.B.MaxFeedrate, m.prof.B.MotorSteps)

	s := m.toSteps(target, &m.excess)
	usec := 60000000 * minutes
	interval := usec / steps.Largest(axes)
	rate := 1000000 / interval
	m.acc.Time += minutes * 60 * accelerationTime

	rel := unknown | coord.AB
	if relative {
		rel = coord.All
	}
	return m.enc.QueueExtendedPoint(s, uint32(rate), rel, float32(distance), feedrate)
}

// toolChange switches to the selected extruder, swapping standby and
// active temperatures.
func (m *Machine) toolChange() error {
	cur, next := m.extruder, m.next
	if t := m.override[cur].StandbyTemperature; t != 0 && t != m.tools[cur].nozzle {
		if err := m.setNozzleTemperature(cur, t); err != nil {
			return err
		}
		m.tools[cur].nozzle = t
	}
	if t := m.override[next].ActiveTemperature; t != 0 && t != m.tools[next].nozzle {
		if err := m.setNozzleTemperature(next, t); err != nil {
			return err
		}
		m.tools[next].nozzle = t
	}

	// G54/G55 follow the tool
	if m.offset == cur+1 {
		m.offset = next + 1
	}
	if err := m.changeExtruderOffset(next); err != nil {
		return err
	}

	// Older firmware applies the tool offset to the next queued move,
	// bending its slope and acceleration. An unaccelerated move to where
	// we already are absorbs it.
	if m.known&m.mask == m.mask {
		m.target = m.pos
		if err := m.queueAbsolute(); err != nil {
			return err
		}
	}

	m.extruder = next
	return nil
}
