package vm

import (
	"fmt"
	"math"

	"github.com/mastercactapus/gpx/coord"
	"github.com/mastercactapus/gpx/gcode"
	"github.com/mastercactapus/gpx/machine"
)

func (m *Machine) execG(cmd *gcode.Command) error {
	switch cmd.G {
	case 0, 1:
		if !m.relative && m.ignoreAbsolute {
			return nil
		}
		delta, relative, err := m.calculateTarget(cmd)
		if err != nil {
			return err
		}
		var feedrate float64
		if cmd.G == 0 && !cmd.Has(gcode.FieldF) {
			feedrate = m.rapidFeedrate(cmd.Axes(), delta)
		}
		err = m.queueMove(cmd.Axes(), delta, relative, feedrate)
		if err != nil {
			return err
		}
		m.updatePosition(cmd.Axes())
		m.emitted = true

	case 4:
		if !cmd.Has(gcode.FieldP) {
			m.errorf("Syntax error: G4 is missing delay parameter, use Pn where n is milliseconds")
			if m.opts.Interactive {
				return nil
			}
			return fmt.Errorf("line %d: G4 without P: %w", m.line, ErrSyntax)
		}
		t := m.tools[m.extruder]
		if t.motor != 0 && t.rpm != 0 {
			if _, _, err := m.calculateTarget(cmd); err != nil {
				return err
			}
			if err := m.queueRotation(cmd.P); err != nil {
				return err
			}
		} else if err := m.enc.Delay(uint32(cmd.P)); err != nil {
			return err
		}
		m.emitted = true

	case 10:
		if !cmd.Has(gcode.FieldP) || cmd.P < 1 || cmd.P > 6 {
			m.errorf("Syntax error: G10 is missing coordiante system, use Pn where n is 1-6")
			return nil
		}
		i := int(cmd.P)
		if cmd.Has(gcode.FieldX) {
			m.offsets[i].X = cmd.X
		}
		if cmd.Has(gcode.FieldY) {
			m.offsets[i].Y = cmd.Y
		}
		if cmd.Has(gcode.FieldZ) {
			m.offsets[i].Z = cmd.Z
		}
		// P1 and P2 double as the tool temperatures
		if i <= 2 {
			o := &m.override[i-1]
			if cmd.Has(gcode.FieldR) {
				o.StandbyTemperature = clampNozzle(cmd.R)
			}
			if cmd.Has(gcode.FieldS) {
				o.ActiveTemperature = clampNozzle(cmd.S)
			}
		}

	case 15, 21, 71:
		// cartesian, millimeters

	case 28:
		axes := cmd.Axes()
		if axes&m.mask == 0 {
			axes |= coord.XYZ
			cmd.SetAxes(coord.XYZ)
		}
		if cmd.Has(gcode.FieldF) {
			m.feedrate = cmd.F
		}
		var toMax, toMin coord.Axes
		for _, a := range []struct {
			axis coord.Axes
			cal  machine.Axis
		}{{coord.AxisX, m.prof.X}, {coord.AxisY, m.prof.Y}, {coord.AxisZ, m.prof.Z}} {
			if !axes.Has(a.axis) {
				continue
			}
			if a.cal.Endstop == machine.EndstopMax {
				toMax |= a.axis
			} else {
				toMin |= a.axis
			}
		}

		// XY first; the X endstop tells which way they home
		order := []machine.Endstop{machine.EndstopMin, machine.EndstopMax}
		if m.prof.X.Endstop == machine.EndstopMax {
			order[0], order[1] = order[1], order[0]
		}
		for _, dir := range order {
			set := toMin
			if dir == machine.EndstopMax {
				set = toMax
			}
			if set == 0 {
				continue
			}
			if err := m.homeAxes(axes, set, dir, cmd.Has(gcode.FieldF)); err != nil {
				return err
			}
		}
		m.emitted = true
		m.setUnknown(axes)
		m.excess.A, m.excess.B = 0, 0

	case 53, 54, 55, 56, 57, 58, 59:
		m.offset = cmd.G - 53

	case 90:
		m.relative = false
	case 91:
		m.relative = true

	case 92:
		axes := cmd.Axes()
		if axes.Any(coord.XYZ) {
			m.ignoreAbsolute = false
		}
		scale := 1.0
		if m.macrosEnabled {
			scale = m.userScale
		}
		if axes.Has(coord.AxisX) {
			m.pos.X = cmd.X * scale
		}
		if axes.Has(coord.AxisY) {
			m.pos.Y = cmd.Y * scale
		}
		if axes.Has(coord.AxisZ) {
			m.pos.Z = cmd.Z * scale
		}
		if axes.Has(coord.AxisA) {
			m.pos.A = cmd.A
		}
		if axes.Has(coord.AxisB) {
			m.pos.B = cmd.B
		}
		if (m.known|axes)&m.mask != m.mask {
			// 140 always sets every axis, so the unknown ones get whatever
			// we happen to think they are
			m.warnf("warning G92 emulation unable to determine all coordinates to set via x3g:140 set extended position")
			m.warnf("current position defined as %s", m.positionString())
		}
		if err := m.setPosition(); err != nil {
			return err
		}
		m.emitted = true
		m.known |= axes & m.mask

	case 130:
		for i, a := range coord.AxisList {
			if !cmd.Axes().Has(a) {
				continue
			}
			v := math.Max(0, math.Min(255, cmd.Point().Get(a)))
			if err := m.enc.SetPot(uint8(i), uint8(v)); err != nil {
				return err
			}
		}

	case 161, 162:
		if cmd.Has(gcode.FieldF) {
			m.feedrate = cmd.F
		}
		dir := machine.EndstopMin
		if cmd.G == 162 {
			dir = machine.EndstopMax
		}
		if err := m.homeAxes(cmd.Axes(), cmd.Axes()&coord.XYZ, dir, cmd.Has(gcode.FieldF)); err != nil {
			return err
		}
		m.emitted = true
		m.setUnknown(cmd.Axes())
		m.excess.A, m.excess.B = 0, 0

	default:
		m.warnf("Syntax warning: unsupported gcode command 'G%d'", cmd.G)
	}
	return nil
}

// rapidFeedrate is the fastest feedrate at which no linear axis of the
// move exceeds its maximum.
func (m *Machine) rapidFeedrate(axes coord.Axes, delta coord.Point) float64 {
	d := delta.Abs()
	length := d.Magnitude(axes & coord.XYZ)
	feedrate := math.MaxFloat64
	for _, a := range []coord.Axes{coord.AxisX, coord.AxisY, coord.AxisZ} {
		if !axes.Has(a) || d.Get(a) == 0 {
			continue
		}
		if f := m.maxFeedrate(a) * length / d.Get(a); f < feedrate {
			feedrate = f
		}
	}
	if feedrate == math.MaxFloat64 {
		feedrate = m.prof.X.MaxFeedrate
	}
	return feedrate
}

func (m *Machine) positionString() string {
	return fmt.Sprintf("X:%0.2f Y:%0.2f Z:%0.2f A:%0.2f B:%0.2f", m.pos.X, m.pos.Y, m.pos.Z, m.pos.A, m.pos.B)
}

func clampNozzle(v float64) int {
	t := int(v)
	if t < 0 {
		return 0
	}
	if t > nozzleMax {
		return nozzleMax
	}
	return t
}
