package vm

import (
	"github.com/mastercactapus/gpx/coord"
	"github.com/mastercactapus/gpx/gcode"
	"github.com/mastercactapus/gpx/x3g"
)

func (m *Machine) timeout(cmd *gcode.Command) uint16 {
	if cmd.Has(gcode.FieldP) {
		return uint16(cmd.P)
	}
	return maxTimeout
}

// motorAxes are the axes with a stepper driver on this machine.
func (m *Machine) motorAxes() coord.Axes {
	if m.prof.ExtruderCount == 1 {
		return coord.XYZ | coord.AxisA
	}
	return coord.All
}

func (m *Machine) setSteppers(axes coord.Axes, on bool) error {
	state := 0
	if on {
		state = 1
	}
	if err := m.enc.SetSteppers(axes, on); err != nil {
		return err
	}
	if axes.Has(coord.AxisA) {
		m.tools[0].motor = state
	}
	if axes.Has(coord.AxisB) {
		m.tools[1].motor = state
	}
	m.emitted = true
	return nil
}

// abort drops everything queued on the device; nothing is known about
// the position afterwards.
func (m *Machine) abort() error {
	m.setUnknown(m.mask)
	m.excess.A, m.excess.B = 0, 0
	return m.enc.Abort()
}

func (m *Machine) waitForExtruders(timeout uint16, both bool) error {
	if both {
		if m.tools[1].nozzle > 0 {
			if err := m.waitForExtruder(1, timeout); err != nil {
				return err
			}
		}
		if m.tools[0].nozzle > 0 {
			if err := m.waitForExtruder(0, timeout); err != nil {
				return err
			}
			if m.verbose {
				if err := m.displayTag(); err != nil {
					return err
				}
			}
		}
		m.emitted = true
		return nil
	}

	if m.tools[m.next].nozzle > 0 {
		if err := m.waitForExtruder(m.next, timeout); err != nil {
			return err
		}
		m.emitted = true
		if m.verbose {
			return m.displayTag()
		}
	}
	return nil
}

// hbpTool picks the tool that owns the heated build platform, or -1.
func (m *Machine) hbpTool(cmd *gcode.Command) int {
	tool := 1
	if m.prof.A.HasHeatedPlatform {
		tool = 0
	}
	if cmd.Has(gcode.FieldT) {
		tool = m.next
	}
	return tool
}

func (m *Machine) hasHBP(tool int) bool {
	return m.prof.Extruder(tool).HasHeatedPlatform
}

func (m *Machine) setPlatform(cmd *gcode.Command) error {
	temp := int(cmd.S)
	tool := m.hbpTool(cmd)
	if !m.hasHBP(tool) {
		m.warnf("Semantic warning: M%d cannot select non-existant heated build platform T%d", cmd.M, tool)
		return nil
	}
	if temp != 0 && m.override[tool].PlatformTemperature != 0 {
		temp = m.override[tool].PlatformTemperature
	}
	if err := m.setPlatformTemperature(tool, temp); err != nil {
		return err
	}
	m.emitted = true
	m.tools[tool].platform = temp
	return nil
}

func (m *Machine) execM(cmd *gcode.Command) error {
	switch cmd.M {
	case 0:
	case 1:
		return m.enc.PauseResume()

	case 2:
		if m.state == Running {
			if err := m.endProgram(true); err != nil {
				return err
			}
		}
		return ErrEndOfFile

	case 6, 116:
		timeout := m.timeout(cmd)
		if !m.ditto && cmd.M == 6 && m.next != m.extruder {
			if err := m.toolChange(); err != nil {
				return err
			}
			m.emitted = true
		}
		switch {
		case m.prof.A.HasHeatedPlatform && m.tools[0].platform > 0:
			if err := m.waitForPlatform(0, timeout); err != nil {
				return err
			}
			m.emitted = true
		case m.prof.B.HasHeatedPlatform && m.tools[1].platform > 0:
			if err := m.waitForPlatform(1, timeout); err != nil {
				return err
			}
			m.emitted = true
		}
		return m.waitForExtruders(timeout, m.ditto || (cmd.M == 116 && !cmd.Has(gcode.FieldT)))

	case 17, 18:
		axes := cmd.Axes()
		if axes == 0 {
			axes = m.motorAxes()
		}
		return m.setSteppers(axes, cmd.M == 17)

	case 20, 21:
		return m.enc.NextFilename(true)
	case 22:

	case 23:
		if cmd.Has(gcode.FieldArg) {
			m.selected = cmd.Arg
			return m.enc.Empty()
		}

	case 24:
		if m.sdPaused {
			m.sdPaused = false
			return m.enc.PauseResume()
		}
		if m.selected != "" {
			return m.enc.PlayBackCapture(m.selected)
		}

	case 25:
		if !m.sdPaused {
			m.sdPaused = true
			return m.enc.PauseResume()
		}

	case 26:
		// there is no x3g command to seek; M25 M26 S0 is how hosts cancel
		if m.verbose && cmd.Has(gcode.FieldS) && cmd.S > 0 {
			m.infof("Only reset to sd position 0 is supported: M26 S0")
		}

	case 27:
		if err := m.enc.BuildStatistics(); err != nil {
			return err
		}
		return m.enc.ExtendedPosition()

	case 28:
		if cmd.Has(gcode.FieldArg) {
			return m.enc.CaptureToFile(cmd.Arg)
		}
	case 29:
		return m.enc.EndCapture()
	case 30, 31:

	case 70, 71:
		msg := cmd.Comment
		if !cmd.Has(gcode.FieldComment) {
			if cmd.M == 70 {
				m.errorf("Syntax error: M70 is missing message text, use (text) where text is message")
				return nil
			}
			msg = "Press M to continue"
		}
		var vPos, hPos, timeout uint8
		if cmd.Has(gcode.FieldY) {
			vPos = uint8(min(int(cmd.Y), 3))
		}
		if cmd.Has(gcode.FieldX) {
			hPos = uint8(min(int(cmd.X), 19))
		}
		if cmd.Has(gcode.FieldP) {
			timeout = uint8(cmd.P)
		}
		m.emitted = true
		return m.enc.DisplayMessage(msg, vPos, hPos, timeout, cmd.M == 71)

	case 72:
		if !cmd.Has(gcode.FieldP) {
			m.warnf("Syntax warning: M72 is missing song number, use Pn where n is 0-2")
			return nil
		}
		m.emitted = true
		return m.enc.QueueSong(uint8(min(int(cmd.P), 2)))

	case 73:
		if !cmd.Has(gcode.FieldP) {
			m.warnf("Syntax warning: M73 is missing build percentage, use Pn where n is 0-100")
			return nil
		}
		return m.manualProgress(min(int(cmd.P), 100))

	case 82:
		m.extruderRelative = false
	case 83:
		m.extruderRelative = true

	case 84:
		return m.setSteppers(m.motorAxes(), false)

	case 101, 102, 103:
		dir := 1
		switch cmd.M {
		case 102:
			dir = -1
		case 103:
			dir = 0
		}
		axes := coord.AB
		if !m.ditto {
			axes = coord.AxisA
			if m.next == 1 {
				axes = coord.AxisB
			}
		}
		if err := m.enc.SetSteppers(axes, dir != 0); err != nil {
			return err
		}
		m.emitted = true
		if axes.Has(coord.AxisA) {
			m.tools[0].motor = dir
		}
		if axes.Has(coord.AxisB) {
			m.tools[1].motor = dir
		}

	case 104:
		if !cmd.Has(gcode.FieldS) {
			m.errorf("Syntax error: M104 is missing temperature, use Sn where n is 0-280")
			return nil
		}
		temp := clampNozzle(cmd.S)
		if m.ditto {
			if t := m.override[m.extruder].ActiveTemperature; temp != 0 && t != 0 {
				temp = t
			}
			if err := m.setNozzleTemperature(1, temp); err != nil {
				return err
			}
			if err := m.setNozzleTemperature(0, temp); err != nil {
				return err
			}
			m.tools[0].nozzle, m.tools[1].nozzle = temp, temp
		} else {
			if t := m.override[m.next].ActiveTemperature; temp != 0 && t != 0 {
				temp = t
			}
			if err := m.setNozzleTemperature(m.next, temp); err != nil {
				return err
			}
			m.tools[m.next].nozzle = temp
		}
		m.emitted = true

	case 105:
		return m.queryTemperatures()

	case 106, 107:
		on := cmd.M == 106
		if cmd.Has(gcode.FieldS) {
			on = int(cmd.S) != 0
		}
		if !m.prof.Mightyboard() {
			// Gen 4 electronics drive the ABP conveyor here
			m.emitted = true
			return m.setABP(m.next, cmd.M == 106)
		}
		set := m.setFan
		if m.reprap || m.opts.M106AlwaysValve {
			set = m.setValve
		}
		m.emitted = true
		if m.ditto {
			if err := set(1, on); err != nil {
				return err
			}
			return set(0, on)
		}
		return set(m.next, on)

	case 108:
		switch {
		case cmd.Has(gcode.FieldR):
			if m.ditto {
				m.tools[0].rpm, m.tools[1].rpm = cmd.R, cmd.R
			} else {
				m.tools[m.next].rpm = cmd.R
			}
		case cmd.Has(gcode.FieldT):
			// ReplicatorG tool change
			if !m.ditto && m.next != m.extruder {
				m.emitted = true
				return m.toolChange()
			}
		case m.opts.Online:
			// Marlin uses it to cancel heating
			return m.abort()
		default:
			m.errorf("Syntax error: M108 is missing motor RPM, use Rn where n is 0-5")
		}

	case 109:
		if !m.reprap {
			return m.execPlatform(cmd)
		}
		if !cmd.Has(gcode.FieldS) {
			m.errorf("Syntax error: M109 is missing temperature, use Sn where n is 0-280")
			return nil
		}
		timeout := m.timeout(cmd)
		temp := clampNozzle(cmd.S)
		if m.ditto {
			tempA, tempB := temp, temp
			if temp != 0 {
				if t := m.override[1].ActiveTemperature; t != 0 {
					tempB = t
				}
				if t := m.override[0].ActiveTemperature; t != 0 {
					tempA = t
				}
			}
			if err := m.setNozzleTemperature(1, tempB); err != nil {
				return err
			}
			if err := m.setNozzleTemperature(0, tempA); err != nil {
				return err
			}
			m.tools[1].nozzle, m.tools[0].nozzle = tempB, tempA
			return m.waitForExtruders(timeout, true)
		}
		if t := m.override[m.next].ActiveTemperature; temp != 0 && t != 0 {
			temp = t
		}
		if err := m.setNozzleTemperature(m.next, temp); err != nil {
			return err
		}
		m.tools[m.next].nozzle = temp
		m.emitted = true
		return m.waitForExtruders(timeout, false)

	case 110, 111:

	case 112:
		if m.opts.Online {
			return m.abort()
		}

	case 114:
		return m.enc.ExtendedPosition()
	case 115:
		return m.enc.AdvancedVersion()

	case 126, 127:
		on := cmd.M == 126
		if cmd.M == 126 && cmd.Has(gcode.FieldS) {
			on = int(cmd.S) != 0
		}
		m.emitted = true
		if m.ditto {
			if err := m.setValve(1, on); err != nil {
				return err
			}
			return m.setValve(0, on)
		}
		return m.setValve(m.next, on)

	case 131:
		if cmd.Axes() == 0 {
			m.errorf("Syntax error: M131 is missing axes, use X Y Z A B")
			return nil
		}
		m.emitted = true
		return m.enc.StoreHome(cmd.Axes())

	case 132:
		axes := cmd.Axes()
		if axes == 0 {
			m.errorf("Syntax error: M132 is missing axes, use X Y Z A B")
			return nil
		}
		if axes.Any(coord.XYZ) {
			m.ignoreAbsolute = false
		}
		if err := m.enc.RecallHome(axes); err != nil {
			return err
		}
		m.emitted = true
		m.setUnknown(axes)
		m.excess.A, m.excess.B = 0, 0

		// extruder moves are always relative, so call the recalled
		// extruder positions zero rather than unknown
		if axes.Has(coord.AxisA) {
			m.known |= coord.AxisA
			m.pos.A = 0
		}
		if axes.Has(coord.AxisB) {
			m.known |= coord.AxisB
			m.pos.B = 0
		}

	case 133:
		return m.waitForExtruders(m.timeout(cmd), m.ditto)

	case 134, 190:
		if !m.prof.A.HasHeatedPlatform && !m.prof.B.HasHeatedPlatform {
			m.warnf("Semantic warning: M%d cannot select non-existant heated build platform", cmd.M)
			return nil
		}
		if cmd.Has(gcode.FieldS) {
			if err := m.setPlatform(cmd); err != nil {
				return err
			}
		}
		tool := m.hbpTool(cmd)
		if !m.hasHBP(tool) || m.tools[tool].platform <= 0 {
			m.warnf("Semantic warning: M%d cannot select non-existant heated build platform T%d", cmd.M, tool)
			return nil
		}
		m.emitted = true
		return m.waitForPlatform(tool, m.timeout(cmd))

	case 135:
		if !m.ditto && m.next != m.extruder {
			m.emitted = true
			return m.toolChange()
		}

	case 136:
		if m.state == Ready {
			return m.beginProgram(0)
		}

	case 137:
		if m.state == Running {
			return m.endProgram(true)
		}

	case 140:
		return m.execPlatform(cmd)

	case 220:
		if cmd.Has(gcode.FieldS) && cmd.S > 0 {
			m.speed = int(cmd.S)
		}

	case 221:
		if cmd.Has(gcode.FieldS) && cmd.S > 0 {
			tool := m.extruder
			if cmd.Has(gcode.FieldT) {
				tool = m.next
			}
			m.override[tool].ExtrusionFactor = int(cmd.S)
		}

	case 300:
		freq, ms := uint16(300), uint16(1000)
		if cmd.Has(gcode.FieldS) {
			freq = uint16(uint(cmd.S) & 0xFFFF)
		}
		if cmd.Has(gcode.FieldP) {
			ms = uint16(uint(cmd.P) & 0xFFFF)
		}
		m.emitted = true
		return m.enc.Beep(freq, ms)

	case 320, 321:
		m.emitted = true
		return m.enc.SetAcceleration(cmd.M == 320)

	case 322:
		m.emitted = true
		if !cmd.Has(gcode.FieldZ) {
			m.warnf("Syntax warning: M322 is missing Z axis")
			return nil
		}
		offset := m.offsets[m.offset].Z
		if m.macrosEnabled {
			offset += m.userOffset.Z
		}
		if m.relative && !m.known.Has(coord.AxisZ) {
			m.warnf("Pause at zPos ignored because relative positioning is set and current Z position is unknown.")
			return nil
		}
		z := cmd.Z + offset
		if m.relative {
			z = m.pos.Z + cmd.Z
		}
		if m.verbose {
			m.infof("Issued pause @ %0.2f", z)
		}
		return m.enc.PauseAtZ(float32(z))

	case 400:
		return m.enc.Empty()

	case 420:
		var red, green, blue, blink uint8
		if cmd.Has(gcode.FieldR) {
			red = uint8(uint(cmd.R))
		}
		if cmd.Has(gcode.FieldE) {
			green = uint8(uint(cmd.E))
		}
		if cmd.Has(gcode.FieldB) {
			blue = uint8(uint(cmd.B))
		}
		if cmd.Has(gcode.FieldP) {
			blink = uint8(uint(cmd.P))
		}
		m.emitted = true
		return m.enc.SetLED(red, green, blue, blink)

	default:
		m.warnf("Syntax warning: unsupported mcode command 'M%d'", cmd.M)
	}
	return nil
}

// execPlatform sets the build platform temperature (M140, and M109 in
// the makerbot flavor).
func (m *Machine) execPlatform(cmd *gcode.Command) error {
	if !m.prof.A.HasHeatedPlatform && !m.prof.B.HasHeatedPlatform {
		m.warnf("Semantic warning: M%d cannot select non-existant heated build platform", cmd.M)
		return nil
	}
	if !cmd.Has(gcode.FieldS) {
		m.errorf("Syntax error: M%d is missing temperature, use Sn where n is 0-130", cmd.M)
		return nil
	}
	return m.setPlatform(cmd)
}

// queryTemperatures asks for everything a temperature report needs. The
// order of the replies matters to the daemon.
func (m *Machine) queryTemperatures() error {
	if err := m.enc.BuildStatistics(); err != nil {
		return err
	}
	query := func(tool uint8, codes ...x3g.ToolQueryCode) error {
		for _, c := range codes {
			if err := m.enc.ToolQuery(tool, c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := query(0, x3g.ToolTemperature, x3g.ToolTargetTemperature); err != nil {
		return err
	}
	if m.prof.ExtruderCount > 1 {
		if err := query(1, x3g.ToolTemperature, x3g.ToolTargetTemperature); err != nil {
			return err
		}
	}
	switch {
	case m.prof.A.HasHeatedPlatform:
		if err := query(0, x3g.ToolPlatformTemperature, x3g.ToolPlatformTarget); err != nil {
			return err
		}
	case m.prof.B.HasHeatedPlatform:
		if err := query(1, x3g.ToolPlatformTemperature, x3g.ToolPlatformTarget); err != nil {
			return err
		}
	}
	return m.enc.Empty()
}
