package vm

import (
	"math"

	"github.com/mastercactapus/gpx/coord"
	"github.com/mastercactapus/gpx/machine"
)

// The helpers below wrap the encoder with the state and time estimates
// each command implies.

func (m *Machine) homeAxes(cmdAxes, axes coord.Axes, dir machine.Endstop, feedGiven bool) error {
	feedrate := m.homeFeedrate(cmdAxes)
	if feedGiven {
		feedrate = m.feedrate
	}

	var unit coord.Point
	var longest float64
	check := func(a coord.Axes, name string, ax *machine.Axis) {
		if !axes.Has(a) {
			return
		}
		if ax.HomeFeedrate < feedrate {
			feedrate = ax.HomeFeedrate
		}
		unit.Set(a, 1)
		if longest < ax.StepsPerMM {
			longest = ax.StepsPerMM
		}
		if dir != ax.Endstop {
			m.warnf("Semantic warning: %s axis homing to %s endstop", name, dir)
		}
	}
	check(coord.AxisX, "X", &m.prof.X)
	check(coord.AxisY, "Y", &m.prof.Y)
	check(coord.AxisZ, "Z", &m.prof.Z)

	distance := unit.Magnitude(axes)
	usec := distance / feedrate * 60000000
	delay := uint32(math.Round(usec / longest))
	m.acc.Time += distance / feedrate * 60

	return m.enc.HomeAxes(dir == machine.EndstopMax, axes, delay, m.prof.Timeout)
}

func (m *Machine) setNozzleTemperature(tool, temp int) error {
	d := float64(temp) - float64(m.tools[tool].nozzle) - ambientTemp
	if d > 0 {
		m.acc.Time += d * nozzleTime
	}
	return m.enc.SetNozzleTemperature(uint8(tool), uint16(temp))
}

func (m *Machine) setPlatformTemperature(tool, temp int) error {
	d := float64(temp) - float64(m.tools[tool].platform) - ambientTemp
	if d > 0 {
		m.acc.Time += d * platformTime
	}
	return m.enc.SetPlatformTemperature(uint8(tool), uint16(temp))
}

func (m *Machine) setFan(tool int, on bool) error {
	return m.enc.SetFan(uint8(tool), on)
}

func (m *Machine) setValve(tool int, on bool) error {
	if !m.prof.Mightyboard() {
		m.warnf("Semantic warning: ignoring M126/M127 with Gen 4 extruder electronics")
		return nil
	}
	return m.enc.SetValve(uint8(tool), on)
}

func (m *Machine) setABP(tool int, on bool) error {
	if m.prof.Mightyboard() {
		m.warnf("Semantic warning: command to toggle the Automated Build Platform's conveyor (ABP); not supported on non-Gen 3 and Gen 4 electronics")
		return nil
	}
	return m.enc.SetABP(uint8(tool), on)
}

// queueAbsolute moves to the target without acceleration. It is the only
// way to make every axis known at once.
func (m *Machine) queueAbsolute() error {
	dda := m.minDDA()
	steps := m.toSteps(m.target, &m.excess)

	feedrate := m.feedrate * float64(m.speed) / 100
	if feedrate > 0 {
		for i, a := range coord.AxisList {
			if steps[i] == 0 {
				continue
			}
			if v := math.Trunc(60000000 / (m.stepsPerMM(a) * feedrate)); v > dda {
				dda = v
			}
		}
	}
	if dda <= 0 {
		dda = 200
	}

	// extruders are driven in reverse
	steps[3], steps[4] = -steps[3], -steps[4]
	m.known = m.mask
	return m.enc.QueueAbsolutePoint(steps, uint32(dda))
}

func (m *Machine) setPosition() error {
	return m.enc.SetPosition(m.toSteps(m.pos, nil))
}

// queueRotation runs the enabled extruder motors at their simulated RPM
// for ms milliseconds.
func (m *Machine) queueRotation(ms float64) error {
	var target coord.Point
	rotate := func(tool int, ex *machine.Extruder, axis coord.Axes) float64 {
		t := m.tools[tool]
		if t.motor == 0 || t.rpm == 0 {
			return 0
		}
		maxRPM := ex.MaxFeedrate * ex.StepsPerMM / ex.MotorSteps
		rpm := math.Min(t.rpm, maxRPM)
		if t.motor < 0 {
			rpm = -rpm
		}
		revolutions := ms / 60000 * rpm
		v := -(revolutions * ex.MotorSteps / ex.StepsPerMM)
		target.Set(axis, v)
		return math.Abs(v)
	}
	m.acc.A += rotate(0, &m.prof.A, coord.AxisA)
	m.acc.B += rotate(1, &m.prof.B, coord.AxisB)

	steps := m.toSteps(target, &m.excess)
	m.acc.Time += ms / 1000 * accelerationTime
	return m.enc.QueueNewPoint(steps, uint32(ms*1000), coord.All)
}

func (m *Machine) changeExtruderOffset(tool int) error {
	return m.enc.ChangeToolOffset(uint8(tool))
}

func (m *Machine) waitForExtruder(tool int, timeout uint16) error {
	return m.enc.WaitForTool(uint8(tool), timeout)
}

func (m *Machine) waitForPlatform(tool int, timeout uint16) error {
	return m.enc.WaitForPlatform(uint8(tool), timeout)
}

func (m *Machine) startBuild(name string) error {
	return m.enc.StartBuild(name)
}

// displayTag shows the program name for a couple of seconds.
func (m *Machine) displayTag() error {
	return m.enc.DisplayMessage(packageString, 0, 0, 2, false)
}

const packageString = "GPX"
