package vm

import "math"

func (m *Machine) setBuildProgress(percent int) error {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	m.percent = percent
	return m.enc.SetBuildPercent(uint8(percent))
}

// beginProgram marks the build as started. The extruder offset is sent
// so the device starts from a known tool.
func (m *Machine) beginProgram(percent int) error {
	m.state = Running
	if !m.opts.NoStart {
		if err := m.startBuild(m.buildName); err != nil {
			return err
		}
	}
	if err := m.setBuildProgress(percent); err != nil {
		return err
	}
	return m.changeExtruderOffset(m.extruder)
}

// endProgram marks the build as finished. Macros are off for whatever
// footer follows.
func (m *Machine) endProgram(endBuild bool) error {
	m.macrosEnabled = false
	m.state = Ended
	if err := m.setBuildProgress(100); err != nil {
		return err
	}
	if !endBuild {
		return nil
	}
	return m.enc.EndBuild()
}

// issuePendingPause sends the first pause once the body of the input is
// reached.
func (m *Machine) issuePendingPause() error {
	if !m.pausePending || !m.runMacros || len(m.zCommands) == 0 {
		return nil
	}
	m.pausePending = false
	z := m.zCommands[0].z
	if m.verbose {
		m.infof("Issued next pause @ %0.2f", z)
	}
	return m.enc.PauseAtZ(float32(z))
}

// manualProgress handles an explicit M73.
func (m *Machine) manualProgress(percent int) error {
	switch {
	case m.state == Ready && percent < 100:
		return m.beginProgram(percent)
	case m.state != Running:
		return nil
	case percent == 100:
		return m.endProgram(!m.opts.NoEnd)
	}

	if !m.macrosEnabled && percent > 0 {
		if err := m.issuePendingPause(); err != nil {
			return err
		}
		m.macrosEnabled = true
	}
	if m.percent < percent && (percent == 1 || m.total.Time == 0 || !m.progress) {
		return m.setBuildProgress(percent)
	}
	return nil
}

// autoProgress reports progress from the time estimate of an earlier
// pass. It only runs after lines that produced a device command.
func (m *Machine) autoProgress() error {
	if m.total.Time <= 0.0001 || m.acc.Time <= 0.0001 || !m.progress || !m.emitted {
		return nil
	}
	percent := int(math.Round(100 * m.acc.Time / m.total.Time))
	if percent <= m.percent {
		return nil
	}
	switch {
	case m.state == Ready:
		return m.beginProgram(0)
	case percent < 100 && m.state == Running:
		if m.percent == 0 {
			percent = 1
		}
		return m.setBuildProgress(percent)
	}
	return nil
}
