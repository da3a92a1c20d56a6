package vm

// findFilament returns the index of the named filament, or -1. Index 0
// is reserved for "no filament".
func (m *Machine) findFilament(name string) int {
	for i, f := range m.filaments {
		if f.name == name {
			return i
		}
	}
	return -1
}

func (m *Machine) addFilament(name string, diameter float64, temp int, led uint32) int {
	idx := m.findFilament(name)
	if idx >= 0 {
		return idx
	}
	if len(m.filaments) >= filamentMax {
		m.errorf("Buffer overflow: too many @filament definitions (maximum = %d)", filamentMax-1)
		return 0
	}
	m.filaments = append(m.filaments, filament{name: name, diameter: diameter, temp: temp, led: led})
	return len(m.filaments) - 1
}

// addZCommand schedules a pause (no temperatures) or a temperature change
// for when the build reaches z. The list stays sorted by height.
func (m *Machine) addZCommand(z float64, name string, nozzle, platform int) error {
	idx := 0
	if name != "" {
		idx = m.findFilament(name)
		if idx < 0 {
			m.errorf("Semantic error: @pause macro with undefined filament name '%s', use a @filament macro to define it", name)
			idx = 0
		}
	}
	if len(m.zCommands) >= zCommandMax {
		m.errorf("Buffer overflow: too many @pause definitions (maximum = %d)", zCommandMax)
		return nil
	}
	if !m.loadMacros {
		return nil
	}

	zc := zCommand{z: z, filament: idx, nozzle: nozzle, platform: platform}
	first := len(m.zCommands) == 0
	if z <= m.zMax {
		i := len(m.zCommands)
		m.zCommands = append(m.zCommands, zCommand{})
		for i > 0 && z <= m.zCommands[i-1].z {
			m.zCommands[i] = m.zCommands[i-1]
			i--
		}
		m.zCommands[i] = zc
		m.zMax = m.zCommands[len(m.zCommands)-1].z
	} else {
		m.zCommands = append(m.zCommands, zc)
		m.zMax = z
	}

	if m.verbose {
		if nozzle == 0 && platform == 0 {
			m.infof("Command @ %0.2f: Pause", z)
		} else {
			m.infof("Command @ %0.2f: Set temperature; nozzle=%d, bed=%d", z, nozzle, platform)
		}
	}

	if nozzle == 0 && platform == 0 && first {
		if m.macrosEnabled {
			return m.enc.PauseAtZ(float32(z))
		}
		m.pausePending = true
	}
	return nil
}
