package vm

import (
	"fmt"
	"strings"

	"github.com/mastercactapus/gpx/eeprom"
	"github.com/mastercactapus/gpx/machine"
	"github.com/mastercactapus/gpx/machine/mightyboard"
	"github.com/mastercactapus/gpx/macro"
	"github.com/mastercactapus/gpx/x3g"
)

// Macro applies an @name directive. Problems with the directive itself are
// reported as diagnostics; the returned error is for output or device
// failures.
func (m *Machine) Macro(name, params string) error {
	d := macro.Parse(name, params)
	for _, n := range d.Notes {
		m.errorf("%s", n)
	}

	switch {
	case d.Is("machine", "printer", "slicer"):
		return m.macroMachine(d)

	case d.Is("enable", "disable"):
		m.macroToggle(d)

	case d.Is("filament"):
		if d.Ident == "" {
			m.errorf("Semantic error: @filament macro with missing name")
			return nil
		}
		m.addFilament(d.Ident, d.Diameter, d.NozzleTemp, d.Color)

	case d.Is("right", "left"):
		tool := 0
		if d.Is("left") {
			tool = 1
		}
		if d.Ident != "" {
			if i := m.findFilament(d.Ident); i > 0 {
				f := m.filaments[i]
				if f.diameter > 0.0001 {
					m.setFilamentScale(tool, f.diameter)
				}
				if f.temp != 0 {
					m.override[tool].ActiveTemperature = f.temp
				}
				return nil
			}
		}
		if d.Z > 0.0001 {
			m.override[tool].PackingDensity = d.Z
		}
		if d.Diameter > 0.0001 {
			m.setFilamentScale(tool, d.Diameter)
		}
		if d.NozzleTemp != 0 {
			m.override[tool].ActiveTemperature = d.NozzleTemp
		}

	case d.Is("pause"):
		z, ok := zPos(d)
		if !ok {
			m.errorf("Semantic error: @pause macro with missing zPos")
			return nil
		}
		return m.addZCommand(z, d.Ident, 0, 0)

	case d.Is("temp", "temperature"):
		if d.NozzleTemp == 0 && d.PlatformTemp == 0 {
			m.errorf("Semantic error: @%s macro with missing temperature", d.Name)
			return nil
		}
		z, ok := zPos(d)
		if !ok {
			m.errorf("Semantic error: @%s macro with missing zPos", d.Name)
			return nil
		}
		return m.addZCommand(z, "", d.NozzleTemp, d.PlatformTemp)

	case d.Is("start"):
		return m.macroStart(d)

	case d.Is("build"):
		m.buildName = d.Ident
		if d.HasStr {
			m.buildName = d.Str
		}

	case d.Is("flavor"):
		switch strings.ToLower(d.Ident) {
		case "reprap":
			m.reprap = true
		case "makerbot":
			m.reprap = false
		default:
			m.errorf("Macro error: unrecognised GCODE flavor '%s'", d.Ident)
		}

	case d.Is("body"):
		if err := m.issuePendingPause(); err != nil {
			return err
		}
		m.macrosEnabled = true

	case d.Is("clear_cancel"):
		m.control("@clear_cancel")

	case d.Is("open_start_gcode", "open_end_gcode"):
		m.macrosEnabled = false
	case d.Is("close_start_gcode", "close_end_gcode"):
		m.macrosEnabled = true

	case d.Is("load_eeprom_map"):
		if d.Ident != "" {
			m.errorf("Error: custom eeprommap's not supported by this version of gpx")
			return nil
		}
		return m.loadEEPROMMap()

	case d.Is("eeprom"):
		if d.Ident == "" || !d.HasStr {
			m.errorf("Semantic error: @eeprom macro with missing name or typename")
			return nil
		}
		typ := eeprom.ParseTypeCode(d.Str)
		if typ == eeprom.TypeNull {
			m.errorf("Error: @eeprom macro unknown type name %s", d.Str)
			return nil
		}
		var n int
		if typ == eeprom.TypeString {
			n = int(d.Z)
		}
		m.eeprom.Add(eeprom.Mapping{ID: d.Ident, Address: uint16(d.Color), Type: typ, Len: n})

	case d.Is("eread"):
		if d.Ident == "" {
			m.errorf("Semantic error: @eread macro with missing name")
			return nil
		}
		m.eepromRead(d.Ident)

	case d.Is("ewrite"):
		if d.Ident == "" {
			m.errorf("Error: @ewrite macro with missing name")
			return nil
		}
		m.eepromWrite(d.Ident, eeprom.Value{
			String:    d.Str,
			HasString: d.HasStr,
			Hex:       uint64(d.Color),
			Number:    d.Z,
		})

	case d.Is("debug"):
		return m.macroDebug(strings.ToLower(d.Ident))
	}
	return nil
}

// zPos is the height of a pause or temperature directive. A number with
// an 'mm' suffix is accepted too.
func zPos(d macro.Directive) (float64, bool) {
	switch {
	case d.Z > 0.0001:
		return d.Z, true
	case d.Diameter > 0.0001:
		return d.Diameter, true
	}
	return 0, false
}

func (m *Machine) macroMachine(d macro.Directive) error {
	if d.Ident != "" {
		p, ok := machine.Lookup(d.Ident)
		if ok {
			m.setProfile(p)
		} else {
			m.errorf("Semantic error: @%s macro with unrecognised type '%s'", d.Name, d.Ident)
		}
		m.override[0].PackingDensity = m.prof.NominalPackingDensity
		m.override[1].PackingDensity = m.prof.NominalPackingDensity
	}
	if d.Z > 0.0001 {
		m.prof.NominalPackingDensity = d.Z
	}
	if d.Diameter > 0.0001 {
		m.prof.NominalFilamentDiameter = d.Diameter
	}
	if d.PlatformTemp != 0 {
		switch {
		case m.prof.A.HasHeatedPlatform:
			m.override[0].PlatformTemperature = d.PlatformTemp
		case m.prof.B.HasHeatedPlatform:
			m.override[1].PlatformTemperature = d.PlatformTemp
		default:
			m.warnf("Semantic warning: @%s macro cannot override non-existant heated build platform", d.Name)
		}
	}
	if d.Color != 0 {
		return m.enc.SetLEDRGB(d.Color, 0)
	}
	return nil
}

func (m *Machine) macroToggle(d macro.Directive) {
	if d.Ident == "" {
		m.errorf("Syntax error: @%s macro with missing parameter", d.Name)
		return
	}
	on := d.Is("enable")
	switch strings.ToLower(d.Ident) {
	case "ditto":
		if on && m.prof.ExtruderCount == 1 {
			m.warnf("Semantic warning: ditto printing cannot access non-existant second extruder")
			on = false
		}
		m.ditto = on
	case "progress":
		m.progress = on
	case "explicit_tool_change":
		m.opts.ExplicitToolChange = on
	default:
		m.errorf("Semantic error: @%s macro with unrecognised parameter '%s'", d.Name, d.Ident)
	}
}

// startNozzle makes temp the active temperature of both tools, resetting
// any heater that is already on.
func (m *Machine) startNozzle(temp int) error {
	for tool := 0; tool < 2; tool++ {
		t := &m.tools[tool]
		if t.nozzle != 0 && t.nozzle != temp {
			if m.state == Running {
				if err := m.setNozzleTemperature(tool, temp); err != nil {
					return err
				}
			}
			t.nozzle = temp
		}
		m.override[tool].ActiveTemperature = temp
	}
	return nil
}

func (m *Machine) macroStart(d macro.Directive) error {
	if d.NozzleTemp != 0 || d.PlatformTemp != 0 {
		if d.NozzleTemp != 0 {
			if m.verbose {
				m.infof("(@start) Nozzle temperature %dc", d.NozzleTemp)
			}
			if err := m.startNozzle(d.NozzleTemp); err != nil {
				return err
			}
		}
		if temp := d.PlatformTemp; temp != 0 {
			if m.verbose {
				m.infof("(@start) Build platform temperature %dc", temp)
			}
			for tool := 0; tool < 2; tool++ {
				t := &m.tools[tool]
				if !m.hasHBP(tool) || t.platform == 0 || t.platform == temp {
					continue
				}
				if m.state == Running {
					if err := m.setPlatformTemperature(tool, temp); err != nil {
						return err
					}
				}
				t.platform = temp
				m.override[tool].PlatformTemperature = temp
				break
			}
		}
		return nil
	}

	if d.Ident == "" {
		return nil
	}
	i := m.findFilament(d.Ident)
	if i <= 0 {
		m.errorf("Semantic error: @start with undefined filament name '%s', use a @filament macro to define it", d.Ident)
		return nil
	}
	f := m.filaments[i]
	msg := "(@start) " + f.name
	if f.diameter > 0.0001 {
		msg += fmt.Sprintf(", %0.2fmm", f.diameter)
		if m.ditto {
			m.setFilamentScale(1, f.diameter)
			m.setFilamentScale(0, f.diameter)
		} else {
			m.setFilamentScale(m.extruder, f.diameter)
		}
	}
	if f.led != 0 {
		if err := m.enc.SetLEDRGB(f.led, 0); err != nil {
			return err
		}
	}
	if f.temp != 0 {
		msg += fmt.Sprintf(", %dc", f.temp)
		if err := m.startNozzle(f.temp); err != nil {
			return err
		}
	}
	if m.verbose {
		m.infof("%s", msg)
	}
	return nil
}

func (m *Machine) loadEEPROMMap() error {
	if m.opts.Device == nil {
		m.errorf("Serial not connected: can't detect which eeprom map without asking the bot")
		return nil
	}
	variant, version, err := m.opts.Device.FirmwareVersion(m.ctx)
	if err != nil {
		return err
	}
	name := eeprom.VariantName(variant)
	em, ok := eeprom.Find(variant, version)
	if !ok {
		m.errorf("Unable to find a matching eeprom map for firmware %s version = %d", name, version)
		return nil
	}
	m.eeprom.Map = em
	m.infof("EEPROM map loaded for firmware %s version %d.", name, version)
	return nil
}

func (m *Machine) eepromMapping(id string) (*eeprom.Mapping, bool) {
	if m.opts.Device == nil {
		m.errorf("Error: eeprom operation without serial connection")
		return nil, false
	}
	em, ok := m.eeprom.Lookup(id)
	if !ok {
		m.errorf("Error: eeprom mapping '%s' not defined", id)
		return nil, false
	}
	return em, true
}

func (m *Machine) eepromRead(id string) {
	em, ok := m.eepromMapping(id)
	if !ok {
		return
	}
	s, err := eeprom.Describe(m.ctx, m.opts.Device, em)
	if err != nil {
		m.errorf("Error: %v", err)
		return
	}
	m.infof("%s", s)
}

func (m *Machine) eepromWrite(id string, v eeprom.Value) {
	em, ok := m.eepromMapping(id)
	if !ok {
		return
	}
	s, err := eeprom.Store(m.ctx, m.opts.Device, em, v)
	if err != nil {
		m.errorf("Error: %v", err)
		return
	}
	m.infof("%s", s)
}

func (m *Machine) macroDebug(what string) error {
	switch what {
	case "pos":
		m.infof("gpx position %s", m.positionString())
		m.infof("positions known: %s", m.known)
	case "axes":
		m.infof("steps_per_mm, max_feedrate, max_acceleration, max_speed_change, home_feedrate, length, endstop")
		for _, ax := range []struct {
			name string
			a    *machine.Axis
		}{{"X", &m.prof.X}, {"Y", &m.prof.Y}, {"Z", &m.prof.Z}} {
			a := ax.a
			m.infof("%s: %.10g, %g, %g, %g, %g, %g, %d", ax.name, a.StepsPerMM, a.MaxFeedrate, a.MaxAccel, a.MaxSpeedChange, a.HomeFeedrate, a.Length, a.Endstop)
		}
		m.infof("steps_per_mm, max_feedrate, max_acceleration, max_speed_change, motor_steps, has_heated_build_platform")
		for _, ex := range []struct {
			name string
			e    *machine.Extruder
		}{{"A", &m.prof.A}, {"B", &m.prof.B}} {
			e := ex.e
			m.infof("%s: %.10g, %g, %g, %g, %g, %t", ex.name, e.StepsPerMM, e.MaxFeedrate, e.MaxAccel, e.MaxSpeedChange, e.MotorSteps, e.HasHeatedPlatform)
		}
	case "progress":
		m.infof("buildName: %s", m.buildName)
		m.infof("buildProgress: %t", m.progress)
		m.infof("programState: %s", m.state)
		m.infof("macrosEnabled: %t", m.macrosEnabled)
		m.infof("runMacros: %t", m.runMacros)
		m.infof("current.percent: %d%%", m.percent)
		m.infof("total.time: %f", m.total.Time)
	case "overheat":
		return mightyboard.StatusError{Status: x3g.StatusBotOverheat}
	case "verboseon":
		m.verbose = true
	case "verboseoff":
		m.verbose = false
	case "iostatus":
		m.control("@iostatus")
	}
	return nil
}
