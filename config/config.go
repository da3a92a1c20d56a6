// Package config reads INI configuration files into machine profiles and
// translator options, and EEPROM settings files into device writes.
//
// Section and key names are case insensitive. Keys are separated from
// values by '=' or ':', and indented lines continue the previous value. A
// section named with a comma list, such as [right, left], applies each
// key to every section in the list.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mastercactapus/gpx/machine"
	"github.com/mastercactapus/gpx/vm"
	"gopkg.in/ini.v1"
)

var (
	ErrUnknownSection  = errors.New("unrecognised section")
	ErrUnknownProperty = errors.New("unrecognised property")
	ErrIgnoredValue    = errors.New("ignoring configuration value")
	ErrUnknownMachine  = errors.New("unrecognised machine type")
	ErrUnknownFlavor   = errors.New("unrecognised GCODE flavor")
)

var loadOptions = ini.LoadOptions{
	Insensitive:                true,
	AllowPythonMultilineValues: true,
	// '#' starts LED colors in macro values
	IgnoreInlineComment: true,
}

func load(source interface{}) (*ini.File, error) {
	f, err := ini.LoadSources(loadOptions, source)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return f, nil
}

// each calls fn for every key in f, splitting comma list sections. Keys
// outside any section belong to the section "".
func each(f *ini.File, fn func(section, key, value string) error) error {
	var errs []error
	for _, sec := range f.Sections() {
		name := sec.Name()
		if strings.EqualFold(name, ini.DefaultSection) {
			name = ""
		}
		names := []string{name}
		if strings.Contains(name, ",") {
			names = strings.Split(strings.Join(strings.Fields(name), ""), ",")
		}
		for _, k := range sec.Keys() {
			for _, n := range names {
				if n == "" && name != "" {
					continue
				}
				if err := fn(n, k.Name(), k.Value()); err != nil {
					errs = append(errs, err)
					break
				}
			}
		}
	}
	return errors.Join(errs...)
}

// LoadMachine applies the configuration file at path to p and opts. Every
// key is applied even when some fail; the failures are joined in the
// returned error.
func LoadMachine(path string, p *machine.Profile, opts *vm.Options) error {
	f, err := load(path)
	if err != nil {
		return err
	}
	return each(f, func(section, key, value string) error {
		return SetProperty(p, opts, section, key, value)
	})
}

func atoi(s string) (int, error) { return strconv.Atoi(strings.TrimSpace(s)) }

func atof(s string) (float64, error) { return strconv.ParseFloat(strings.TrimSpace(s), 64) }

func atob(s string) (bool, error) {
	n, err := atoi(s)
	return n != 0, err
}

type setter func(value string) error

func float(dst *float64) setter {
	return func(v string) (err error) {
		*dst, err = atof(v)
		return err
	}
}

func integer(dst *int) setter {
	return func(v string) (err error) {
		*dst, err = atoi(v)
		return err
	}
}

func flag(dst *bool) setter {
	return func(v string) (err error) {
		*dst, err = atob(v)
		return err
	}
}

func ignore(string) error { return nil }

func axisKeys(a *machine.Axis) map[string]setter {
	return map[string]setter{
		"max_feedrate":     float(&a.MaxFeedrate),
		"home_feedrate":    float(&a.HomeFeedrate),
		"steps_per_mm":     float(&a.StepsPerMM),
		"max_acceleration": float(&a.MaxAccel),
		"max_accel":        float(&a.MaxAccel),
		"max_speed_change": float(&a.MaxSpeedChange),
		"length":           float(&a.Length),
		"endstop": func(v string) error {
			n, err := atoi(v)
			a.Endstop = machine.Endstop(n)
			return err
		},
	}
}

func extruderKeys(e *machine.Extruder) map[string]setter {
	return map[string]setter{
		"max_feedrate":              float(&e.MaxFeedrate),
		"steps_per_mm":              float(&e.StepsPerMM),
		"motor_steps":               float(&e.MotorSteps),
		"has_heated_build_platform": flag(&e.HasHeatedPlatform),
		"max_acceleration":          float(&e.MaxAccel),
		"max_accel":                 float(&e.MaxAccel),
		"max_speed_change":          float(&e.MaxSpeedChange),
	}
}

func overrideKeys(o *vm.Override) map[string]setter {
	return map[string]setter{
		"active_temperature":         integer(&o.ActiveTemperature),
		"nozzle_temperature":         integer(&o.ActiveTemperature),
		"standby_temperature":        integer(&o.StandbyTemperature),
		"build_platform_temperature": integer(&o.PlatformTemperature),
		"actual_filament_diameter":   float(&o.ActualFilamentDiameter),
		"packing_density":            float(&o.PackingDensity),
	}
}

func macroKey(opts *vm.Options, name string) setter {
	return func(v string) error {
		opts.Macros = append(opts.Macros, vm.MacroLine{Name: name, Params: v})
		return nil
	}
}

func printerKeys(p *machine.Profile, opts *vm.Options) map[string]setter {
	return map[string]setter{
		"ditto_printing":            flag(&opts.Ditto),
		"build_progress":            flag(&opts.BuildProgress),
		"recalculate_5d":            flag(&opts.Rewrite5D),
		"verbose":                   flag(&opts.Verbose),
		"packing_density":           float(&p.NominalPackingDensity),
		"nominal_filament_diameter": float(&p.NominalFilamentDiameter),
		"slicer_filament_diameter":  float(&p.NominalFilamentDiameter),
		"filament_diameter":         float(&p.NominalFilamentDiameter),
		"machine_type": func(v string) error {
			if strings.EqualFold(p.Type, v) {
				return nil
			}
			np, ok := machine.Lookup(v)
			if !ok {
				return fmt.Errorf("%w '%s'", ErrUnknownMachine, v)
			}
			*p = *np
			opts.Override[0].PackingDensity = p.NominalPackingDensity
			opts.Override[1].PackingDensity = p.NominalPackingDensity
			return nil
		},
		"gcode_flavor": func(v string) error {
			switch strings.ToLower(v) {
			case "reprap":
				opts.Makerbot = false
			case "makerbot":
				opts.Makerbot = true
			default:
				return fmt.Errorf("%w '%s'", ErrUnknownFlavor, v)
			}
			return nil
		},
		"build_platform_temperature": func(v string) error {
			t, err := atoi(v)
			if err != nil {
				return err
			}
			if p.A.HasHeatedPlatform {
				opts.Override[0].PlatformTemperature = t
			}
			if p.B.HasHeatedPlatform {
				opts.Override[1].PlatformTemperature = t
			}
			return nil
		},
		"sd_card_path": func(v string) error {
			opts.SDCardPath = v
			return nil
		},

		// written by slicers, described by [machine] instead
		"machine_description": ignore,
		"nozzle_diameter":     ignore,
		"toolhead_offset_x":   ignore,
		"toolhead_offset_y":   ignore,
		"toolhead_offset_z":   ignore,
		"jkn_k":               ignore,
		"jkn_k2":              ignore,
		"extruder_count":      ignore,
		"timeout":             ignore,
	}
}

func machineKeys(p *machine.Profile) map[string]setter {
	return map[string]setter{
		"nominal_filament_diameter": float(&p.NominalFilamentDiameter),
		"slicer_filament_diameter":  float(&p.NominalFilamentDiameter),
		"packing_density":           float(&p.NominalPackingDensity),
		"nozzle_diameter":           float(&p.NozzleDiameter),
		"extruder_count":            integer(&p.ExtruderCount),
		"timeout": func(v string) error {
			n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
			p.Timeout = uint16(n)
			return err
		},
		"steps_per_mm": func(v string) error { return parseStepsPerMM(p, v) },
		"type": func(v string) error {
			p.Type = v
			return nil
		},
		"description": func(v string) error {
			p.Desc = v
			return nil
		},
	}
}

// SetProperty applies a single configuration key.
func SetProperty(p *machine.Profile, opts *vm.Options, section, key, value string) error {
	if strings.EqualFold(strings.TrimSpace(value), "None") {
		return fmt.Errorf("%w '%s'", ErrIgnoredValue, value)
	}

	var keys map[string]setter
	switch strings.ToLower(section) {
	case "", "macro":
		keys = map[string]setter{
			"verbose": flag(&opts.Verbose),
		}
		for _, name := range []string{"slicer", "filament", "pause", "start", "temp", "temperature"} {
			keys[name] = macroKey(opts, name)
		}
	case "printer", "slicer":
		keys = printerKeys(p, opts)
	case "x":
		keys = axisKeys(&p.X)
	case "y":
		keys = axisKeys(&p.Y)
	case "z":
		keys = axisKeys(&p.Z)
	case "a":
		keys = extruderKeys(&p.A)
	case "b":
		keys = extruderKeys(&p.B)
	case "right":
		keys = overrideKeys(&opts.Override[0])
	case "left":
		keys = overrideKeys(&opts.Override[1])
	case "machine":
		keys = machineKeys(p)
	default:
		return fmt.Errorf("%w [%s]", ErrUnknownSection, section)
	}

	set, ok := keys[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("[%s] section contains %w %s = %s", section, ErrUnknownProperty, key, value)
	}
	if err := set(value); err != nil {
		return fmt.Errorf("[%s] %s = %s: %w", section, key, value, err)
	}
	return nil
}

// parseStepsPerMM reads the compound form x88.9y88.9z400a96.27b96.27.
func parseStepsPerMM(p *machine.Profile, v string) error {
	v = strings.TrimSpace(v)
	for len(v) > 0 {
		axis := v[0]
		end := 1
		for end < len(v) && (v[end] == '.' || v[end] == '-' || (v[end] >= '0' && v[end] <= '9')) {
			end++
		}
		if end == 1 {
			v = v[1:]
			continue
		}
		steps, err := strconv.ParseFloat(v[1:end], 64)
		if err != nil {
			return fmt.Errorf("steps per mm: %w", err)
		}
		switch axis {
		case 'x', 'X':
			p.X.StepsPerMM = steps
		case 'y', 'Y':
			p.Y.StepsPerMM = steps
		case 'z', 'Z':
			p.Z.StepsPerMM = steps
		case 'a', 'A':
			p.A.StepsPerMM = steps
		case 'b', 'B':
			p.B.StepsPerMM = steps
		default:
			return fmt.Errorf("steps per mm parameter (%s) contains unrecognized axis '%c'", v, axis)
		}
		v = v[end:]
	}
	return nil
}
