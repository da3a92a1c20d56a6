package machine

import (
	"sort"
	"strings"
)

// ID identifies a machine family. Ordering matters: everything from
// Replicator1 onward uses Mightyboard electronics.
type ID int

const (
	None ID = iota
	CupcakeG3
	CupcakeG4
	CupcakeP4
	CupcakePP
	ThingOMatic6
	ThingOMatic7
	ThingOMatic7D
	Replicator1
	Replicator1D
	Replicator2
	Replicator2H
	Replicator2X
	CoreXY
	CoreXYSZ
	ZYYX
	ZYYXD
	CloneR1
	CloneR1D
	ZYYXPro
)

// Endstop is the direction an axis homes towards.
type Endstop int

const (
	EndstopMin Endstop = 0
	EndstopMax Endstop = 1
)

func (e Endstop) String() string {
	if e == EndstopMax {
		return "maximum"
	}
	return "minimum"
}

// Axis is the calibration of a linear axis.
type Axis struct {
	MaxFeedrate    float64 `yaml:"max_feedrate"`     // mm/minute
	MaxAccel       float64 `yaml:"max_acceleration"` // mm/s^2
	MaxSpeedChange float64 `yaml:"max_speed_change"` // mm/s
	HomeFeedrate   float64 `yaml:"home_feedrate"`    // mm/minute
	Length         float64 `yaml:"length"`           // mm
	StepsPerMM     float64 `yaml:"steps_per_mm"`
	Endstop        Endstop `yaml:"endstop"`
}

// Extruder is the calibration of an extruder motor.
type Extruder struct {
	MaxFeedrate       float64 `yaml:"max_feedrate"`
	MaxAccel          float64 `yaml:"max_acceleration"`
	MaxSpeedChange    float64 `yaml:"max_speed_change"`
	StepsPerMM        float64 `yaml:"steps_per_mm"`
	MotorSteps        float64 `yaml:"motor_steps"` // microsteps per revolution
	HasHeatedPlatform bool    `yaml:"has_heated_build_platform"`
}

// Profile is the static description of a printer model.
type Profile struct {
	Type string `yaml:"type"`
	Desc string `yaml:"description"`

	X Axis `yaml:"x"`
	Y Axis `yaml:"y"`
	Z Axis `yaml:"z"`

	A Extruder `yaml:"a"`
	B Extruder `yaml:"b"`

	NominalFilamentDiameter float64    `yaml:"filament_diameter"`
	NominalPackingDensity   float64    `yaml:"packing_density"`
	NozzleDiameter          float64    `yaml:"nozzle_diameter"`
	ToolheadOffsets         [3]float64 `yaml:"toolhead_offsets,flow"`
	JKN                     [2]float64 `yaml:"jkn,flow"`
	ExtruderCount           int        `yaml:"extruder_count"`
	Timeout                 uint16     `yaml:"timeout"` // seconds
	ID                      ID         `yaml:"id"`
}

// Clone returns an independent copy that can be modified.
func (p *Profile) Clone() *Profile {
	c := *p
	return &c
}

// Extruder returns the calibration for tool 0 (A) or 1 (B).
func (p *Profile) Extruder(tool int) *Extruder {
	if tool == 1 {
		return &p.B
	}
	return &p.A
}

// Mightyboard returns true for machines using Replicator class electronics.
func (p *Profile) Mightyboard() bool { return p.ID >= Replicator1 }

// Alias is an alternative name for a built-in profile.
type Alias struct {
	Name string
	Type string
	Desc string
}

var aliases = []Alias{
	{Name: "fcp", Type: "r1d", Desc: "FlashForge Creator Pro"},
}

// DefaultType is used when no machine is selected.
const DefaultType = "r2"

// Lookup returns a copy of the named built-in profile. Names are case
// insensitive and aliases resolve to their target.
func Lookup(name string) (*Profile, bool) {
	for _, a := range aliases {
		if strings.EqualFold(a.Name, name) {
			name = a.Type
			break
		}
	}
	for _, p := range builtin {
		if strings.EqualFold(p.Type, name) {
			return p.Clone(), true
		}
	}
	return nil, false
}

// Default returns the Replicator 2 profile.
func Default() *Profile {
	p, _ := Lookup(DefaultType)
	return p
}

// Names returns the type of every built-in profile, sorted.
func Names() []string {
	res := make([]string, 0, len(builtin))
	for _, p := range builtin {
		res = append(res, p.Type)
	}
	sort.Strings(res)
	return res
}

// Aliases returns the alternative machine names.
func Aliases() []Alias {
	return append([]Alias(nil), aliases...)
}
