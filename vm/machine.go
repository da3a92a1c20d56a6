package vm

import (
	"context"
	"errors"

	"github.com/mastercactapus/gpx/coord"
	"github.com/mastercactapus/gpx/eeprom"
	"github.com/mastercactapus/gpx/machine"
	"github.com/mastercactapus/gpx/x3g"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSyntax is returned for lines that cannot be translated at all.
	ErrSyntax = errors.New("syntax error")

	// ErrEndOfFile is returned after M2; no further input should be
	// converted.
	ErrEndOfFile = errors.New("end of file")

	// ErrNotConnected is returned by operations that need a device.
	ErrNotConnected = errors.New("not connected")
)

// Calibration heuristics used for time estimates and clamping.
const (
	nozzleMax        = 280
	nozzleTime       = 0.6 // seconds per degree
	platformTime     = 6.0 // seconds per degree
	ambientTemp      = 24
	accelerationTime = 1.15
	maxTimeout       = 0xFFFF

	filamentMax  = 32
	zCommandMax  = 128
	commandQueue = 20

	defaultLayerHeight = 0.34
)

// ProgramState tracks where the build is.
type ProgramState int

const (
	Ready ProgramState = iota
	Running
	Ended
)

func (s ProgramState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	}
	return "ended"
}

// Override holds per-extruder adjustments layered over the machine
// profile.
type Override struct {
	ActualFilamentDiameter float64
	PackingDensity         float64
	StandbyTemperature     int
	ActiveTemperature      int
	PlatformTemperature    int

	// ExtrusionFactor is a percentage; zero means 100.
	ExtrusionFactor int

	scale float64
}

// MacroLine is a macro applied when the translator is created, as if it
// appeared at the top of the input.
type MacroLine struct {
	Name   string
	Params string
}

// Device is a connected controller. It is only needed for the EEPROM
// macros.
type Device interface {
	eeprom.Device
	FirmwareVersion(ctx context.Context) (variant uint8, version uint16, err error)
}

// Options control a translation session.
type Options struct {
	// Framing wraps every command in a sync byte, length, and CRC.
	Framing bool

	Ditto              bool
	BuildProgress      bool
	Rewrite5D          bool
	Makerbot           bool // makerbot flavor; RepRap otherwise
	M106AlwaysValve    bool
	ExplicitToolChange bool
	Verbose            bool

	// Online is set when output goes straight to a connected device.
	Online bool

	// Interactive is set when lines come one at a time from a host
	// rather than from a file. Syntax errors are reported and skipped.
	Interactive bool

	BuildName string
	Preamble  string
	NoStart   bool
	NoEnd     bool

	// Offset and Scale are applied to XYZ inside the body of the input.
	Offset coord.Point
	Scale  float64

	Override [2]Override
	Macros   []MacroLine

	SDCardPath string

	Diagnostics DiagnosticSink
	Log         logrus.FieldLogger
	Device      Device
}

type tool struct {
	motor    int // 0 off, 1 clockwise, -1 counter-clockwise
	rpm      float64
	nozzle   int
	platform int
}

type filament struct {
	name     string
	diameter float64
	temp     int
	led      uint32
}

type zCommand struct {
	z        float64
	filament int
	nozzle   int
	platform int
}

// Totals are the accumulated estimates of a pass.
type Totals struct {
	A, B  float64 // extruded mm
	Time  float64 // seconds
	Bytes int64
}

// Machine translates G-code to x3g while tracking the printer state.
// It is not safe for concurrent use.
type Machine struct {
	prof *machine.Profile
	opts Options
	enc  *x3g.Encoder
	log  logrus.FieldLogger
	diag DiagnosticSink
	ctx  context.Context

	reprap, ditto, progress, rewrite5D bool
	verbose                            bool

	// quiet suppresses diagnostics during the estimating pass.
	quiet bool

	// emitted is set once the current line produced a device command.
	emitted bool

	relative, extruderRelative bool
	ignoreAbsolute             bool

	loadMacros, runMacros, macrosEnabled bool
	pausePending                         bool
	doPauseAt                            int

	state   ProgramState
	percent int

	pos      coord.Point
	target   coord.Point
	feedrate float64
	speed    int
	extruder int
	next     int // extruder selected for the next tool change
	offset   int

	known, mask coord.Axes
	excess      coord.Point

	offsets    [7]coord.Point
	userOffset coord.Point
	userScale  float64

	tools     [2]tool
	override  [2]Override
	filaments []filament
	zCommands []zCommand
	zIndex    int
	zMax      float64

	longestDDA  float64
	layerHeight float64
	line        int

	buildName  string
	selected   string
	sdPaused   bool
	acc, total Totals

	eeprom eeprom.Registry
}

// New returns a Machine for the profile p, which is copied.
func New(p *machine.Profile, opts Options) *Machine {
	if p == nil {
		p = machine.Default()
	}
	m := &Machine{
		prof: p.Clone(),
		opts: opts,
		log:  opts.Log,
		diag: opts.Diagnostics,
		ctx:  context.Background(),
	}
	if m.log == nil {
		m.log = logrus.StandardLogger()
	}
	if m.diag == nil {
		m.diag = LogSink{Log: m.log}
	}
	m.enc = x3g.NewEncoder(nil, opts.Framing)

	m.reprap = !opts.Makerbot
	m.ditto = opts.Ditto
	m.progress = opts.BuildProgress
	m.rewrite5D = opts.Rewrite5D
	m.verbose = opts.Verbose
	m.loadMacros = true
	m.runMacros = true
	m.buildName = opts.BuildName

	m.userOffset = opts.Offset
	m.userScale = opts.Scale
	if m.userScale == 0 {
		m.userScale = 1
	}
	m.filaments = []filament{{name: "_null_"}}

	m.reset(true)
	for _, mac := range opts.Macros {
		err := m.Macro(mac.Name, mac.Params)
		if err != nil {
			m.log.WithError(err).WithField("macro", mac.Name).Warn("apply configured macro")
		}
	}
	return m
}

// Profile returns the machine profile in use. Macros may change it.
func (m *Machine) Profile() *machine.Profile { return m.prof }

// setProfile switches the machine profile and the state derived from it.
func (m *Machine) setProfile(p *machine.Profile) {
	m.prof = p.Clone()
	m.longestDDA = 0
	m.mask = coord.XYZ | coord.AxisA
	m.known = m.known &^ coord.AB
	m.known |= coord.AxisA
	if m.prof.ExtruderCount > 1 {
		m.mask = coord.All
		m.known |= coord.AxisB
	}
}

// reset prepares for a new pass over the input. A full reset also
// forgets macros and the totals of any earlier pass.
func (m *Machine) reset(full bool) {
	m.target = coord.Point{}
	m.pos = coord.Point{}
	m.next = 0
	m.extruder = 0
	m.offset = 0
	m.percent = 0
	m.speed = 100
	m.feedrate = m.homeFeedrate(coord.XYZ)

	m.setProfile(m.prof)
	m.known = coord.AxisA
	if m.prof.ExtruderCount > 1 {
		m.known |= coord.AxisB
	}
	m.excess = coord.Point{}
	m.offsets = [7]coord.Point{}

	m.tools = [2]tool{}
	for i := range m.override {
		o := m.opts.Override[i]
		if o.PackingDensity == 0 {
			o.PackingDensity = 1
		}
		if o.ExtrusionFactor == 0 {
			o.ExtrusionFactor = 100
		}
		o.scale = 1
		m.override[i] = o
	}

	if full {
		m.zIndex = 0
		m.zCommands = m.zCommands[:0]
		m.total = Totals{}
		m.eeprom = eeprom.Registry{}
	}
	m.zMax = 0

	m.relative = false
	m.extruderRelative = false
	m.state = Ready
	m.doPauseAt = 0
	m.pausePending = false
	m.macrosEnabled = false
	m.longestDDA = 0
	m.layerHeight = defaultLayerHeight
	m.line = 1

	m.acc = Totals{}
	m.enc.ResetCount()
}

// Reset prepares the Machine for another pass over the same input.
// Filaments, Z triggers, and the totals of the previous pass are kept;
// position, temperatures, and offsets are forgotten.
func (m *Machine) Reset() { m.reset(false) }

// Position returns the current position in mm.
func (m *Machine) Position() coord.Point { return m.pos }

// Known returns the axes whose absolute position is known.
func (m *Machine) Known() coord.Axes { return m.known }

// Extruder returns the active tool.
func (m *Machine) Extruder() int { return m.extruder }

// State returns the program state.
func (m *Machine) State() ProgramState { return m.state }

// Percent returns the last reported build progress.
func (m *Machine) Percent() int { return m.percent }

// Line returns the number of the line being translated.
func (m *Machine) Line() int { return m.line }

// Temperatures returns the last commanded nozzle and platform
// temperatures of tool.
func (m *Machine) Temperatures(tool int) (nozzle, platform int) {
	t := m.tools[tool&1]
	return t.nozzle, t.platform
}

// SelectedFile returns the SD card file selected with M23.
func (m *Machine) SelectedFile() string { return m.selected }

// Abandon forgets the position after the device dropped its queue, so
// no later move trusts stale state. Any program is considered over. With
// ignoreAbsolute set, absolute moves are skipped until the position is
// defined again.
func (m *Machine) Abandon(ignoreAbsolute bool) {
	m.state = Ready
	m.setUnknown(m.mask)
	m.excess.A, m.excess.B = 0, 0
	m.ignoreAbsolute = ignoreAbsolute
}

// Continue readies the machine for more input after a line, as when a
// host keeps sending after a program ended.
func (m *Machine) Continue() {
	if m.state == Ended {
		m.state = Ready
	}
	m.macrosEnabled = true
}

// Assume sets the position of the axes not known to the values in p, as
// reported by the device. They stay unknown.
func (m *Machine) Assume(p coord.Point) {
	for _, a := range coord.AxisList {
		if !m.known.Has(a) {
			m.pos.Set(a, p.Get(a))
		}
	}
}

// SelectFile replaces the SD card file selected with M23.
func (m *Machine) SelectFile(name string) { m.selected = name }

// EEPROM returns the EEPROM mappings known to the session.
func (m *Machine) EEPROM() *eeprom.Registry { return &m.eeprom }
