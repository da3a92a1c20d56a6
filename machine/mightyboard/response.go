package mightyboard

import (
	"github.com/mastercactapus/gpx/x3g"
)

// BuildState is the build status reported by build statistics.
type BuildState uint8

const (
	BuildNone BuildState = iota
	BuildRunning
	BuildFinished
	BuildPaused
	BuildCancelled
	BuildSleeping
)

var buildStates = []string{
	"no build initialized (boot state)",
	"build running",
	"build finished normally",
	"build paused",
	"build cancelled",
	"build sleeping",
}

func (s BuildState) String() string {
	if int(s) < len(buildStates) {
		return buildStates[s]
	}
	return "unknown status"
}

// SDStatus is the result of an SD card operation.
type SDStatus uint8

const (
	SDOK           SDStatus = 0
	SDNotPresent   SDStatus = 1
	SDFileNotFound SDStatus = 7
)

var sdStates = []string{
	"operation successful",
	"SD Card not present",
	"SD Card initialization failed",
	"partition table could not be read",
	"filesystem could not be opened",
	"root directory could not be opened",
	"SD Card is locked",
	"file not found",
	"general error",
	"changed working dir",
	"volume too big",
	"CRC failure",
	"SD Card read error",
	"SD operating at low speeds",
}

func (s SDStatus) String() string {
	if int(s) < len(sdStates) {
		return sdStates[s]
	}
	return "unknown status"
}

// BoardFlags is the motherboard status bitfield.
type BoardFlags uint8

const (
	BoardPreheat BoardFlags = 1 << iota
	BoardManualMode
	BoardOnboardScript
	BoardOnboardProcess
	BoardWaitForButton
	BoardBuildCancelling
	BoardHeatShutdown
	BoardPowerError
)

// ToolFlags is the extruder status bitfield.
type ToolFlags uint8

const (
	ToolReady ToolFlags = 1 << iota
	ToolNotPluggedIn
	ToolSoftwareCutoff
	ToolNotHeating
	ToolTemperatureDropping
	_
	ToolPlatformError
	ToolExtruderError
)

// Position is an extended position report in steps.
type Position struct {
	Steps    x3g.Steps
	Endstops uint16
}

// PID is the heater PID state of a tool.
type PID struct {
	ExtruderError, ExtruderDelta, ExtruderOutput int16
	PlatformError, PlatformDelta, PlatformOutput int16
}

// BuildStats are the current build statistics.
type BuildStats struct {
	State   BuildState
	Hours   uint8
	Minutes uint8
	Line    uint32
}

// Response is a decoded reply. Only the fields belonging to Command (and
// Query, for tool queries) are set.
type Response struct {
	Status  x3g.Status
	Command x3g.Opcode

	// Tool and Query identify a tool query.
	Tool  uint8
	Query x3g.ToolQueryCode

	Version  uint16
	Internal uint16
	Variant  uint8

	BufferSize  uint32
	Temperature uint16
	Ready       bool
	ToolFlags   ToolFlags
	PID         PID

	EEPROM  []byte
	Written uint8

	SD       SDStatus
	Length   uint32
	Filename string

	Position   Position
	BoardFlags BoardFlags
	Build      BuildStats
}

// decode reads the reply payload p to the command cmd. Both exclude
// framing.
func decode(cmd, p []byte) (*Response, error) {
	d := x3g.NewDecoder(p)
	res := &Response{Status: x3g.Status(d.U8())}
	if len(cmd) == 0 {
		return res, d.Err
	}
	res.Command = x3g.Opcode(cmd[0])
	if !res.Command.IsQuery() {
		return res, d.Err
	}

	arg := func(i int) byte {
		if i < len(cmd) {
			return cmd[i]
		}
		return 0
	}

	switch res.Command {
	case x3g.OpVersion:
		res.Version = d.U16()
	case x3g.OpBufferSize:
		res.BufferSize = d.U32()
	case x3g.OpToolQuery:
		res.Tool = arg(1)
		res.Query = x3g.ToolQueryCode(arg(2))
		switch res.Query {
		case x3g.ToolVersion:
			res.Version = d.U16()
		case x3g.ToolTemperature, x3g.ToolPlatformTemperature,
			x3g.ToolTargetTemperature, x3g.ToolPlatformTarget:
			res.Temperature = d.U16()
		case x3g.ToolIsReady, x3g.ToolIsPlatformReady:
			res.Ready = d.U8() != 0
		case x3g.ToolStatus:
			res.ToolFlags = ToolFlags(d.U8())
		case x3g.ToolPIDState:
			res.PID = PID{
				ExtruderError: d.I16(), ExtruderDelta: d.I16(), ExtruderOutput: d.I16(),
				PlatformError: d.I16(), PlatformDelta: d.I16(), PlatformOutput: d.I16(),
			}
		}
	case x3g.OpIsReady:
		res.Ready = d.U8() != 0
	case x3g.OpReadEEPROM:
		res.EEPROM = d.Bytes(int(arg(3)))
	case x3g.OpWriteEEPROM:
		res.Written = d.U8()
	case x3g.OpCaptureToFile, x3g.OpPlayBackCapture:
		res.SD = SDStatus(d.U8())
	case x3g.OpEndCapture:
		res.Length = d.U32()
	case x3g.OpNextFilename:
		res.SD = SDStatus(d.U8())
		res.Filename = d.CString()
	case x3g.OpBuildName:
		res.Filename = d.CString()
	case x3g.OpExtendedPosition:
		for i := range res.Position.Steps {
			res.Position.Steps[i] = d.I32()
		}
		res.Position.Endstops = d.U16()
	case x3g.OpExtendedStop:
		d.U8()
	case x3g.OpMotherboardStatus:
		res.BoardFlags = BoardFlags(d.U8())
	case x3g.OpBuildStatistics:
		res.Build.State = BuildState(d.U8())
		res.Build.Hours = d.U8()
		res.Build.Minutes = d.U8()
		res.Build.Line = d.U32()
	case x3g.OpAdvancedVersion:
		res.Version = d.U16()
		res.Internal = d.U16()
		res.Variant = d.U8()
	}
	if d.Err != nil {
		return res, &IOError{Kind: KindFrame, Err: d.Err}
	}
	return res, nil
}
