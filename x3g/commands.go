package x3g

import "github.com/mastercactapus/gpx/coord"

// DefaultBuildName is announced by StartBuild when no name is given.
const DefaultBuildName = "GPX"

// maxBuildName is what fits on the LCD.
const maxBuildName = 24

func (e *Encoder) simple(op Opcode) error {
	e.Begin(op)
	return e.End()
}

func (e *Encoder) Version() error {
	e.Begin(OpVersion)
	e.U16(HostVersion)
	return e.End()
}
func (e *Encoder) BufferSize() error        { return e.simple(OpBufferSize) }
func (e *Encoder) ClearBuffer() error       { return e.simple(OpClearBuffer) }
func (e *Encoder) Abort() error             { return e.simple(OpAbort) }
func (e *Encoder) PauseResume() error       { return e.simple(OpPauseResume) }
func (e *Encoder) IsReady() error           { return e.simple(OpIsReady) }
func (e *Encoder) EndCapture() error        { return e.simple(OpEndCapture) }
func (e *Encoder) Reset() error             { return e.simple(OpReset) }
func (e *Encoder) BuildName() error         { return e.simple(OpBuildName) }
func (e *Encoder) ExtendedPosition() error  { return e.simple(OpExtendedPosition) }
func (e *Encoder) MotherboardStatus() error { return e.simple(OpMotherboardStatus) }
func (e *Encoder) BuildStatistics() error   { return e.simple(OpBuildStatistics) }

// ToolQuery asks a tool for the given value.
func (e *Encoder) ToolQuery(tool uint8, q ToolQueryCode) error {
	e.Begin(OpToolQuery)
	e.U8(tool)
	e.U8(byte(q))
	if q == ToolVersion {
		e.U8(2)
		e.U16(HostVersion)
	} else {
		e.U8(0)
	}
	return e.End()
}

func (e *Encoder) ReadEEPROM(addr uint16, n uint8) error {
	e.Begin(OpReadEEPROM)
	e.U16(addr)
	e.U8(n)
	return e.End()
}

func (e *Encoder) WriteEEPROM(addr uint16, data []byte) error {
	e.Begin(OpWriteEEPROM)
	e.U16(addr)
	e.U8(uint8(len(data)))
	e.Raw(data)
	return e.End()
}

func (e *Encoder) CaptureToFile(name string) error {
	e.Begin(OpCaptureToFile)
	e.CString(name, len(name))
	return e.End()
}

func (e *Encoder) PlayBackCapture(name string) error {
	e.Begin(OpPlayBackCapture)
	e.CString(name, len(name))
	return e.End()
}

// NextFilename asks for the next SD card entry, restarting the listing if
// restart is set.
func (e *Encoder) NextFilename(restart bool) error {
	e.Begin(OpNextFilename)
	e.U8(boolByte(restart))
	return e.End()
}

func (e *Encoder) ExtendedStop(haltSteppers, clearQueue bool) error {
	var flag uint8
	if haltSteppers {
		flag |= 1
	}
	if clearQueue {
		flag |= 2
	}
	e.Begin(OpExtendedStop)
	e.U8(flag)
	return e.End()
}

func (e *Encoder) AdvancedVersion() error {
	e.Begin(OpAdvancedVersion)
	e.U16(HostVersion)
	return e.End()
}

// HomeAxes seeks the min (or max) endstops of axes. dda is in microseconds
// between steps on the longest axis.
func (e *Encoder) HomeAxes(max bool, axes coord.Axes, dda uint32, timeout uint16) error {
	op := OpHomeMin
	if max {
		op = OpHomeMax
	}
	e.Begin(op)
	e.U8(uint8(axes & coord.All))
	e.U32(dda)
	e.U16(timeout)
	return e.End()
}

// Delay pauses the queue for ms milliseconds.
func (e *Encoder) Delay(ms uint32) error {
	e.Begin(OpDelay)
	e.U32(ms)
	return e.End()
}

func (e *Encoder) ChangeToolOffset(tool uint8) error {
	e.Begin(OpChangeTool)
	e.U8(tool)
	return e.End()
}

func (e *Encoder) WaitForTool(tool uint8, timeout uint16) error {
	e.Begin(OpWaitForTool)
	e.U8(tool)
	e.U16(100)
	e.U16(timeout)
	return e.End()
}

func (e *Encoder) WaitForPlatform(tool uint8, timeout uint16) error {
	e.Begin(OpWaitForPlatform)
	e.U8(tool)
	e.U16(100)
	e.U16(timeout)
	return e.End()
}

func (e *Encoder) toolAction(tool uint8, a ToolActionCode, payload ...byte) error {
	e.Begin(OpToolAction)
	e.U8(tool)
	e.U8(byte(a))
	e.U8(uint8(len(payload)))
	e.Raw(payload)
	return e.End()
}

func (e *Encoder) SetNozzleTemperature(tool uint8, temp uint16) error {
	return e.toolAction(tool, ActionSetTemperature, byte(temp), byte(temp>>8))
}
func (e *Encoder) SetPlatformTemperature(tool uint8, temp uint16) error {
	return e.toolAction(tool, ActionSetPlatformTemperature, byte(temp), byte(temp>>8))
}
func (e *Encoder) SetFan(tool uint8, on bool) error {
	return e.toolAction(tool, ActionFan, boolByte(on))
}
func (e *Encoder) SetValve(tool uint8, on bool) error {
	return e.toolAction(tool, ActionValve, boolByte(on))
}

// SetABP toggles the conveyor of an automated build platform (Gen 3/4
// electronics only).
func (e *Encoder) SetABP(tool uint8, on bool) error {
	return e.toolAction(tool, ActionABP, boolByte(on))
}

func (e *Encoder) SetSteppers(axes coord.Axes, enable bool) error {
	bits := uint8(axes & coord.All)
	if enable {
		bits |= 0x80
	}
	e.Begin(OpSteppers)
	e.U8(bits)
	return e.End()
}

// Steps is a position or delta on all five axes in motor steps.
type Steps [5]int32

func (e *Encoder) steps(s Steps) {
	for _, v := range s {
		e.I32(v)
	}
}

func (e *Encoder) QueueAbsolutePoint(s Steps, dda uint32) error {
	e.Begin(OpQueuePoint)
	e.steps(s)
	e.U32(dda)
	return e.End()
}

func (e *Encoder) SetPosition(s Steps) error {
	e.Begin(OpSetPosition)
	e.steps(s)
	return e.End()
}

// QueueNewPoint moves by s over usec microseconds.
func (e *Encoder) QueueNewPoint(s Steps, usec uint32, relative coord.Axes) error {
	e.Begin(OpQueueNewPoint)
	e.steps(s)
	e.U32(usec)
	e.U8(uint8(relative))
	return e.End()
}

// QueueExtendedPoint is the accelerated move. rate is in steps per second
// on the longest axis, feedrate in mm/s.
func (e *Encoder) QueueExtendedPoint(s Steps, rate uint32, relative coord.Axes, distance float32, feedrate float64) error {
	e.Begin(OpQueueExtendedPoint)
	e.steps(s)
	e.U32(rate)
	e.U8(uint8(relative))
	e.F32(distance)
	e.U16(uint16(feedrate * 64))
	return e.End()
}

func (e *Encoder) StoreHome(axes coord.Axes) error {
	e.Begin(OpStoreHome)
	e.U8(uint8(axes & coord.All))
	return e.End()
}

func (e *Encoder) RecallHome(axes coord.Axes) error {
	e.Begin(OpRecallHome)
	e.U8(uint8(axes & coord.All))
	return e.End()
}

func (e *Encoder) SetPot(axis, value uint8) error {
	e.Begin(OpSetPot)
	e.U8(axis)
	e.U8(value)
	return e.End()
}

func (e *Encoder) SetLED(red, green, blue, blink uint8) error {
	e.Begin(OpSetLED)
	e.U8(red)
	e.U8(green)
	e.U8(blue)
	e.U8(blink)
	e.U8(0)
	return e.End()
}

// SetLEDRGB takes the color as 0xRRGGBB.
func (e *Encoder) SetLEDRGB(rgb uint32, blink uint8) error {
	return e.SetLED(uint8(rgb>>16), uint8(rgb>>8), uint8(rgb), blink)
}

func (e *Encoder) Beep(freq, ms uint16) error {
	e.Begin(OpBeep)
	e.U16(freq)
	e.U16(ms)
	e.U8(0)
	return e.End()
}

// Button bits and options for WaitForButton.
const (
	ButtonCenter = 0x01
	ButtonRight  = 0x02
	ButtonLeft   = 0x04
	ButtonDown   = 0x08
	ButtonUp     = 0x10
	ButtonReset  = 0x20

	ReadyOnTimeout = 0x01
	ResetOnTimeout = 0x02
	ClearOnPress   = 0x04
)

func (e *Encoder) WaitForButton(buttons uint8, timeout uint16, options uint8) error {
	e.Begin(OpWaitForButton)
	e.U8(buttons)
	e.U16(timeout)
	e.U8(options)
	return e.End()
}

// DisplayMessage writes msg to the 4x20 LCD. A message placed at the
// origin may span all 80 characters and is split into 20 byte packets;
// one placed elsewhere is clipped to the rest of its row. The last packet
// carries the timeout and, optionally, waits for the center button.
func (e *Encoder) DisplayMessage(msg string, vPos, hPos, timeout uint8, waitForButton bool) error {
	maxLength := 20
	if hPos != 0 {
		maxLength = 20 - int(hPos)
	}

	var bits, seconds uint8
	length := len(msg)
	if vPos != 0 || hPos != 0 {
		if length > maxLength {
			length = maxLength
		}
		bits |= 0x01
	} else if length > 80 {
		length = 80
	}

	sent := 0
	for sent < length {
		if sent+maxLength >= length {
			seconds = timeout
			bits |= 0x02
			if waitForButton {
				bits |= 0x04
			}
		}
		if sent > 0 {
			bits |= 0x01
		}

		e.Begin(OpDisplayMessage)
		e.U8(bits)
		e.U8(hPos)
		e.U8(vPos)
		e.U8(seconds)
		sent += e.CString(msg[sent:length], maxLength)
		if err := e.End(); err != nil {
			return err
		}
	}
	return nil
}

// SetBuildPercent reports progress, clamped to 100.
func (e *Encoder) SetBuildPercent(percent uint8) error {
	if percent > 100 {
		percent = 100
	}
	e.Begin(OpBuildPercent)
	e.U8(percent)
	e.U8(0)
	return e.End()
}

// QueueSong plays a predefined tune: 0 error (4 cycles), 1 done, 2 error
// (2 cycles).
func (e *Encoder) QueueSong(id uint8) error {
	e.Begin(OpQueueSong)
	e.U8(id)
	return e.End()
}

// StartBuild announces a build, truncating name to what the LCD shows.
func (e *Encoder) StartBuild(name string) error {
	if name == "" {
		name = DefaultBuildName
	}
	e.Begin(OpStartBuild)
	e.U32(0)
	e.CString(name, maxBuildName)
	return e.End()
}

func (e *Encoder) EndBuild() error {
	e.Begin(OpEndBuild)
	e.U8(0)
	return e.End()
}

func (e *Encoder) SetAcceleration(on bool) error {
	e.Begin(OpAcceleration)
	e.U8(boolByte(on))
	return e.End()
}

// PauseAtZ pauses the build once Z reaches z; 0 disables it.
func (e *Encoder) PauseAtZ(z float32) error {
	e.Begin(OpPauseAtZ)
	e.F32(z)
	return e.End()
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
