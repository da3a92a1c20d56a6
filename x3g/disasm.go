package x3g

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrUnknownOpcode is returned when a stream cannot be decoded further.
var ErrUnknownOpcode = errors.New("x3g: unknown opcode")

// fixed payload lengths, excluding the opcode
var payloadLen = map[Opcode]int{
	OpVersion: 2, OpInit: 0, OpBufferSize: 0, OpClearBuffer: 0, OpAbort: 0,
	OpPauseResume: 0, OpIsReady: 0, OpReadEEPROM: 3, OpEndCapture: 0,
	OpReset: 0, OpNextFilename: 1, OpBuildName: 0, OpExtendedPosition: 0,
	OpExtendedStop: 1, OpMotherboardStatus: 0, OpBuildStatistics: 0,
	OpAdvancedVersion: 2,

	129: 16, 130: 12,
	OpHomeMin: 7, OpHomeMax: 7, OpDelay: 4, OpChangeTool: 1, OpWaitForTool: 5,
	OpSteppers: 1, 138: 2, OpQueuePoint: 24, OpSetPosition: 20,
	OpWaitForPlatform: 5, OpQueueNewPoint: 25, OpStoreHome: 1, OpRecallHome: 1,
	OpSetPot: 2, OpSetLED: 5, OpBeep: 5, OpWaitForButton: 4, OpBuildPercent: 2,
	OpQueueSong: 1, OpFactoryDefaults: 1, OpEndBuild: 1,
	OpQueueExtendedPoint: 32, OpAcceleration: 1, OpStreamVersion: 20,
	OpPauseAtZ: 4,
}

func readCString(br *bufio.Reader, buf []byte) ([]byte, error) {
	s, err := br.ReadBytes(0)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return append(buf, s...), err
}

// readCommand reads one unframed command from br.
func readCommand(br *bufio.Reader) ([]byte, error) {
	b, err := br.ReadByte()
	if err != nil {
		return nil, err
	}
	op := Opcode(b)
	cmd := []byte{b}

	readN := func(n int) error {
		start := len(cmd)
		cmd = append(cmd, make([]byte, n)...)
		_, err := io.ReadFull(br, cmd[start:])
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	if n, ok := payloadLen[op]; ok {
		return cmd, readN(n)
	}
	switch op {
	case OpToolQuery, OpToolAction, OpWriteEEPROM:
		if err = readN(3); err != nil {
			return nil, err
		}
		return cmd, readN(int(cmd[3]))
	case OpCaptureToFile, OpPlayBackCapture:
		return readCString(br, cmd)
	case OpDisplayMessage, OpStartBuild:
		if err = readN(4); err != nil {
			return nil, err
		}
		return readCString(br, cmd)
	}
	return nil, fmt.Errorf("%w %d", ErrUnknownOpcode, b)
}

// Describe renders a single command (without framing) as text.
func Describe(cmd []byte) string {
	if len(cmd) == 0 {
		return "(empty)"
	}
	op := Opcode(cmd[0])
	d := NewDecoder(cmd[1:])
	var s string
	switch op {
	case OpHomeMin, OpHomeMax:
		s = fmt.Sprintf("axes 0x%02X, dda %d us, timeout %d s", d.U8(), d.U32(), d.U16())
	case OpDelay:
		s = fmt.Sprintf("%d ms", d.U32())
	case OpChangeTool:
		s = fmt.Sprintf("tool %d", d.U8())
	case OpWaitForTool, OpWaitForPlatform:
		s = fmt.Sprintf("tool %d (%d ms between polls, %d s timeout)", d.U8(), d.U16(), d.U16())
	case OpToolAction:
		tool, action, n := d.U8(), ToolActionCode(d.U8()), d.U8()
		switch {
		case n == 2:
			s = fmt.Sprintf("tool %d action %d = %d", tool, action, d.U16())
		case n == 1:
			s = fmt.Sprintf("tool %d action %d = %d", tool, action, d.U8())
		default:
			s = fmt.Sprintf("tool %d action %d (%d bytes)", tool, action, n)
		}
	case OpToolQuery:
		s = fmt.Sprintf("tool %d query %d", d.U8(), d.U8())
	case OpSteppers:
		s = fmt.Sprintf("bits 0x%02X", d.U8())
	case OpQueuePoint:
		s = fmt.Sprintf("to (%d,%d,%d,%d,%d) dda %d", d.I32(), d.I32(), d.I32(), d.I32(), d.I32(), d.U32())
	case OpSetPosition:
		s = fmt.Sprintf("(%d,%d,%d,%d,%d)", d.I32(), d.I32(), d.I32(), d.I32(), d.I32())
	case OpQueueNewPoint:
		s = fmt.Sprintf("to (%d,%d,%d,%d,%d) in %d us (relative 0x%02X)", d.I32(), d.I32(), d.I32(), d.I32(), d.I32(), d.U32(), d.U8())
	case OpQueueExtendedPoint:
		s = fmt.Sprintf("to (%d,%d,%d,%d,%d) dda_rate %d (relative 0x%02X) distance %f feedrateX64 %d",
			d.I32(), d.I32(), d.I32(), d.I32(), d.I32(), d.U32(), d.U8(), d.F32(), d.U16())
	case OpStoreHome, OpRecallHome:
		s = fmt.Sprintf("axes 0x%02X", d.U8())
	case OpSetPot:
		s = fmt.Sprintf("axis %d value %d", d.U8(), d.U8())
	case OpSetLED:
		s = fmt.Sprintf("red %d green %d blue %d blink %d", d.U8(), d.U8(), d.U8(), d.U8())
	case OpBeep:
		s = fmt.Sprintf("frequency %d length %d ms", d.U16(), d.U16())
	case OpWaitForButton:
		s = fmt.Sprintf("buttons 0x%02X timeout %d s options 0x%02X", d.U8(), d.U16(), d.U8())
	case OpDisplayMessage:
		s = fmt.Sprintf("options 0x%02X at %d,%d timeout %d '%s'", d.U8(), d.U8(), d.U8(), d.U8(), d.CString())
	case OpBuildPercent:
		s = fmt.Sprintf("%d%%", d.U8())
	case OpQueueSong:
		s = fmt.Sprintf("song %d", d.U8())
	case OpStartBuild:
		d.U32()
		s = fmt.Sprintf("'%s'", d.CString())
	case OpAcceleration:
		s = fmt.Sprintf("enabled %d", d.U8())
	case OpPauseAtZ:
		s = fmt.Sprintf("z %f", d.F32())
	case OpReadEEPROM:
		s = fmt.Sprintf("address 0x%04X length %d", d.U16(), d.U8())
	case OpWriteEEPROM:
		addr, n := d.U16(), d.U8()
		s = fmt.Sprintf("address 0x%04X data % X", addr, d.Bytes(int(n)))
	case OpCaptureToFile, OpPlayBackCapture:
		s = fmt.Sprintf("'%s'", d.CString())
	case OpNextFilename:
		s = fmt.Sprintf("restart %d", d.U8())
	case OpExtendedStop:
		s = fmt.Sprintf("flags 0x%02X", d.U8())
	}
	if s == "" {
		return fmt.Sprintf("[%d] %s", op, op)
	}
	return fmt.Sprintf("[%d] %s: %s", op, op, s)
}

// Disassemble writes one line per command in r to w.
func Disassemble(r io.Reader, w io.Writer, framed bool) error {
	var next func() ([]byte, error)
	if framed {
		fr := NewReader(r)
		next = func() ([]byte, error) {
			p, err := fr.ReadFrame()
			if err == ErrTimeout {
				return nil, io.EOF
			}
			return p, err
		}
	} else {
		br := bufio.NewReader(r)
		next = func() ([]byte, error) { return readCommand(br) }
	}

	for n := 0; ; n++ {
		cmd, err := next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("command %d: %w", n, err)
		}
		if _, err = fmt.Fprintf(w, "%d: %s\n", n, Describe(cmd)); err != nil {
			return err
		}
	}
}
