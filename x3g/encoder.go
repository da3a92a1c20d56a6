package x3g

import (
	"encoding/binary"
	"math"
)

// SyncByte starts every framed packet.
const SyncByte = 0xD5

// MaxPayload is the largest payload a single frame can carry.
const MaxPayload = 255

// Sink receives completed commands. An empty frame is sent for input that
// produced no device command, so the receiver can still observe it. The
// slice is only valid until Send returns.
type Sink interface {
	Send(frame []byte) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(frame []byte) error

func (fn SinkFunc) Send(frame []byte) error { return fn(frame) }

// Encoder builds one command at a time and hands each to a Sink.
type Encoder struct {
	// Framing wraps each command in a sync byte, length, and CRC.
	Framing bool
	Sink    Sink

	buf   []byte
	count int64
}

// NewEncoder returns an Encoder writing to s. A nil Sink discards output
// while still counting bytes.
func NewEncoder(s Sink, framing bool) *Encoder {
	return &Encoder{Sink: s, Framing: framing, buf: make([]byte, 0, 64)}
}

// Count returns the number of bytes emitted since the last ResetCount.
func (e *Encoder) Count() int64 { return e.count }
func (e *Encoder) ResetCount()  { e.count = 0 }

// Begin starts a new command with the given opcode.
func (e *Encoder) Begin(op Opcode) {
	e.buf = e.buf[:0]
	if e.Framing {
		e.buf = append(e.buf, SyncByte, 0)
	}
	e.buf = append(e.buf, byte(op))
}

func (e *Encoder) U8(v uint8) { e.buf = append(e.buf, v) }
func (e *Encoder) U16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}
func (e *Encoder) U32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}
func (e *Encoder) I32(v int32) { e.U32(uint32(v)) }
func (e *Encoder) F32(v float32) {
	e.U32(math.Float32bits(v))
}

// Fixed16 writes v as an 8.8 fixed point value.
func (e *Encoder) Fixed16(v float32) { e.buf = AppendFixed16(e.buf, v) }

// AppendFixed16 appends v to b as an 8.8 fixed point value.
func AppendFixed16(b []byte, v float32) []byte {
	whole := uint8(v)
	return append(b, whole, uint8(int((v-float32(whole))*256)))
}

func (e *Encoder) Raw(data []byte) { e.buf = append(e.buf, data...) }

// CString writes at most n bytes of s followed by a NUL, returning the
// number of bytes of s that were written.
func (e *Encoder) CString(s string, n int) int {
	if n > len(s) {
		n = len(s)
	}
	e.buf = append(e.buf, s[:n]...)
	e.buf = append(e.buf, 0)
	return n
}

// End completes the command and sends it.
func (e *Encoder) End() error {
	if e.Framing {
		payload := e.buf[2:]
		e.buf[1] = byte(len(payload))
		e.buf = append(e.buf, CRC8(payload))
	}
	e.count += int64(len(e.buf))
	if e.Sink == nil {
		return nil
	}
	return e.Sink.Send(e.buf)
}

// Empty sends a zero-length frame.
func (e *Encoder) Empty() error {
	if e.Sink == nil {
		return nil
	}
	return e.Sink.Send(e.buf[:0])
}

// Frame wraps payload in the sync byte, length, and CRC.
func Frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+3)
	out = append(out, SyncByte, byte(len(payload)))
	out = append(out, payload...)
	return append(out, CRC8(payload))
}
