package x3g

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var (
	ErrCRC     = errors.New("x3g: crc mismatch")
	ErrTimeout = errors.New("x3g: timeout waiting for response")
	ErrShort   = errors.New("x3g: short read")
)

// Decoder reads little-endian values from a payload. Reading past the end
// yields zero values and sets Err.
type Decoder struct {
	b   []byte
	off int
	Err error
}

func NewDecoder(b []byte) *Decoder { return &Decoder{b: b} }

func (d *Decoder) next(n int) []byte {
	if d.off+n > len(d.b) {
		d.off = len(d.b)
		d.Err = ErrShort
		return make([]byte, n)
	}
	res := d.b[d.off : d.off+n]
	d.off += n
	return res
}

func (d *Decoder) Remaining() int { return len(d.b) - d.off }

func (d *Decoder) U8() uint8   { return d.next(1)[0] }
func (d *Decoder) U16() uint16 { return binary.LittleEndian.Uint16(d.next(2)) }
func (d *Decoder) U32() uint32 { return binary.LittleEndian.Uint32(d.next(4)) }
func (d *Decoder) I16() int16  { return int16(d.U16()) }
func (d *Decoder) I32() int32  { return int32(d.U32()) }
func (d *Decoder) F32() float32 {
	return math.Float32frombits(d.U32())
}

// Fixed16 reads an 8.8 fixed point value.
func (d *Decoder) Fixed16() float32 {
	b := d.next(2)
	return float32(b[0]) + float32(b[1])/256
}

func (d *Decoder) Bytes(n int) []byte {
	res := make([]byte, n)
	copy(res, d.next(n))
	return res
}

// CString reads a NUL terminated string. A missing terminator consumes the
// rest of the payload.
func (d *Decoder) CString() string {
	for i := d.off; i < len(d.b); i++ {
		if d.b[i] == 0 {
			s := string(d.b[d.off:i])
			d.off = i + 1
			return s
		}
	}
	s := string(d.b[d.off:])
	d.off = len(d.b)
	return s
}

// Reader reads framed packets.
type Reader struct {
	r   io.Reader
	buf [MaxPayload + 1]byte
}

func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (r *Reader) readByte() (byte, error) {
	n, err := r.r.Read(r.buf[:1])
	if n == 1 {
		return r.buf[0], nil
	}
	if err == nil || err == io.EOF {
		return 0, ErrTimeout
	}
	return 0, err
}

// ReadFrame skips to the next sync byte and returns the validated payload.
// The returned slice is reused by the next call.
//
// A read that returns nothing before the sync byte is reported as
// ErrTimeout; one that stops mid-packet as ErrShort.
func (r *Reader) ReadFrame() ([]byte, error) {
	for {
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if b == SyncByte {
			break
		}
	}

	var length byte
	for {
		b, err := r.readByte()
		if err == ErrTimeout {
			return nil, ErrShort
		}
		if err != nil {
			return nil, err
		}
		// a repeated sync byte restarts the packet
		if b != SyncByte {
			length = b
			break
		}
	}

	payload := r.buf[:int(length)+1]
	_, err := io.ReadFull(r.r, payload)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, ErrShort
	}
	if err != nil {
		return nil, err
	}
	if CRC8(payload[:length]) != payload[length] {
		return nil, ErrCRC
	}

	return payload[:length], nil
}
