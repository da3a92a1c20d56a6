package eeprom

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mastercactapus/gpx/x3g"
)

// Device is a controller with readable and writable EEPROM.
type Device interface {
	ReadEEPROM(ctx context.Context, addr uint16, n uint8) ([]byte, error)
	WriteEEPROM(ctx context.Context, addr uint16, data []byte) error
}

var (
	ErrRange       = errors.New("parameter out of range")
	ErrOneValue    = errors.New("only one value expected")
	ErrUnexpected  = errors.New("string value unexpected")
	ErrZeroLength  = errors.New("can't write a string to zero length eeprom mapping")
	ErrUnsupported = errors.New("type not supported")
	ErrShortReply  = errors.New("short eeprom reply")
)

// maxString is the largest EEPROM read that fits in a reply payload.
const maxString = 31

func read(ctx context.Context, d Device, addr uint16, n uint8) ([]byte, error) {
	b, err := d.ReadEEPROM(ctx, addr, n)
	if err != nil {
		return nil, err
	}
	if len(b) < int(n) {
		return nil, fmt.Errorf("read 0x%x: %w", addr, ErrShortReply)
	}
	return b, nil
}

// Read8 reads one byte. Two bytes are requested since some firmware
// rejects single byte reads.
func Read8(ctx context.Context, d Device, addr uint16) (uint8, error) {
	b, err := read(ctx, d, addr, 2)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func Read16(ctx context.Context, d Device, addr uint16) (uint16, error) {
	b, err := read(ctx, d, addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func ReadFixed16(ctx context.Context, d Device, addr uint16) (float32, error) {
	b, err := read(ctx, d, addr, 2)
	if err != nil {
		return 0, err
	}
	return x3g.NewDecoder(b).Fixed16(), nil
}

func Read32(ctx context.Context, d Device, addr uint16) (uint32, error) {
	b, err := read(ctx, d, addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func ReadFloat(ctx context.Context, d Device, addr uint16) (float32, error) {
	b, err := read(ctx, d, addr, 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// ReadString reads a NUL terminated string of at most n bytes.
func ReadString(ctx context.Context, d Device, addr uint16, n int) (string, error) {
	if n > maxString {
		n = maxString
	}
	b, err := d.ReadEEPROM(ctx, addr, uint8(n))
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

func Write8(ctx context.Context, d Device, addr uint16, v uint8) error {
	return d.WriteEEPROM(ctx, addr, []byte{v})
}

func Write16(ctx context.Context, d Device, addr uint16, v uint16) error {
	return d.WriteEEPROM(ctx, addr, binary.LittleEndian.AppendUint16(nil, v))
}

func WriteFixed16(ctx context.Context, d Device, addr uint16, v float32) error {
	return d.WriteEEPROM(ctx, addr, x3g.AppendFixed16(nil, v))
}

func Write32(ctx context.Context, d Device, addr uint16, v uint32) error {
	return d.WriteEEPROM(ctx, addr, binary.LittleEndian.AppendUint32(nil, v))
}

func WriteFloat(ctx context.Context, d Device, addr uint16, v float32) error {
	return d.WriteEEPROM(ctx, addr, binary.LittleEndian.AppendUint32(nil, math.Float32bits(v)))
}

// Describe reads the field m and renders it for display.
func Describe(ctx context.Context, d Device, m *Mapping) (string, error) {
	switch m.Type {
	case TypeBitfield, TypeBoolean, TypeByte:
		b, err := Read8(ctx, d, m.Address)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM byte %s @ 0x%x is %d %s (0x%x)", m.ID, m.Address, b, m.Unit, b), nil
	case TypeUShort:
		v, err := Read16(ctx, d, m.Address)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM value %s @ 0x%x is %d %s (0x%x)", m.ID, m.Address, v, m.Unit, v), nil
	case TypeFixed:
		v, err := ReadFixed16(ctx, d, m.Address)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM float %s @ 0x%x is %g %s", m.ID, m.Address, v, m.Unit), nil
	case TypeLong:
		v, err := Read32(ctx, d, m.Address)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM value %s @ 0x%x is %d %s (0x%x)", m.ID, m.Address, int32(v), m.Unit, v), nil
	case TypeULong:
		v, err := Read32(ctx, d, m.Address)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM value %s @ 0x%x is %d %s (0x%x)", m.ID, m.Address, v, m.Unit, v), nil
	case TypeFloat:
		v, err := ReadFloat(ctx, d, m.Address)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM float %s @ 0x%x is %g %s", m.ID, m.Address, v, m.Unit), nil
	case TypeString:
		s, err := ReadString(ctx, d, m.Address, m.Len)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM string %s @ 0x%x is %s", m.ID, m.Address, s), nil
	}
	return "", fmt.Errorf("%s: %w", m.ID, ErrUnsupported)
}

// Value is the parameter of a write. At most one of its fields may be set.
type Value struct {
	String    string
	HasString bool
	Hex       uint64
	Number    float64
}

// Store writes v to the field m and describes what was written.
func Store(ctx context.Context, d Device, m *Mapping, v Value) (string, error) {
	n := 0
	if v.HasString {
		n++
	}
	if v.Hex != 0 {
		n++
	}
	if v.Number != 0 {
		n++
	}
	if n > 1 {
		return "", ErrOneValue
	}

	hex := v.Hex
	if m.Type != TypeString {
		if v.HasString {
			return "", fmt.Errorf("%w for eeprom setting %s", ErrUnexpected, m.ID)
		}
		if v.Number != 0 {
			hex = uint64(v.Number)
		}
	}

	switch m.Type {
	case TypeBitfield, TypeBoolean, TypeByte:
		if hex > math.MaxUint8 {
			return "", fmt.Errorf("%w for eeprom setting %s", ErrRange, m.ID)
		}
		err := Write8(ctx, d, m.Address, uint8(hex))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM wrote 8-bits, %d to address 0x%x", hex, m.Address), nil
	case TypeUShort:
		if hex > math.MaxUint16 {
			return "", fmt.Errorf("%w for eeprom setting %s", ErrRange, m.ID)
		}
		err := Write16(ctx, d, m.Address, uint16(hex))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM wrote 16-bits, %d to address 0x%x", hex, m.Address), nil
	case TypeFixed:
		f := v.Number
		if f == 0 {
			f = float64(hex)
		}
		err := WriteFixed16(ctx, d, m.Address, float32(f))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM wrote fixed point 16-bits, %f to address 0x%x", f, m.Address), nil
	case TypeLong, TypeULong:
		if hex > math.MaxUint32 {
			return "", fmt.Errorf("%w for eeprom setting %s", ErrRange, m.ID)
		}
		err := Write32(ctx, d, m.Address, uint32(hex))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM wrote 32-bits, %d to address 0x%x", hex, m.Address), nil
	case TypeFloat:
		err := WriteFloat(ctx, d, m.Address, float32(v.Number))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM wrote float, %g to address 0x%x", v.Number, m.Address), nil
	case TypeString:
		if m.Len <= 0 {
			return "", ErrZeroLength
		}
		s := v.String
		if len(s) >= m.Len {
			s = s[:m.Len-1]
		}
		data := append([]byte(s), 0)
		err := d.WriteEEPROM(ctx, m.Address, data)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EEPROM wrote %d bytes to address 0x%x", len(data), m.Address), nil
	}
	return "", fmt.Errorf("%s: %w", m.ID, ErrUnsupported)
}
