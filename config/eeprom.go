package config

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/mastercactapus/gpx/eeprom"
)

// LoadEEPROM writes the settings in the file at path to d. Sections name
// the value type, keys are addresses:
//
//	[byte]
//	0x0044 = 1
//	[hex]
//	0x0050 = 1a2b
//	[string]
//	0x0022 = My Printer
func LoadEEPROM(ctx context.Context, path string, d eeprom.Device) error {
	f, err := load(path)
	if err != nil {
		return err
	}
	return each(f, func(section, key, value string) error {
		if err := SetEEPROM(ctx, d, section, key, value); err != nil {
			return fmt.Errorf("[%s] %s: %w", section, key, err)
		}
		return nil
	})
}

// SetEEPROM writes one setting.
func SetEEPROM(ctx context.Context, d eeprom.Device, section, key, value string) error {
	addr, err := strconv.ParseUint(strings.TrimSpace(key), 0, 16)
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	a := uint16(addr)
	value = strings.TrimSpace(value)

	switch strings.ToLower(section) {
	case "byte":
		v, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return err
		}
		return eeprom.Write8(ctx, d, a, uint8(v))
	case "integer":
		v, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return err
		}
		return eeprom.Write32(ctx, d, a, uint32(v))
	case "hex", "hexadecimal":
		v, err := strconv.ParseUint(value, 16, 32)
		if err != nil {
			return err
		}
		n := len(value) / 2
		if n > 4 {
			n = 4
		}
		buf := binary.LittleEndian.AppendUint32(nil, uint32(v))
		return d.WriteEEPROM(ctx, a, buf[:n])
	case "float":
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return err
		}
		return eeprom.WriteFloat(ctx, d, a, float32(v))
	case "string":
		return d.WriteEEPROM(ctx, a, []byte(value))
	}
	return fmt.Errorf("%w [%s]", ErrUnknownSection, section)
}
