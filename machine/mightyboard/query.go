package mightyboard

import (
	"context"
	"fmt"

	"github.com/mastercactapus/gpx/eeprom"
	"github.com/mastercactapus/gpx/x3g"
)

var _ eeprom.Device = &Conn{}

// Query builds a single command with build and sends it.
func (c *Conn) Query(ctx context.Context, build func(e *x3g.Encoder) error) (*Response, error) {
	var frame []byte
	enc := x3g.NewEncoder(x3g.SinkFunc(func(f []byte) error {
		frame = append(frame[:0], f...)
		return nil
	}), true)
	err := build(enc)
	if err != nil {
		return nil, err
	}
	return c.SendContext(ctx, frame)
}

func (c *Conn) Version(ctx context.Context) (uint16, error) {
	res, err := c.Query(ctx, (*x3g.Encoder).Version)
	if err != nil {
		return 0, err
	}
	return res.Version, nil
}

// AdvancedVersion returns the firmware version and variant.
func (c *Conn) AdvancedVersion(ctx context.Context) (*Response, error) {
	return c.Query(ctx, (*x3g.Encoder).AdvancedVersion)
}

// FirmwareVersion reports which firmware is running, for choosing an
// EEPROM map.
func (c *Conn) FirmwareVersion(ctx context.Context) (variant uint8, version uint16, err error) {
	res, err := c.AdvancedVersion(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("query firmware version: %w", err)
	}
	return res.Variant, res.Version, nil
}

// BufferSize returns the free space in the device queue, in bytes.
func (c *Conn) BufferSize(ctx context.Context) (uint32, error) {
	res, err := c.Query(ctx, (*x3g.Encoder).BufferSize)
	if err != nil {
		return 0, err
	}
	return res.BufferSize, nil
}

// IsReady reports whether the device queue is empty.
func (c *Conn) IsReady(ctx context.Context) (bool, error) {
	res, err := c.Query(ctx, (*x3g.Encoder).IsReady)
	if err != nil {
		return false, err
	}
	return res.Ready, nil
}

func (c *Conn) ToolQuery(ctx context.Context, tool uint8, q x3g.ToolQueryCode) (*Response, error) {
	return c.Query(ctx, func(e *x3g.Encoder) error { return e.ToolQuery(tool, q) })
}

// ExtendedPosition returns the current position in steps.
func (c *Conn) ExtendedPosition(ctx context.Context) (Position, error) {
	res, err := c.Query(ctx, (*x3g.Encoder).ExtendedPosition)
	if err != nil {
		return Position{}, err
	}
	return res.Position, nil
}

func (c *Conn) MotherboardStatus(ctx context.Context) (BoardFlags, error) {
	res, err := c.Query(ctx, (*x3g.Encoder).MotherboardStatus)
	if err != nil {
		return 0, err
	}
	return res.BoardFlags, nil
}

func (c *Conn) BuildStatistics(ctx context.Context) (BuildStats, error) {
	res, err := c.Query(ctx, (*x3g.Encoder).BuildStatistics)
	if err != nil {
		return BuildStats{}, err
	}
	return res.Build, nil
}

// ListFiles returns the names of the files on the SD card.
func (c *Conn) ListFiles(ctx context.Context) ([]string, error) {
	var names []string
	restart := true
	for {
		res, err := c.Query(ctx, func(e *x3g.Encoder) error { return e.NextFilename(restart) })
		if err != nil {
			return names, err
		}
		if res.SD != SDOK {
			return names, fmt.Errorf("list sd card: %s", res.SD)
		}
		if res.Filename == "" {
			return names, nil
		}
		names = append(names, res.Filename)
		restart = false
	}
}

// ReadEEPROM implements eeprom.Device.
func (c *Conn) ReadEEPROM(ctx context.Context, addr uint16, n uint8) ([]byte, error) {
	res, err := c.Query(ctx, func(e *x3g.Encoder) error { return e.ReadEEPROM(addr, n) })
	if err != nil {
		return nil, fmt.Errorf("read eeprom 0x%x: %w", addr, err)
	}
	return res.EEPROM, nil
}

// WriteEEPROM implements eeprom.Device.
func (c *Conn) WriteEEPROM(ctx context.Context, addr uint16, data []byte) error {
	res, err := c.Query(ctx, func(e *x3g.Encoder) error { return e.WriteEEPROM(addr, data) })
	if err != nil {
		return fmt.Errorf("write eeprom 0x%x: %w", addr, err)
	}
	if int(res.Written) != len(data) {
		return fmt.Errorf("write eeprom 0x%x: device wrote %d of %d bytes", addr, res.Written, len(data))
	}
	return nil
}

// Abort stops the device immediately and drops its queue.
func (c *Conn) Abort(ctx context.Context) error {
	_, err := c.Query(ctx, (*x3g.Encoder).Abort)
	return err
}

// PauseResume toggles the paused state of the current build.
func (c *Conn) PauseResume(ctx context.Context) error {
	_, err := c.Query(ctx, (*x3g.Encoder).PauseResume)
	return err
}
