package config

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mastercactapus/gpx/machine"
	"github.com/mastercactapus/gpx/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "gpx.ini")
	require.NoError(t, os.WriteFile(name, []byte(data), 0o644))
	return name
}

func TestLoadMachine(t *testing.T) {
	const data = `; custom printer
filament = red 1.75mm 220c #FF0000

[PRINTER]
machine_type = r1d
gcode_flavor: makerbot
build_progress = 1
nozzle_diameter = 0.4

[x]
max_feedrate = 12000
endstop = 0

[right, left]
active_temperature = 230

[machine]
steps_per_mm = x94.1y94.1z400a96.275b96.275
timeout = 30
description = Shop printer
  with a glass bed
`
	p := machine.Default()
	var opts vm.Options
	require.NoError(t, LoadMachine(writeFile(t, data), p, &opts))

	assert.Equal(t, "r1d", p.Type)
	assert.True(t, opts.Makerbot)
	assert.True(t, opts.BuildProgress)
	assert.Equal(t, 12000.0, p.X.MaxFeedrate)
	assert.Equal(t, machine.EndstopMin, p.X.Endstop)
	assert.Equal(t, 230, opts.Override[0].ActiveTemperature)
	assert.Equal(t, 230, opts.Override[1].ActiveTemperature)
	assert.Equal(t, p.NominalPackingDensity, opts.Override[0].PackingDensity)

	assert.Equal(t, 94.1, p.X.StepsPerMM)
	assert.Equal(t, 94.1, p.Y.StepsPerMM)
	assert.Equal(t, 400.0, p.Z.StepsPerMM)
	assert.Equal(t, 96.275, p.A.StepsPerMM)
	assert.Equal(t, 96.275, p.B.StepsPerMM)
	assert.Equal(t, uint16(30), p.Timeout)
	assert.Contains(t, p.Desc, "glass bed")

	require.Len(t, opts.Macros, 1)
	assert.Equal(t, vm.MacroLine{Name: "filament", Params: "red 1.75mm 220c #FF0000"}, opts.Macros[0])
}

func TestLoadMachine_Errors(t *testing.T) {
	const data = `[printer]
machine_type = nope
build_progress = 1

[bogus]
a = 1

[x]
max_feedrate = None
wobble = 2
`
	p := machine.Default()
	var opts vm.Options
	err := LoadMachine(writeFile(t, data), p, &opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMachine)
	assert.ErrorIs(t, err, ErrUnknownSection)
	assert.ErrorIs(t, err, ErrIgnoredValue)
	assert.ErrorIs(t, err, ErrUnknownProperty)

	// good keys still apply
	assert.True(t, opts.BuildProgress)
	assert.Equal(t, "r2", p.Type)
}

func TestLoadMachine_Missing(t *testing.T) {
	err := LoadMachine(filepath.Join(t.TempDir(), "missing.ini"), machine.Default(), &vm.Options{})
	assert.Error(t, err)
}

func TestSetProperty(t *testing.T) {
	p := machine.Default()
	var opts vm.Options

	require.NoError(t, SetProperty(p, &opts, "a", "HAS_HEATED_BUILD_PLATFORM", "1"))
	assert.True(t, p.A.HasHeatedPlatform)

	require.NoError(t, SetProperty(p, &opts, "slicer", "build_platform_temperature", "110"))
	assert.Equal(t, 110, opts.Override[0].PlatformTemperature)
	assert.Zero(t, opts.Override[1].PlatformTemperature)

	require.NoError(t, SetProperty(p, &opts, "printer", "sd_card_path", "/media/sd"))
	assert.Equal(t, "/media/sd", opts.SDCardPath)

	assert.ErrorIs(t, SetProperty(p, &opts, "printer", "gcode_flavor", "marlin"), ErrUnknownFlavor)
	assert.Error(t, SetProperty(p, &opts, "x", "max_feedrate", "fast"))
	assert.Error(t, SetProperty(p, &opts, "machine", "steps_per_mm", "x10q5"))
}

type memDevice struct {
	mem [256]byte
}

func (m *memDevice) ReadEEPROM(ctx context.Context, addr uint16, n uint8) ([]byte, error) {
	return append([]byte(nil), m.mem[addr:int(addr)+int(n)]...), nil
}

func (m *memDevice) WriteEEPROM(ctx context.Context, addr uint16, data []byte) error {
	copy(m.mem[addr:], data)
	return nil
}

func TestLoadEEPROM(t *testing.T) {
	const data = `[byte]
0x10 = 0x7f
[integer]
0x20 = 100000
[hex]
0x30 = 1a2b
[float]
0x40 = 1.5
[string]
0x50 = Shop
`
	d := &memDevice{}
	require.NoError(t, LoadEEPROM(context.Background(), writeFile(t, data), d))

	assert.Equal(t, byte(0x7f), d.mem[0x10])
	assert.Equal(t, uint32(100000), binary.LittleEndian.Uint32(d.mem[0x20:]))
	assert.Equal(t, []byte{0x2b, 0x1a, 0}, d.mem[0x30:0x33])
	assert.Equal(t, float32(1.5), math.Float32frombits(binary.LittleEndian.Uint32(d.mem[0x40:])))
	assert.Equal(t, "Shop", string(d.mem[0x50:0x54]))

	err := LoadEEPROM(context.Background(), writeFile(t, "[word]\n0x10 = 1\n"), d)
	assert.ErrorIs(t, err, ErrUnknownSection)
}
