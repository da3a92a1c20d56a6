package vm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/mastercactapus/gpx/coord"
	"github.com/mastercactapus/gpx/gcode"
	"github.com/mastercactapus/gpx/machine"
	"github.com/mastercactapus/gpx/x3g"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	frames [][]byte
	diags  []Diagnostic
}

func (r *recorder) Send(frame []byte) error {
	r.frames = append(r.frames, append([]byte(nil), frame...))
	return nil
}

func (r *recorder) Diagnostic(d Diagnostic) { r.diags = append(r.diags, d) }

func (r *recorder) ops() []x3g.Opcode {
	var res []x3g.Opcode
	for _, f := range r.frames {
		if len(f) > 0 {
			res = append(res, x3g.Opcode(f[0]))
		}
	}
	return res
}

func (r *recorder) size() int64 {
	var n int64
	for _, f := range r.frames {
		n += int64(len(f))
	}
	return n
}

func (r *recorder) messages(sev Severity) []string {
	var res []string
	for _, d := range r.diags {
		if d.Severity == sev {
			res = append(res, d.Message)
		}
	}
	return res
}

func newTestMachine(opts Options) (*Machine, *recorder) {
	rec := &recorder{}
	log, _ := test.NewNullLogger()
	opts.Log = log
	opts.Diagnostics = rec
	m := New(machine.Default(), opts)
	m.SetSink(rec)
	m.StartConvert("")
	return m, rec
}

func run(t *testing.T, m *Machine, lines ...string) {
	t.Helper()
	for _, l := range lines {
		require.NoError(t, m.ConvertLine(l), l)
	}
}

func TestMachine_Temperature(t *testing.T) {
	m, rec := newTestMachine(Options{})
	run(t, m, "M104 S220")

	require.Len(t, rec.frames, 1)
	assert.Equal(t, []byte{136, 0, 3, 2, 220, 0}, rec.frames[0])
	nozzle, _ := m.Temperatures(0)
	assert.Equal(t, 220, nozzle)

	rec.frames = nil
	run(t, m, "M104 S400")
	assert.Equal(t, []byte{136, 0, 3, 2, nozzleMax & 0xFF, nozzleMax >> 8}, rec.frames[0])
}

func TestMachine_Moves(t *testing.T) {
	m, rec := newTestMachine(Options{})
	assert.Equal(t, coord.AxisA, m.Known())

	run(t, m, "G90", "G92 X0 Y0 Z0")
	assert.Equal(t, []x3g.Opcode{x3g.OpSetPosition}, rec.ops())
	assert.Equal(t, coord.XYZ|coord.AxisA, m.Known())
	assert.Empty(t, rec.messages(SeverityWarning))

	rec.frames = nil
	run(t, m, "G1 X10 F3000")
	require.Equal(t, []x3g.Opcode{x3g.OpQueueExtendedPoint}, rec.ops())
	d := x3g.NewDecoder(rec.frames[0][1:])
	assert.Equal(t, int32(889), d.I32())
	assert.Equal(t, int32(0), d.I32())
	assert.InDelta(t, 10, m.Position().X, 0.0001)

	// relative moves
	rec.frames = nil
	run(t, m, "G91", "G1 Y-5")
	require.Len(t, rec.frames, 1)
	assert.InDelta(t, -5, m.Position().Y, 0.0001)
}

func TestMachine_Home(t *testing.T) {
	m, rec := newTestMachine(Options{})
	run(t, m, "G92 X0 Y0 Z0")
	rec.frames = nil

	run(t, m, "G28")
	// the Replicator 2 homes XY to max and Z to min
	assert.Equal(t, []x3g.Opcode{x3g.OpHomeMax, x3g.OpHomeMin}, rec.ops())
	assert.Zero(t, m.Known()&coord.XYZ)
}

func TestMachine_G92Partial(t *testing.T) {
	m, rec := newTestMachine(Options{})
	run(t, m, "G92 X5")
	warnings := rec.messages(SeverityWarning)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "G92 emulation unable to determine all coordinates")
	assert.Equal(t, coord.AxisX|coord.AxisA, m.Known())
}

func TestMachine_SyntaxErrors(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		m, rec := newTestMachine(Options{})
		err := m.ConvertLine("G4")
		assert.True(t, errors.Is(err, ErrSyntax))
		require.NotEmpty(t, rec.messages(SeverityError))
	})

	t.Run("interactive", func(t *testing.T) {
		m, rec := newTestMachine(Options{Interactive: true})
		require.NoError(t, m.ConvertLine("G4"))
		assert.Empty(t, rec.frames)
		assert.Contains(t, rec.messages(SeverityError)[0], "G4 is missing delay parameter")
	})

	t.Run("unsupported", func(t *testing.T) {
		m, rec := newTestMachine(Options{})
		require.NoError(t, m.ConvertLine("G999"))
		assert.Equal(t, []string{"Syntax warning: unsupported gcode command 'G999'"}, rec.messages(SeverityWarning))
	})

	t.Run("missing extruder", func(t *testing.T) {
		m, rec := newTestMachine(Options{})
		require.NoError(t, m.ConvertLine("T1"))
		assert.Contains(t, rec.messages(SeverityWarning)[0], "T1 cannot select non-existant extruder")
	})
}

func TestMachine_TemperatureQuery(t *testing.T) {
	m, rec := newTestMachine(Options{})
	run(t, m, "M105")

	assert.Equal(t, []x3g.Opcode{x3g.OpBuildStatistics, x3g.OpToolQuery, x3g.OpToolQuery}, rec.ops())
	assert.Equal(t, byte(x3g.ToolTemperature), rec.frames[1][2])
	assert.Equal(t, byte(x3g.ToolTargetTemperature), rec.frames[2][2])
	require.Len(t, rec.frames, 4)
	assert.Empty(t, rec.frames[3])
}

func TestMachine_ClearCancel(t *testing.T) {
	m, rec := newTestMachine(Options{})
	run(t, m, ";@clear_cancel")
	assert.Equal(t, []string{"@clear_cancel"}, rec.messages(SeverityControl))
}

func TestMachine_Abandon(t *testing.T) {
	m, rec := newTestMachine(Options{})
	run(t, m, "G92 X0 Y0 Z0 A0")

	m.Abandon(true)
	assert.Zero(t, m.Known()&coord.XYZ)
	assert.Equal(t, Ready, m.State())

	rec.frames = nil
	run(t, m, "G90", "G1 X5 F1000")
	assert.Empty(t, rec.frames)

	run(t, m, "G91", "G1 X5 F1000")
	assert.Len(t, rec.frames, 1)

	// defining the position again allows absolute moves
	rec.frames = nil
	run(t, m, "G90", "G92 X0 Y0 Z0", "G1 X5")
	assert.Equal(t, []x3g.Opcode{x3g.OpSetPosition, x3g.OpQueueExtendedPoint}, rec.ops())
}

func TestMachine_Assume(t *testing.T) {
	m, _ := newTestMachine(Options{})
	run(t, m, "G92 X1")
	m.Assume(coord.Point{X: 9, Y: 2, Z: 3})
	p := m.Position()
	assert.Equal(t, 1.0, p.X)
	assert.Equal(t, 2.0, p.Y)
	assert.Equal(t, 3.0, p.Z)
	assert.Equal(t, coord.AxisX|coord.AxisA, m.Known())
}

func TestMachine_SelectFile(t *testing.T) {
	m, rec := newTestMachine(Options{})
	run(t, m, "M23 part.x3g")
	assert.Equal(t, "part.x3g", m.SelectedFile())
	require.Len(t, rec.frames, 1)
	assert.Empty(t, rec.frames[0])

	m.SelectFile("PART.X3G")
	assert.Equal(t, "PART.X3G", m.SelectedFile())
}

func TestMachine_Convert(t *testing.T) {
	const program = `M104 S200
G90
G92 X0 Y0 Z0 A0
G1 X10 Y10 F1200
G1 X20 Y10 E1
M2
G1 X100
`
	m, _ := newTestMachine(Options{})
	var out recorder
	err := m.Convert(context.Background(), bytes.NewReader([]byte(program)), &out)
	require.NoError(t, err)

	// nothing after M2
	ops := out.ops()
	assert.Equal(t, x3g.OpToolAction, ops[0])
	assert.Equal(t, x3g.OpQueueExtendedPoint, ops[len(ops)-1])
	assert.Len(t, ops, 4)

	s := m.Summary()
	assert.Equal(t, out.size(), s.Bytes)
	assert.InDelta(t, 1.0, s.Length, 0.0001)
	assert.Greater(t, s.Time.Seconds(), 0.0)
}

// A first move while Z is still unknown is an accelerated point sent with
// the unknown axes relative. The unaccelerated absolute move is only used
// when the move makes every axis known.
func TestMachine_FirstMoveAcceleratedWhileZUnknown(t *testing.T) {
	m, rec := newTestMachine(Options{})

	run(t, m, "G1 X10 Y10 F1200")
	require.Equal(t, []x3g.Opcode{x3g.OpQueueExtendedPoint}, rec.ops())
	assert.Equal(t, uint8(coord.AxisZ|coord.AB), rec.frames[0][1+5*4+4])
	assert.True(t, m.Known().Has(coord.AxisX|coord.AxisY))
	assert.False(t, m.Known().Has(coord.AxisZ))

	rec.frames = nil
	run(t, m, "G1 X20 F1200")
	require.Equal(t, []x3g.Opcode{x3g.OpQueueExtendedPoint}, rec.ops())
	d := x3g.NewDecoder(rec.frames[0][1:])
	for i := 0; i < 5; i++ {
		d.I32()
	}
	steps := math.Round(10 * m.Profile().X.StepsPerMM)
	usec := 10.0 / 1200 * 60000000
	assert.InDelta(t, 1000000/(usec/steps), float64(d.U32()), 1)
}

func TestMachine_FirstMoveUnacceleratedWhenAllKnown(t *testing.T) {
	m, rec := newTestMachine(Options{})
	run(t, m, "G92 Z0")
	rec.frames = nil

	run(t, m, "G1 X10 Y10 F1200")
	require.Equal(t, []x3g.Opcode{x3g.OpQueuePoint}, rec.ops())
	assert.Equal(t, coord.XYZ|coord.AxisA, m.Known())
}

func TestMachine_DittoMirrorsKnown(t *testing.T) {
	p, ok := machine.Lookup("r2x")
	require.True(t, ok)
	rec := &recorder{}
	m := New(p, Options{Ditto: true, Diagnostics: rec})
	m.SetSink(rec)
	m.StartConvert("")

	m.Abandon(false)
	run(t, m, "G92 A0", "G91")
	require.False(t, m.Known().Has(coord.AxisB))

	run(t, m, "G1 E1 F300")
	assert.True(t, m.Known().Has(coord.AxisB))
	assert.InDelta(t, m.Position().A, m.Position().B, 1e-9)
}

func TestMachine_RelativeStaysUnknown(t *testing.T) {
	m, _ := newTestMachine(Options{})
	run(t, m, "G91", "G1 X5 F600", "G1 X5")
	assert.False(t, m.Known().Has(coord.AxisX))
}

func TestMachine_Offsets(t *testing.T) {
	m, _ := newTestMachine(Options{})
	run(t, m, "G90", "G92 X0 Y0 Z0", "G10 P1 X5 Y6 Z7", "G54", "G1 X1 Y2 Z3 F600")
	p := m.Position()
	assert.InDelta(t, 6, p.X, 1e-9)
	assert.InDelta(t, 8, p.Y, 1e-9)
	assert.InDelta(t, 10, p.Z, 1e-9)

	run(t, m, "G53", "G1 X1 Y2 Z3")
	p = m.Position()
	assert.InDelta(t, 1, p.X, 1e-9)
	assert.InDelta(t, 2, p.Y, 1e-9)
	assert.InDelta(t, 3, p.Z, 1e-9)
}

func TestMachine_ExtrusionRounding(t *testing.T) {
	m, rec := newTestMachine(Options{})
	run(t, m, "G90", "M83", "G92 X0 Y0 Z0 A0")
	rec.frames = nil

	const n, e = 1000, 0.0033
	for i := 1; i <= n; i++ {
		run(t, m, fmt.Sprintf("G1 X%.1f E%g F1200", float64(i)*0.1, e))
	}

	var total int64
	for _, f := range rec.frames {
		if x3g.Opcode(f[0]) != x3g.OpQueueExtendedPoint {
			continue
		}
		d := x3g.NewDecoder(f[1:])
		for i := 0; i < 3; i++ {
			d.I32()
		}
		a := d.I32()
		if a < 0 {
			a = -a
		}
		total += int64(a)
	}
	assert.InDelta(t, n*e*m.Profile().A.StepsPerMM, float64(total), 1)
}

func TestMachine_ZTriggers(t *testing.T) {
	m, rec := newTestMachine(Options{})
	run(t, m, ";@temp 210c 1.0", ";@pause 2.0", ";@body", "G92 X0 Y0 Z0 A0")

	setTemps := func() int {
		var n int
		for _, f := range rec.frames {
			if x3g.Opcode(f[0]) == x3g.OpToolAction && f[2] == 3 {
				n++
			}
		}
		return n
	}

	run(t, m, "G1 Z0.5 F600")
	assert.Equal(t, 0, setTemps())
	assert.Equal(t, 0, m.zIndex)

	run(t, m, "G1 Z1.5")
	assert.Equal(t, 1, setTemps())
	assert.Equal(t, 1, m.zIndex)
	nozzle, _ := m.Temperatures(0)
	assert.Equal(t, 210, nozzle)

	run(t, m, "G1 Z2.5")
	assert.Equal(t, 2, m.zIndex)

	run(t, m, "G1 Z3", "G1 Z4")
	assert.Equal(t, 1, setTemps())
	assert.Equal(t, 2, m.zIndex)
}

func TestMachine_ProgressMonotonic(t *testing.T) {
	var b strings.Builder
	b.WriteString("G90\nG92 X0 Y0 Z0 A0\n")
	for i := 1; i <= 50; i++ {
		fmt.Fprintf(&b, "G1 X%d Y%d E%d F1200\n", i, i%7, i)
	}

	m, _ := newTestMachine(Options{BuildProgress: true})
	var out recorder
	require.NoError(t, m.Convert(context.Background(), strings.NewReader(b.String()), &out))

	var percents []int
	for _, f := range out.frames {
		if x3g.Opcode(f[0]) == x3g.OpBuildPercent {
			percents = append(percents, int(f[1]))
		}
	}
	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestMachine_FilamentMacro(t *testing.T) {
	m, rec := newTestMachine(Options{})
	run(t, m, "M104 S200", "M73 P0", ";@filament red 1.5mm 220c")
	rec.frames = nil

	run(t, m, ";@start red")
	want := (1.75 / 2) * (1.75 / 2) / ((1.5 / 2) * (1.5 / 2))
	assert.InDelta(t, want, m.override[0].scale, 1e-9)
	require.NotEmpty(t, rec.frames)
	assert.Equal(t, []byte{136, 0, 3, 2, 220, 0}, rec.frames[len(rec.frames)-1])
}

func TestMachine_ConvertCommands(t *testing.T) {
	const program = "M104 S200\nG92 X0 Y0 Z0 A0\nG1 X10 E1 F1200\n"
	cmds, err := gcode.Parse(program)
	require.NoError(t, err)

	m, _ := newTestMachine(Options{})
	var fromCmds recorder
	require.NoError(t, m.ConvertCommands(context.Background(), cmds, &fromCmds))

	m, _ = newTestMachine(Options{})
	var fromFile recorder
	require.NoError(t, m.Convert(context.Background(), strings.NewReader(program), &fromFile))

	assert.Equal(t, fromFile.frames, fromCmds.frames)
}

func TestMachine_MacrosAfterConvert(t *testing.T) {
	m, _ := newTestMachine(Options{})
	const program = ";@pause 1.0\nG92 X0 Y0 Z0 A0\nG1 Z2 F600\n"
	require.NoError(t, m.Convert(context.Background(), strings.NewReader(program), &recorder{}))
	require.Len(t, m.zCommands, 1)

	require.NoError(t, m.ConvertLine(";@temp 210c 5.0"))
	assert.Len(t, m.zCommands, 2)
	assert.True(t, m.runMacros)
}

func TestMachine_ConvertCancelled(t *testing.T) {
	m, _ := newTestMachine(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Convert(ctx, strings.NewReader("G1 X1\n"), &recorder{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiagnostic_String(t *testing.T) {
	assert.Equal(t, "(line 4) oops", Diagnostic{Line: 4, Message: "oops"}.String())
	assert.Equal(t, "oops", Diagnostic{Message: "oops"}.String())
	assert.Equal(t, "control", SeverityControl.String())
}
