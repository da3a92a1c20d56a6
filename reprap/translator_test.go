package reprap

import (
	"context"
	"testing"

	"github.com/mastercactapus/gpx/coord"
	"github.com/mastercactapus/gpx/machine"
	"github.com/mastercactapus/gpx/machine/mightyboard"
	"github.com/mastercactapus/gpx/vm"
	"github.com/mastercactapus/gpx/x3g"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice answers queries from its fields. respond, when set, may
// override the reply for any command.
type fakeDevice struct {
	sent []x3g.Opcode

	temp, target uint16
	toolReady    bool
	queueReady   bool
	build        mightyboard.BuildState
	files        []string
	nextFile     int

	respond func(cmd []byte) (*mightyboard.Response, error)
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{temp: 210, target: 220, queueReady: true}
}

func (d *fakeDevice) count(op x3g.Opcode) int {
	var n int
	for _, o := range d.sent {
		if o == op {
			n++
		}
	}
	return n
}

func (d *fakeDevice) SendContext(ctx context.Context, frame []byte) (*mightyboard.Response, error) {
	cmd := frame[2 : len(frame)-1]
	op := x3g.Opcode(cmd[0])
	d.sent = append(d.sent, op)
	if d.respond != nil {
		res, err := d.respond(cmd)
		if res != nil || err != nil {
			return res, err
		}
	}

	res := &mightyboard.Response{Status: x3g.StatusSuccess, Command: op}
	switch op {
	case x3g.OpIsReady:
		res.Ready = d.queueReady
	case x3g.OpToolQuery:
		res.Tool, res.Query = cmd[1], x3g.ToolQueryCode(cmd[2])
		switch res.Query {
		case x3g.ToolTemperature:
			res.Temperature = d.temp
		case x3g.ToolTargetTemperature:
			res.Temperature = d.target
		case x3g.ToolIsReady, x3g.ToolIsPlatformReady:
			res.Ready = d.toolReady
		}
	case x3g.OpBuildStatistics:
		res.Build.State = d.build
	case x3g.OpAdvancedVersion:
		res.Version, res.Variant = 770, 0x80
	case x3g.OpNextFilename:
		if cmd[1] != 0 {
			d.nextFile = 0
		}
		if d.nextFile < len(d.files) {
			res.Filename = d.files[d.nextFile]
			d.nextFile++
		}
	case x3g.OpExtendedPosition:
		res.Position.Steps = x3g.Steps{888, 0, 400, 0, 0}
	}
	return res, nil
}

func (d *fakeDevice) FirmwareVersion(ctx context.Context) (uint8, uint16, error) {
	return 0x80, 770, nil
}

func (d *fakeDevice) ReadEEPROM(ctx context.Context, addr uint16, n uint8) ([]byte, error) {
	return make([]byte, n), nil
}

func (d *fakeDevice) WriteEEPROM(ctx context.Context, addr uint16, data []byte) error {
	return nil
}

func newTestTranslator(t *testing.T, dev *fakeDevice) *Translator {
	t.Helper()
	log, _ := test.NewNullLogger()
	tr := NewTranslator(dev, machine.Default(), vm.Options{Log: log})
	require.Equal(t, "start", tr.Connect(context.Background()))
	return tr
}

func cancelled(op x3g.Opcode) func(cmd []byte) (*mightyboard.Response, error) {
	return func(cmd []byte) (*mightyboard.Response, error) {
		if x3g.Opcode(cmd[0]) == op {
			return nil, mightyboard.StatusError{Status: x3g.StatusCancelBuild}
		}
		return nil, nil
	}
}

func TestTranslator_Ok(t *testing.T) {
	ctx := context.Background()
	dev := newFakeDevice()
	tr := newTestTranslator(t, dev)

	out, err := tr.WriteLine(ctx, "M18")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, dev.count(x3g.OpSteppers))

	out, err = tr.WriteLine(ctx, "; just a comment")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestTranslator_Temperatures(t *testing.T) {
	dev := newFakeDevice()
	tr := newTestTranslator(t, dev)

	out, err := tr.WriteLine(context.Background(), "M105")
	require.NoError(t, err)
	assert.Equal(t, "ok T:210 /220 B:0 /0 @:0 B@:0", out)
}

func TestTranslator_WaitForExtruder(t *testing.T) {
	ctx := context.Background()
	dev := newFakeDevice()
	tr := newTestTranslator(t, dev)

	// the wait starts at once, so the host gets temperatures instead of ok
	out, err := tr.WriteLine(ctx, "M109 S220")
	require.NoError(t, err)
	assert.Equal(t, " T:210 /220 B:0 /0 @:0 B@:0", out)
	assert.Equal(t, WaitEmptyQueue|WaitExtruderA, tr.Waiting())
	assert.Equal(t, []string{"extruderA", "emptyQueue"}, tr.Waiting().Names())

	// still heating: temperatures, no ok
	out, err = tr.DoWait(ctx)
	require.NoError(t, err)
	assert.Equal(t, " T:210 /220 B:0 /0 @:0 B@:0", out)
	assert.Equal(t, WaitExtruderA, tr.Waiting())

	dev.toolReady = true
	out, err = tr.DoWait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Zero(t, tr.Waiting())
}

func TestTranslator_DeviceCancel(t *testing.T) {
	ctx := context.Background()
	dev := newFakeDevice()
	dev.respond = cancelled(x3g.OpSteppers)
	tr := newTestTranslator(t, dev)

	out, err := tr.WriteLine(ctx, "M18")
	assert.True(t, mightyboard.IsCancel(err))
	assert.Equal(t, "ok\nBuild cancelled", out)
	assert.True(t, tr.Cancelling())
	assert.Zero(t, tr.Machine().Known()&coord.XYZ)

	// queued commands are dropped until the host acknowledges
	n := dev.count(x3g.OpSteppers)
	_, err = tr.WriteLine(ctx, "M17")
	require.NoError(t, err)
	assert.Equal(t, n, dev.count(x3g.OpSteppers))

	_, err = tr.WriteLine(ctx, ";@clear_cancel")
	require.NoError(t, err)
	assert.False(t, tr.Cancelling())
}

func TestTranslator_HostAbort(t *testing.T) {
	ctx := context.Background()
	dev := newFakeDevice()
	tr := newTestTranslator(t, dev)
	tr.HostEvents = true
	dev.build = mightyboard.BuildRunning

	_, err := tr.Abort(ctx)
	require.NoError(t, err)
	assert.True(t, tr.Waiting().Has(WaitBotCancel))
	assert.True(t, tr.Cancelling())

	dev.build = mightyboard.BuildCancelled
	out, err := tr.DoWait(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Zero(t, tr.Waiting())
	assert.False(t, tr.Cancelling())
}

func TestTranslator_Files(t *testing.T) {
	ctx := context.Background()
	dev := newFakeDevice()
	dev.files = []string{"a.x3g", "B.X3G"}
	tr := newTestTranslator(t, dev)

	out, err := tr.WriteLine(ctx, "M20")
	require.NoError(t, err)
	assert.Equal(t, "ok\nBegin file list\na.x3g", out)
	require.True(t, tr.ListingFiles())

	assert.Equal(t, "B.X3G", tr.NextFile(ctx))
	assert.Equal(t, "End file list", tr.NextFile(ctx))
	assert.False(t, tr.ListingFiles())

	out, err = tr.WriteLine(ctx, "M23 b.x3g")
	require.NoError(t, err)
	assert.Equal(t, "ok\nFile opened:B.X3G Size:0\nFile selected:B.X3G", out)
	assert.Equal(t, "B.X3G", tr.Machine().SelectedFile())
}

func TestTranslator_Version(t *testing.T) {
	dev := newFakeDevice()
	tr := newTestTranslator(t, dev)

	out, err := tr.WriteLine(context.Background(), "M115")
	require.NoError(t, err)
	assert.Contains(t, out, "FIRMWARE_NAME:Sailfish FIRMWARE_VERSION:7.70")
	assert.Contains(t, out, "MACHINE_TYPE:r2 EXTRUDER_COUNT:1")
}

func TestTranslator_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("overheat", func(t *testing.T) {
		dev := newFakeDevice()
		dev.respond = func(cmd []byte) (*mightyboard.Response, error) {
			return nil, mightyboard.StatusError{Status: x3g.StatusBotOverheat}
		}
		tr := newTestTranslator(t, dev)
		out, err := tr.WriteLine(ctx, "M18")
		assert.Error(t, err)
		assert.Equal(t, "Error: RC_BOT_OVERHEAT Printer reports overheat condition", out)
	})

	t.Run("buffer full", func(t *testing.T) {
		dev := newFakeDevice()
		dev.respond = func(cmd []byte) (*mightyboard.Response, error) {
			return nil, mightyboard.StatusError{Status: x3g.StatusBufferOverflow}
		}
		tr := newTestTranslator(t, dev)
		out, _ := tr.WriteLine(ctx, "M18")
		assert.Equal(t, "Status: Buffer full", out)
		assert.True(t, tr.Waiting().Has(WaitBuffer))
		tr.ClearBufferWait()
		assert.Zero(t, tr.Waiting())
	})

	t.Run("timeout", func(t *testing.T) {
		dev := newFakeDevice()
		dev.respond = func(cmd []byte) (*mightyboard.Response, error) {
			return nil, &mightyboard.IOError{Kind: mightyboard.KindTimeout}
		}
		tr := newTestTranslator(t, dev)
		out, err := tr.WriteLine(ctx, "M18")
		assert.Error(t, err)
		assert.Equal(t, "Error: Timeout on X3G port", out)
	})

	t.Run("heat shutdown", func(t *testing.T) {
		dev := newFakeDevice()
		tr := newTestTranslator(t, dev)
		err := tr.boardStatus(mightyboard.BoardHeatShutdown)
		assert.True(t, mightyboard.IsCancel(err))
		assert.Contains(t, tr.take(), "Heaters were shutdown")
	})
}

func TestWait_Names(t *testing.T) {
	w := WaitBuffer | WaitCancelSync
	assert.Equal(t, []string{"buffer", "cancelSync"}, w.Names())
	assert.Equal(t, "buffer,cancelSync", w.String())
	assert.True(t, w.Has(WaitBuffer))
	assert.False(t, w.Has(WaitBuffer|WaitStart))
	assert.Empty(t, Wait(0).Names())
}
