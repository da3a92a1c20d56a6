package x3g

import (
	"bytes"
	"testing"

	"github.com/mastercactapus/gpx/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ frames [][]byte }

func (r *recorder) Send(frame []byte) error {
	r.frames = append(r.frames, append([]byte(nil), frame...))
	return nil
}

func TestEncoder_Framing(t *testing.T) {
	rec := &recorder{}
	e := NewEncoder(rec, true)

	require.NoError(t, e.Delay(1000))
	require.Len(t, rec.frames, 1)
	assert.Equal(t, []byte{0xD5, 5, 133, 0xE8, 3, 0, 0, 0xA8}, rec.frames[0])
	assert.Equal(t, int64(8), e.Count())

	require.NoError(t, e.Empty())
	require.Len(t, rec.frames, 2)
	assert.Empty(t, rec.frames[1])
	assert.Equal(t, int64(8), e.Count())

	assert.Equal(t, rec.frames[0], Frame([]byte{133, 0xE8, 3, 0, 0}))
}

func TestEncoder_Unframed(t *testing.T) {
	rec := &recorder{}
	e := NewEncoder(rec, false)

	require.NoError(t, e.SetNozzleTemperature(1, 220))
	require.NoError(t, e.SetSteppers(coord.XYZ, true))
	require.NoError(t, e.PauseAtZ(1.5))
	require.NoError(t, e.HomeAxes(true, coord.AxisX|coord.AxisY, 500, 20))

	assert.Equal(t, []byte{136, 1, 3, 2, 220, 0}, rec.frames[0])
	assert.Equal(t, []byte{137, 0x87}, rec.frames[1])
	assert.Equal(t, []byte{158, 0x00, 0x00, 0xC0, 0x3F}, rec.frames[2])
	assert.Equal(t, []byte{132, 3, 0xF4, 1, 0, 0, 20, 0}, rec.frames[3])
}

func TestEncoder_QueuePoints(t *testing.T) {
	rec := &recorder{}
	e := NewEncoder(rec, false)

	require.NoError(t, e.QueueExtendedPoint(Steps{1, -1, 0, 0, 0}, 100, coord.AB, 2.5, 20))
	f := rec.frames[0]
	// op, 5 steps, rate, relative axes, distance, feedrate
	require.Len(t, f, 1+5*4+4+1+4+2)
	assert.Equal(t, byte(155), f[0])
	assert.Equal(t, []byte{1, 0, 0, 0}, f[1:5])
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, f[5:9])
	assert.Equal(t, []byte{100, 0, 0, 0}, f[21:25])
	assert.Equal(t, byte(coord.AB), f[25])
	assert.Equal(t, []byte{0x00, 0x00, 0x20, 0x40}, f[26:30])
	assert.Equal(t, []byte{0x00, 0x05}, f[30:32])
	d := NewDecoder(f[1:])
	assert.Equal(t, int32(1), d.I32())
	assert.Equal(t, int32(-1), d.I32())
	d.I32()
	d.I32()
	d.I32()
	assert.Equal(t, uint32(100), d.U32())
	assert.Equal(t, uint8(coord.AB), d.U8())
	assert.Equal(t, float32(2.5), d.F32())
	assert.Equal(t, uint16(1280), d.U16())
	assert.NoError(t, d.Err)
}

func TestEncoder_DisplayMessage(t *testing.T) {
	rec := &recorder{}
	e := NewEncoder(rec, false)

	msg := "0123456789012345678901234567890123456789"
	require.NoError(t, e.DisplayMessage(msg, 0, 0, 5, true))
	require.Len(t, rec.frames, 2)
	assert.Equal(t, []byte{149, 0x00, 0, 0, 0}, rec.frames[0][:5])
	assert.Equal(t, append([]byte(msg[:20]), 0), rec.frames[0][5:])
	assert.Equal(t, []byte{149, 0x07, 0, 0, 5}, rec.frames[1][:5])

	rec.frames = nil
	require.NoError(t, e.DisplayMessage(msg, 1, 15, 0, false))
	require.Len(t, rec.frames, 1)
	assert.Equal(t, []byte{149, 0x03, 15, 1, 0, '0', '1', '2', '3', '4', 0}, rec.frames[0])
}

func TestEncoder_StartBuild(t *testing.T) {
	rec := &recorder{}
	e := NewEncoder(rec, false)
	require.NoError(t, e.StartBuild("a very long build name that is clipped"))
	assert.Len(t, rec.frames[0], 1+4+24+1)

	require.NoError(t, e.StartBuild(""))
	assert.Equal(t, append([]byte{153, 0, 0, 0, 0}, append([]byte(DefaultBuildName), 0)...), rec.frames[1])
}

func TestReader_ReadFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x12})
	buf.Write(Frame([]byte{0x81, 1, 2}))
	bad := Frame([]byte{0x81})
	bad[len(bad)-1] ^= 0xFF
	buf.Write(bad)

	r := NewReader(&buf)
	p, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 1, 2}, p)

	_, err = r.ReadFrame()
	assert.Equal(t, ErrCRC, err)

	_, err = r.ReadFrame()
	assert.Equal(t, ErrTimeout, err)

	r = NewReader(bytes.NewReader([]byte{0xD5, 4, 0x81}))
	_, err = r.ReadFrame()
	assert.Equal(t, ErrShort, err)
}

func TestDisassemble(t *testing.T) {
	var out bytes.Buffer
	e := NewEncoder(SinkFunc(func(f []byte) error {
		out.Write(f)
		return nil
	}), false)
	require.NoError(t, e.StartBuild("cube"))
	require.NoError(t, e.SetNozzleTemperature(0, 200))
	require.NoError(t, e.Delay(50))
	require.NoError(t, e.EndBuild())

	var text bytes.Buffer
	require.NoError(t, Disassemble(&out, &text, false))
	assert.Equal(t, "0: [153] start build: 'cube'\n"+
		"1: [136] tool action: tool 0 action 3 = 200\n"+
		"2: [133] delay: 50 ms\n"+
		"3: [154] end build\n", text.String())

	err := Disassemble(bytes.NewReader([]byte{200}), &text, false)
	assert.ErrorIs(t, err, ErrUnknownOpcode)
}
