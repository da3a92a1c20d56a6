package mightyboard

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/mastercactapus/gpx/x3g"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice answers each write with the next scripted reply. A nil reply
// leaves nothing to read, which looks like a timeout.
type fakeDevice struct {
	replies [][]byte
	written [][]byte
	out     bytes.Buffer
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.written = append(d.written, append([]byte(nil), p...))
	if len(d.replies) > 0 {
		if r := d.replies[0]; r != nil {
			d.out.Write(r)
		}
		d.replies = d.replies[1:]
	}
	return len(p), nil
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	if d.out.Len() == 0 {
		return 0, nil
	}
	return d.out.Read(p)
}

func reply(status x3g.Status, payload ...byte) []byte {
	return x3g.Frame(append([]byte{byte(status)}, payload...))
}

func newTestConn(dev *fakeDevice) (*Conn, *[]time.Duration) {
	log, _ := test.NewNullLogger()
	c := NewConn(dev, log)
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

func TestConn_EmptyFrame(t *testing.T) {
	dev := &fakeDevice{}
	c, _ := newTestConn(dev)

	require.NoError(t, c.Send(nil))
	assert.Empty(t, dev.written)
}

func TestConn_RetryThenSuccess(t *testing.T) {
	dev := &fakeDevice{replies: [][]byte{
		reply(x3g.StatusGenericError),
		reply(x3g.StatusCRCMismatch),
		reply(x3g.StatusSuccess),
	}}
	c, slept := newTestConn(dev)

	frame := x3g.Frame([]byte{byte(x3g.OpDelay), 0xE8, 3, 0, 0})
	require.Nil(t, c.Last())
	require.NoError(t, c.Send(frame))
	require.NotNil(t, c.Last())
	assert.Equal(t, x3g.StatusSuccess, c.Last().Status)
	assert.Len(t, dev.written, 3)
	for _, w := range dev.written {
		assert.Equal(t, frame, w)
	}
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *slept)
}

func TestConn_RetryGivesUp(t *testing.T) {
	var replies [][]byte
	for i := 0; i < 10; i++ {
		replies = append(replies, reply(x3g.StatusPacketTimeout))
	}
	dev := &fakeDevice{replies: replies}
	c, _ := newTestConn(dev)

	err := c.Send(x3g.Frame([]byte{byte(x3g.OpDelay), 1, 0, 0, 0}))
	var se StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, x3g.StatusPacketTimeout, se.Status)
	assert.Len(t, dev.written, defaultRetries)
	assert.True(t, IsRetryable(err))
}

func TestConn_Abort(t *testing.T) {
	for _, s := range []x3g.Status{
		x3g.StatusQueryTooBig, x3g.StatusUnsupported, x3g.StatusDownstreamTO,
		x3g.StatusCancelBuild, x3g.StatusBotBuilding, x3g.StatusBotOverheat,
	} {
		t.Run(s.String(), func(t *testing.T) {
			dev := &fakeDevice{replies: [][]byte{reply(s)}}
			c, slept := newTestConn(dev)

			err := c.Send(x3g.Frame([]byte{byte(x3g.OpEndBuild)}))
			var se StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, s, se.Status)
			assert.Len(t, dev.written, 1)
			assert.Empty(t, *slept)
			assert.Equal(t, s == x3g.StatusCancelBuild, IsCancel(err))
		})
	}
}

func TestConn_Timeout(t *testing.T) {
	dev := &fakeDevice{replies: [][]byte{nil}}
	c, _ := newTestConn(dev)

	_, err := c.IsReady(context.Background())
	var ioe *IOError
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, KindTimeout, ioe.Kind)
	assert.False(t, IsRetryable(err))
}

func TestConn_BadCRCResends(t *testing.T) {
	bad := reply(x3g.StatusSuccess, 1)
	bad[len(bad)-1] ^= 0xFF
	dev := &fakeDevice{replies: [][]byte{bad, reply(x3g.StatusSuccess, 1)}}
	c, slept := newTestConn(dev)

	ready, err := c.IsReady(context.Background())
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Len(t, dev.written, 2)
	assert.Equal(t, []time.Duration{defaultRetryDelay}, *slept)
}

func TestConn_BufferOverflow(t *testing.T) {
	frame := x3g.Frame([]byte{byte(x3g.OpDelay), 1, 0, 0, 0})
	free := func(n uint32) []byte {
		return reply(x3g.StatusSuccess, binary.LittleEndian.AppendUint32(nil, n)...)
	}

	t.Run("waits for room", func(t *testing.T) {
		dev := &fakeDevice{replies: [][]byte{
			reply(x3g.StatusBufferOverflow),
			free(2),
			free(64),
			reply(x3g.StatusSuccess),
		}}
		c, slept := newTestConn(dev)

		require.NoError(t, c.Send(frame))
		require.Len(t, dev.written, 4)
		assert.Equal(t, byte(x3g.OpBufferSize), dev.written[1][2])
		assert.Equal(t, frame, dev.written[3])
		assert.Equal(t, []time.Duration{shortPollInterval, shortPollInterval}, *slept)
	})

	t.Run("short retry gives up", func(t *testing.T) {
		replies := [][]byte{reply(x3g.StatusBufferOverflow)}
		for i := 0; i < shortPolls; i++ {
			replies = append(replies, free(0))
		}
		dev := &fakeDevice{replies: replies}
		c, _ := newTestConn(dev)
		c.ShortRetryOnly = true

		err := c.Send(frame)
		var se StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, x3g.StatusBufferOverflow, se.Status)
		assert.Len(t, dev.written, 1+shortPolls)
	})

	t.Run("counts against retries", func(t *testing.T) {
		var replies [][]byte
		for i := 0; i < 2*defaultRetries; i++ {
			replies = append(replies, reply(x3g.StatusBufferOverflow), free(0xFFFF))
		}
		dev := &fakeDevice{replies: replies}
		c, _ := newTestConn(dev)

		err := c.Send(frame)
		var se StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, x3g.StatusBufferOverflow, se.Status)

		var sent int
		for _, w := range dev.written {
			if bytes.Equal(w, frame) {
				sent++
			}
		}
		assert.Equal(t, defaultRetries, sent)
	})

	t.Run("disabled", func(t *testing.T) {
		dev := &fakeDevice{replies: [][]byte{reply(x3g.StatusBufferOverflow)}}
		c, _ := newTestConn(dev)
		c.RetryBufferOverflow = false

		err := c.Send(frame)
		status, ok := StatusOf(err)
		assert.True(t, ok)
		assert.Equal(t, x3g.StatusBufferOverflow, status)
	})
}

func TestConn_RetryLogged(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	dev := &fakeDevice{replies: [][]byte{reply(x3g.StatusToolLockTimeout), reply(x3g.StatusSuccess)}}
	c := NewConn(dev, log)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	require.NoError(t, c.Send(x3g.Frame([]byte{byte(x3g.OpEndBuild)})))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, 1, hook.LastEntry().Data["retry"])
	assert.Equal(t, x3g.StatusToolLockTimeout.String(), hook.LastEntry().Data["status"])
}

func TestConn_Queries(t *testing.T) {
	ctx := context.Background()

	t.Run("advanced version", func(t *testing.T) {
		dev := &fakeDevice{replies: [][]byte{reply(x3g.StatusSuccess, 0xF3, 0x01, 0, 0, 0x80, 0, 0, 0)}}
		c, _ := newTestConn(dev)
		variant, version, err := c.FirmwareVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint8(0x80), variant)
		assert.Equal(t, uint16(499), version)
	})

	t.Run("tool temperature", func(t *testing.T) {
		dev := &fakeDevice{replies: [][]byte{reply(x3g.StatusSuccess, 210, 0)}}
		c, _ := newTestConn(dev)
		res, err := c.ToolQuery(ctx, 1, x3g.ToolTemperature)
		require.NoError(t, err)
		assert.Equal(t, uint8(1), res.Tool)
		assert.Equal(t, x3g.ToolTemperature, res.Query)
		assert.Equal(t, uint16(210), res.Temperature)
	})

	t.Run("position", func(t *testing.T) {
		var p []byte
		for _, v := range []int32{100, -200, 300, 0, 5} {
			p = binary.LittleEndian.AppendUint32(p, uint32(v))
		}
		p = append(p, 0x03, 0)
		dev := &fakeDevice{replies: [][]byte{reply(x3g.StatusSuccess, p...)}}
		c, _ := newTestConn(dev)
		pos, err := c.ExtendedPosition(ctx)
		require.NoError(t, err)
		assert.Equal(t, x3g.Steps{100, -200, 300, 0, 5}, pos.Steps)
		assert.Equal(t, uint16(3), pos.Endstops)
	})

	t.Run("build statistics", func(t *testing.T) {
		dev := &fakeDevice{replies: [][]byte{reply(x3g.StatusSuccess, 3, 1, 2, 42, 0, 0, 0, 0, 0, 0, 0)}}
		c, _ := newTestConn(dev)
		st, err := c.BuildStatistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, BuildPaused, st.State)
		assert.Equal(t, uint32(42), st.Line)
		assert.Equal(t, "build paused", st.State.String())
	})

	t.Run("list files", func(t *testing.T) {
		dev := &fakeDevice{replies: [][]byte{
			reply(x3g.StatusSuccess, append([]byte{0}, "a.x3g\x00"...)...),
			reply(x3g.StatusSuccess, append([]byte{0}, "B.X3G\x00"...)...),
			reply(x3g.StatusSuccess, 0, 0),
		}}
		c, _ := newTestConn(dev)
		names, err := c.ListFiles(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.x3g", "B.X3G"}, names)
		assert.Equal(t, byte(1), dev.written[0][3])
		assert.Equal(t, byte(0), dev.written[1][3])
	})

	t.Run("eeprom", func(t *testing.T) {
		dev := &fakeDevice{replies: [][]byte{
			reply(x3g.StatusSuccess, 0x34, 0x12),
			reply(x3g.StatusSuccess, 2),
		}}
		c, _ := newTestConn(dev)
		b, err := c.ReadEEPROM(ctx, 0x100, 2)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x34, 0x12}, b)
		require.NoError(t, c.WriteEEPROM(ctx, 0x100, []byte{1, 2}))
	})
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "file not found", SDFileNotFound.String())
	assert.Equal(t, "unknown status", SDStatus(40).String())
	assert.Equal(t, "unknown status", BuildState(9).String())
}
