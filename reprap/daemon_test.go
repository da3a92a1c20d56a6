package reprap

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mastercactapus/gpx/machine/mightyboard"
	"github.com/mastercactapus/gpx/x3g"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDaemon(t *testing.T, dev *fakeDevice) (*Daemon, chan error) {
	t.Helper()
	log, _ := test.NewNullLogger()
	d := NewDaemon(newTestTranslator(t, dev), log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d, done
}

func TestDaemon_Submit(t *testing.T) {
	d, _ := startDaemon(t, newFakeDevice())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := d.Submit(ctx, "M105")
	require.NoError(t, err)
	assert.Equal(t, "ok T:210 /220 B:0 /0 @:0 B@:0", out)

	st := d.Status()
	assert.Equal(t, "ready", st.State)
	assert.Equal(t, "XYZA", st.Unknown)
	assert.Empty(t, st.Waiting)
	assert.False(t, st.Cancelling)
}

func TestDaemon_Abort(t *testing.T) {
	dev := newFakeDevice()
	d, _ := startDaemon(t, dev)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := d.Abort(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dev.count(x3g.OpAbort))
	assert.Empty(t, d.Status().Waiting)
}

func TestDaemon_Disconnected(t *testing.T) {
	dev := newFakeDevice()
	dev.respond = func(cmd []byte) (*mightyboard.Response, error) {
		return nil, &mightyboard.IOError{Kind: mightyboard.KindWrite}
	}
	d, done := startDaemon(t, dev)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := d.Submit(ctx, "M18")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "Error: GPX shutting down, printer disconnected."))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDisconnected)
		done <- err
	case <-ctx.Done():
		t.Fatal("daemon kept running")
	}
}

func TestDaemon_Attach(t *testing.T) {
	d, _ := startDaemon(t, newFakeDevice())
	host, gpx := net.Pipe()
	defer host.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = d.Attach(ctx, gpx) }()

	require.NoError(t, host.SetDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 256)
	n, err := host.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "start\n", string(buf[:n]))

	_, err = host.Write([]byte("M18\n"))
	require.NoError(t, err)
	n, err = host.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(buf[:n]))
}

func TestDaemon_Websocket(t *testing.T) {
	dev := newFakeDevice()
	d, _ := startDaemon(t, dev)
	srv := httptest.NewServer(ServeWebsocket(d))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "start", string(msg))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("M18\nM17\n")))
	for i := 0; i < 2; i++ {
		_, msg, err = ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "ok", string(msg))
	}
	assert.Eventually(t, func() bool { return d.Status().State == "ready" }, time.Second, 10*time.Millisecond)
}
