package reprap

import (
	"bytes"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeWebsocket returns a handler that accepts host connections over a
// websocket. Every text message holds one or more G-code lines, and every
// reply is sent back as its own message.
func ServeWebsocket(d *Daemon) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			d.log.WithError(err).Warn("websocket upgrade")
			return
		}
		defer ws.Close()
		log := d.log.WithField("remote", req.RemoteAddr)
		log.Info("websocket upstream connected")

		var mx sync.Mutex
		reply := func(s string) {
			mx.Lock()
			defer mx.Unlock()
			err := ws.WriteMessage(websocket.TextMessage, []byte(s))
			if err != nil {
				log.WithError(err).Warn("write websocket")
			}
		}
		reply("start")

		ctx := req.Context()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WithError(err).Warn("read websocket")
				}
				return
			}
			for _, line := range bytes.Split(bytes.TrimRight(data, "\r\n"), []byte("\n")) {
				r := request{
					line:  string(bytes.TrimRight(line, "\r")),
					reply: reply,
					done:  make(chan struct{}),
				}
				select {
				case d.in <- r:
				case <-ctx.Done():
					return
				}
				select {
				case <-r.done:
				case <-ctx.Done():
					return
				}
			}
		}
	})
}
