package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/mastercactapus/gpx/reprap"
	"github.com/sirupsen/logrus"
)

type api struct {
	http.Handler
	d   *reprap.Daemon
	sse *sse.Server
}

func newAPI(d *reprap.Daemon) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		d:       d,
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(io.Discard, "", 0),
		}),
	}

	r.HandleFunc("/api/status", a.status).Methods("GET")
	r.HandleFunc("/api/gcode", a.gcode).Methods("POST")
	r.HandleFunc("/api/abort", a.abort).Methods("POST")
	r.Handle("/ws", reprap.ServeWebsocket(d))
	r.PathPrefix("/events/").Handler(a.sse)

	d.OnStatus = a.publish
	return a
}

func (a *api) publish(s reprap.Status) {
	data, err := json.Marshal(s)
	if err != nil {
		logrus.WithError(err).Error("marshal status")
		return
	}
	a.sse.SendMessage("/events/status", sse.SimpleMessage(string(data)))
}

func (a *api) status(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(a.d.Status())
	if err != nil {
		logrus.WithError(err).Warn("encode status")
	}
}

func (a *api) gcode(w http.ResponseWriter, req *http.Request) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var replies []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out, err := a.d.Submit(req.Context(), line)
		if err != nil {
			logrus.WithError(err).WithField("line", line).Error("submit")
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if out != "" {
			replies = append(replies, out)
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, strings.Join(replies, "\n")+"\n")
}

func (a *api) abort(w http.ResponseWriter, req *http.Request) {
	out, err := a.d.Abort(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, out+"\n")
}

func (a *api) Close() { a.sse.Shutdown() }

// withAccessLog adds CORS headers and logs every request.
func withAccessLog(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		logrus.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
			"remote": req.RemoteAddr,
		}).Debug("http request")
		h.ServeHTTP(w, req)
	})
}
