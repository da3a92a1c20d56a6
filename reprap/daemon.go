package reprap

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mastercactapus/gpx/gcode"
	"github.com/mastercactapus/gpx/machine/mightyboard"
	"github.com/sirupsen/logrus"
)

// ErrDisconnected is returned by Run when the device goes away.
var ErrDisconnected = errors.New("printer disconnected")

// waitPoll is how long the wait loop listens for a new line between polls.
const waitPoll = time.Second

// Status is a snapshot of the daemon for status reporting.
type Status struct {
	State    string   `json:"state"`
	Known    string   `json:"known"`
	Unknown  string   `json:"unknown"`
	Percent  int      `json:"percent"`
	Line     int      `json:"line"`
	Waiting  []string `json:"waiting"`
	Position struct {
		X, Y, Z, A, B float64
	} `json:"position"`
	Cancelling bool `json:"cancelling"`
}

type request struct {
	line  string
	reply func(s string)
	done  chan struct{}

	// oneshot requesters only take the immediate reply
	oneshot bool
	// abort is an out of band cancel rather than a line
	abort bool
}

// Daemon feeds lines from any number of upstreams through one Translator.
// Replies go back to the upstream that sent the line; replies produced
// while waiting go to the most recent sender.
type Daemon struct {
	t   *Translator
	log logrus.FieldLogger

	in chan request

	// OnStatus, if set, is called after every line and wait poll.
	OnStatus func(Status)

	mx     sync.Mutex
	status Status
}

// NewDaemon returns a Daemon driving t.
func NewDaemon(t *Translator, log logrus.FieldLogger) *Daemon {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Daemon{
		t:   t,
		log: log,
		in:  make(chan request),
	}
}

// Status returns the state after the last line or wait poll.
func (d *Daemon) Status() Status {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.status
}

func (d *Daemon) updateStatus() {
	m := d.t.Machine()
	var s Status
	s.State = m.State().String()
	s.Known = m.Known().String()
	s.Unknown = m.Unknown().String()
	s.Percent = m.Percent()
	s.Line = m.Line()
	s.Waiting = d.t.Waiting().Names()
	s.Cancelling = d.t.Cancelling()
	p := m.Position()
	s.Position.X, s.Position.Y, s.Position.Z, s.Position.A, s.Position.B = p.X, p.Y, p.Z, p.A, p.B

	d.mx.Lock()
	d.status = s
	d.mx.Unlock()
	if d.OnStatus != nil {
		d.OnStatus(s)
	}
}

// Submit queues a line as if from an upstream and returns the immediate
// reply.
func (d *Daemon) Submit(ctx context.Context, line string) (string, error) {
	return d.submit(ctx, request{line: line})
}

func (d *Daemon) submit(ctx context.Context, req request) (string, error) {
	var b strings.Builder
	req.reply = func(s string) { b.WriteString(s) }
	req.done = make(chan struct{})
	req.oneshot = true
	select {
	case d.in <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case <-req.done:
		return b.String(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Attach reads lines from rw until it fails, answering on rw. The
// greeting is written first.
func (d *Daemon) Attach(ctx context.Context, rw io.ReadWriter) error {
	var wmx sync.Mutex
	reply := func(s string) {
		wmx.Lock()
		defer wmx.Unlock()
		_, err := io.WriteString(rw, s+"\n")
		if err != nil {
			d.log.WithError(err).Warn("write upstream")
		}
	}
	reply("start")

	s := bufio.NewScanner(rw)
	s.Buffer(make([]byte, gcode.BufferMax+1), 64*1024)
	for s.Scan() {
		req := request{line: s.Text(), reply: reply, done: make(chan struct{})}
		select {
		case d.in <- req:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-req.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Err()
}

// Run connects the translator and serves lines until ctx is done or the
// device is lost.
func (d *Daemon) Run(ctx context.Context) error {
	d.t.Connect(ctx)
	d.updateStatus()
	d.log.Info("gpx connected")

	var reply func(string)
	send := func(s string) {
		if s == "" {
			return
		}
		if reply == nil {
			d.log.WithField("reply", s).Debug("no upstream for reply")
			return
		}
		reply(s)
	}

	for {
		var req request
		d.t.ClearBufferWait()

		if d.t.Waiting() != 0 {
			out, err := d.t.DoWait(ctx)
			if err != nil {
				d.log.WithError(err).Warn("wait test failed")
			}
			send(out)
			d.updateStatus()
			if lost(err) {
				return ErrDisconnected
			}

			t := time.NewTimer(waitPoll)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
				continue
			case req = <-d.in:
				t.Stop()
			}
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case req = <-d.in:
			}
		}

		reply = req.reply
		var out string
		var err error
		if req.abort {
			d.log.Info("host abort")
			out, err = d.t.Abort(ctx)
		} else {
			d.log.WithField("line", req.line).Debug("read a line")
			out, err = d.t.WriteLine(ctx, req.line)
		}
		send(out)
		if lost(err) {
			send("Error: GPX shutting down, printer disconnected.")
			close(req.done)
			return ErrDisconnected
		}

		for d.t.ListingFiles() {
			send(d.t.NextFile(ctx))
		}
		if d.t.TakeWaitClearedByCancel() {
			d.log.Debug("adding ok for wait cleared by cancel")
			send("ok")
		}
		d.updateStatus()
		close(req.done)
		if req.oneshot {
			reply = nil
		}
	}
}

// Abort passes the host's cancel request to the translator between
// lines.
func (d *Daemon) Abort(ctx context.Context) (string, error) {
	return d.submit(ctx, request{abort: true})
}

func lost(err error) bool {
	var ioe *mightyboard.IOError
	return errors.As(err, &ioe) && (ioe.Kind == mightyboard.KindOS || ioe.Kind == mightyboard.KindWrite)
}
