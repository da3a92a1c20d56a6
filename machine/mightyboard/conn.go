package mightyboard

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/mastercactapus/gpx/x3g"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	defaultRetries    = 5
	defaultRetryDelay = 2 * time.Second

	shortPolls        = 20
	shortPollInterval = 10 * time.Millisecond
	longPollInterval  = 100 * time.Millisecond
)

// Conn is a connection to a Mightyboard class controller speaking framed
// x3g. Every command waits for its response before the next is sent.
type Conn struct {
	rw  io.ReadWriter
	r   *x3g.Reader
	sem *semaphore.Weighted
	log logrus.FieldLogger

	// Retries is the number of attempts made for a packet the device
	// asks to have resent.
	Retries    int
	RetryDelay time.Duration

	// RetryBufferOverflow waits for room in the device queue instead of
	// failing when it is full. With ShortRetryOnly the wait is kept brief
	// and the overflow is returned if it does not clear.
	RetryBufferOverflow bool
	ShortRetryOnly      bool

	// ctx is used by Send, which has no context of its own.
	ctx context.Context

	sleep func(ctx context.Context, d time.Duration) error

	bytesOut, bytesIn int64
	lastResponse      atomic.Pointer[Response]
}

// NewConn creates a new Conn using the provided ReadWriter for data. Reads
// from rw are expected to time out by returning no data.
func NewConn(rw io.ReadWriter, log logrus.FieldLogger) *Conn {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Conn{
		rw:                  rw,
		r:                   x3g.NewReader(rw),
		sem:                 semaphore.NewWeighted(1),
		log:                 log,
		Retries:             defaultRetries,
		RetryDelay:          defaultRetryDelay,
		RetryBufferOverflow: true,
		ctx:                 context.Background(),
		sleep:               sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close closes the underlying ReadWriter, if it implements io.Closer.
func (c *Conn) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// WithContext sets the context used by Send.
func (c *Conn) WithContext(ctx context.Context) { c.ctx = ctx }

// Counters returns the bytes written to and read from the device.
func (c *Conn) Counters() (out, in int64) {
	return atomic.LoadInt64(&c.bytesOut), atomic.LoadInt64(&c.bytesIn)
}

// Last returns the response to the most recent command, or nil.
func (c *Conn) Last() *Response { return c.lastResponse.Load() }

// Send implements x3g.Sink. Empty frames succeed without touching the
// device.
func (c *Conn) Send(frame []byte) error {
	_, err := c.SendContext(c.ctx, frame)
	return err
}

// SendContext sends a framed command and returns the decoded response.
func (c *Conn) SendContext(ctx context.Context, frame []byte) (*Response, error) {
	if len(frame) == 0 {
		return &Response{Status: x3g.StatusSuccess}, nil
	}
	err := c.sem.Acquire(ctx, 1)
	if err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	res, err := c.exchange(ctx, frame)
	if res != nil {
		c.lastResponse.Store(res)
	}
	return res, err
}

// command returns the payload of a framed packet.
func command(frame []byte) []byte {
	if len(frame) < 3 || frame[0] != x3g.SyncByte {
		return frame
	}
	n := int(frame[1])
	if 2+n > len(frame) {
		return frame[2:]
	}
	return frame[2 : 2+n]
}

func (c *Conn) roundTrip(frame []byte) ([]byte, error) {
	n, err := c.rw.Write(frame)
	atomic.AddInt64(&c.bytesOut, int64(n))
	if err != nil {
		return nil, &IOError{Kind: KindWrite, Err: err}
	}
	p, err := c.r.ReadFrame()
	switch {
	case err == nil:
		atomic.AddInt64(&c.bytesIn, int64(len(p)+3))
		return p, nil
	case errors.Is(err, x3g.ErrTimeout):
		return nil, &IOError{Kind: KindTimeout, Err: err}
	case errors.Is(err, x3g.ErrCRC):
		return nil, &IOError{Kind: KindCRC, Err: err}
	case errors.Is(err, x3g.ErrShort):
		return nil, &IOError{Kind: KindFrame, Err: err}
	}
	return nil, &IOError{Kind: KindRead, Err: err}
}

func (c *Conn) exchange(ctx context.Context, frame []byte) (*Response, error) {
	cmd := command(frame)
	log := c.log
	if len(cmd) > 0 {
		log = log.WithField("command", x3g.Opcode(cmd[0]).String())
	}

	attempt := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := c.roundTrip(frame)
		if err != nil {
			var ioe *IOError
			if errors.As(err, &ioe) && ioe.Kind == KindCRC && attempt < c.Retries {
				log.WithError(err).WithField("retry", attempt).Debug("garbled response, resending")
				attempt++
				if err := c.sleep(ctx, c.RetryDelay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}
		if len(p) == 0 {
			return nil, &IOError{Kind: KindFrame, Err: x3g.ErrShort}
		}

		status := x3g.Status(p[0])
		switch {
		case status == x3g.StatusSuccess:
			return decode(cmd, p)

		case status == x3g.StatusBufferOverflow:
			if !c.RetryBufferOverflow {
				return &Response{Status: status}, StatusError{Status: status}
			}
			if attempt >= c.Retries {
				return &Response{Status: status}, StatusError{Status: status}
			}
			err = c.waitForRoom(ctx, len(frame))
			if err != nil {
				return &Response{Status: status}, err
			}
			log.WithField("retry", attempt).Debug("device queue has room, resending")
			attempt++

		case status.Retryable() && attempt < c.Retries:
			log.WithFields(logrus.Fields{"retry": attempt, "status": status.String()}).Debug("device asked for resend")
			attempt++
			if err := c.sleep(ctx, c.RetryDelay); err != nil {
				return nil, err
			}

		default:
			res := &Response{Status: status}
			if len(cmd) > 0 {
				res.Command = x3g.Opcode(cmd[0])
			}
			return res, StatusError{Status: status}
		}
	}
}

// waitForRoom polls the device until its queue can hold n bytes.
func (c *Conn) waitForRoom(ctx context.Context, n int) error {
	var enc x3g.Encoder
	var query []byte
	enc.Framing = true
	enc.Sink = x3g.SinkFunc(func(frame []byte) error {
		query = append(query[:0], frame...)
		return nil
	})
	_ = enc.BufferSize()

	for i := 0; ; i++ {
		interval := shortPollInterval
		if i >= shortPolls {
			if c.ShortRetryOnly {
				return StatusError{Status: x3g.StatusBufferOverflow}
			}
			interval = longPollInterval
		}
		if err := c.sleep(ctx, interval); err != nil {
			return err
		}
		res, err := c.exchange(ctx, query)
		if err != nil {
			return err
		}
		if res.BufferSize >= uint32(n) {
			return nil
		}
		c.log.WithField("free", res.BufferSize).Debug("device queue full")
	}
}
