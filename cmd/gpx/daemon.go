package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mastercactapus/gpx/reprap"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var daemonCmd = &cli.Command{
	Name:  "daemon",
	Usage: "act as a RepRap printer for host software, translating each line as it arrives",
	Flags: append(append([]cli.Flag{
		&cli.BoolFlag{Name: "stdio", Aliases: []string{"i"}, Usage: "read G-code from stdin and reply on stdout"},
		&cli.StringFlag{Name: "tcp", Usage: "accept host connections on `ADDR`"},
		&cli.StringFlag{Name: "http", Usage: "serve the status API, event stream, and websocket on `ADDR`"},
	}, serialFlags...), translateFlags...),
	Action: func(c *cli.Context) error {
		if !c.Bool("stdio") && c.String("tcp") == "" && c.String("http") == "" {
			return cli.Exit("at least one of --stdio, --tcp, or --http is required", 1)
		}
		p, opts, err := loadProfile(c)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		conn, err := dial(c)
		if err != nil {
			return err
		}
		defer conn.Close()

		log := logrus.WithField("port", c.String("port"))
		d := reprap.NewDaemon(reprap.NewTranslator(conn, p, opts), log)

		g, ctx := errgroup.WithContext(c.Context)

		if addr := c.String("http"); addr != "" {
			a := newAPI(d)
			defer a.Close()
			srv := &http.Server{Addr: addr, Handler: withAccessLog(a)}
			g.Go(func() error {
				log.WithField("addr", addr).Info("serving http")
				err := srv.ListenAndServe()
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(sctx)
			})
		}

		if addr := c.String("tcp"); addr != "" {
			l, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			g.Go(func() error {
				<-ctx.Done()
				return l.Close()
			})
			g.Go(func() error { return acceptHosts(ctx, l, d) })
		}

		if c.Bool("stdio") {
			g.Go(func() error {
				err := d.Attach(ctx, stdio{})
				if err == nil {
					// the host closed stdin
					return context.Canceled
				}
				return err
			})
		}

		g.Go(func() error { return d.Run(ctx) })

		err = g.Wait()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func acceptHosts(ctx context.Context, l net.Listener, d *reprap.Daemon) error {
	for {
		nc, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		log := logrus.WithField("remote", nc.RemoteAddr().String())
		log.Info("host connected")
		go func() {
			defer nc.Close()
			err := d.Attach(ctx, nc)
			if err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("host connection")
			}
			log.Info("host disconnected")
		}()
	}
}

type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

var _ io.ReadWriter = stdio{}
