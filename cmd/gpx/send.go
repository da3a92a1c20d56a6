package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mastercactapus/gpx/machine/mightyboard"
	"github.com/mastercactapus/gpx/vm"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var sendCmd = &cli.Command{
	Name:      "send",
	Usage:     "translate a G-code file and print it over USB serial",
	ArgsUsage: "IN",
	Flags:     append(append([]cli.Flag{}, serialFlags...), translateFlags...),
	Action: func(c *cli.Context) error {
		in := c.Args().First()
		if in == "" {
			return cli.Exit("missing input file", 1)
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

		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()

		opts.Framing = true
		opts.Online = true
		opts.Device = conn
		if opts.BuildName == "" {
			opts.BuildName = buildName(in)
		}
		m := vm.New(p, opts)
		m.StartConvert("")

		conn.WithContext(c.Context)
		start := time.Now()
		err = m.Convert(c.Context, f, conn)
		if errors.Is(err, context.Canceled) {
			logrus.Warn("interrupted, aborting the build")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := conn.Abort(ctx); err != nil {
				logrus.WithError(err).Error("abort")
			}
			return err
		}
		if err != nil && !errors.Is(err, vm.ErrEndOfFile) {
			if res := conn.Last(); res != nil {
				logrus.WithField("status", res.Status.String()).Error("last device response")
			}
			return fmt.Errorf("send: %w", err)
		}

		sent, received := conn.Counters()
		logrus.WithFields(logrus.Fields{
			"sent":     sent,
			"received": received,
			"elapsed":  time.Since(start).Round(time.Second).String(),
		}).Info("sent")
		return nil
	},
}

// dial opens the printer named by the serial flags.
func dial(c *cli.Context) (*mightyboard.Conn, error) {
	conn, err := mightyboard.Open(mightyboard.Config{
		Port: c.String("port"),
		Baud: c.Int("baud"),
		Log:  logrus.StandardLogger(),
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}
