package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mastercactapus/gpx/vm"
	"github.com/mastercactapus/gpx/x3g"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var convertCmd = &cli.Command{
	Name:      "convert",
	Usage:     "translate a G-code file to an x3g file",
	ArgsUsage: "IN [OUT]",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{Name: "framing", Aliases: []string{"F"}, Usage: "write x3g on-wire framing data to the output file"},
		&cli.BoolFlag{Name: "truncate", Aliases: []string{"t"}, Usage: "truncate the output filename (DOS 8.3 format)"},
	}, translateFlags...),
	Action: func(c *cli.Context) error {
		in := c.Args().First()
		if in == "" {
			return cli.Exit("missing input file", 1)
		}
		p, opts, err := loadProfile(c)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		opts.Framing = c.Bool("framing")

		out := c.Args().Get(1)
		if out == "" {
			if in == "-" {
				out = "-"
			} else {
				out = outputName(in, c.Bool("truncate"))
				if opts.SDCardPath != "" {
					out = filepath.Join(opts.SDCardPath, filepath.Base(out))
				}
			}
		}
		if opts.BuildName == "" && in != "-" {
			opts.BuildName = buildName(in)
		}

		return convertFile(c, in, out, vm.New(p, opts))
	},
}

func convertFile(c *cli.Context, in, out string, m *vm.Machine) error {
	log := logrus.WithFields(logrus.Fields{"in": in, "out": out})

	// pipes cannot be read twice
	var r io.Reader = bufio.NewReader(os.Stdin)
	if in != "-" {
		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var w io.Writer = os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)

	m.StartConvert("")
	err := m.Convert(c.Context, r, x3g.SinkFunc(func(frame []byte) error {
		_, err := bw.Write(frame)
		return err
	}))
	if err != nil && !errors.Is(err, vm.ErrEndOfFile) {
		return fmt.Errorf("convert: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	s := m.Summary()
	log.WithFields(logrus.Fields{
		"bytes":    s.Bytes,
		"time":     s.Time.String(),
		"filament": fmt.Sprintf("%.3fm", s.Length/1000),
	}).Info("converted")
	return nil
}
