package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mastercactapus/gpx/x3g"
	"github.com/urfave/cli/v2"
)

var dumpCmd = &cli.Command{
	Name:      "dump",
	Usage:     "print the commands in an x3g file",
	ArgsUsage: "IN",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "framed", Aliases: []string{"F"}, Usage: "the input carries on-wire framing"},
	},
	Action: func(c *cli.Context) error {
		in := c.Args().First()
		var r io.Reader = os.Stdin
		if in != "" && in != "-" {
			f, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer f.Close()
			r = f
		}

		w := bufio.NewWriter(os.Stdout)
		if err := x3g.Disassemble(r, w, c.Bool("framed")); err != nil {
			w.Flush()
			return err
		}
		return w.Flush()
	},
}
