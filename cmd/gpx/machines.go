package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mastercactapus/gpx/machine"
	"github.com/urfave/cli/v2"
)

var machinesCmd = &cli.Command{
	Name:  "machines",
	Usage: "list the built-in machine types",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "yaml", Usage: "write the `TYPE` profile as YAML, for use with --machine-yaml"},
	},
	Action: func(c *cli.Context) error {
		if name := c.String("yaml"); name != "" {
			p, ok := machine.Lookup(name)
			if !ok {
				return cli.Exit(fmt.Sprintf("unknown machine type '%s'", name), 1)
			}
			return machine.WriteYAML(os.Stdout, p)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		for _, name := range machine.Names() {
			p, _ := machine.Lookup(name)
			fmt.Fprintf(tw, "%s\t%s\n", p.Type, p.Desc)
		}
		for _, a := range machine.Aliases() {
			fmt.Fprintf(tw, "%s\t%s (%s)\n", a.Name, a.Desc, a.Type)
		}
		return tw.Flush()
	},
}
