package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mastercactapus/gpx/config"
	"github.com/mastercactapus/gpx/coord"
	"github.com/mastercactapus/gpx/machine"
	"github.com/mastercactapus/gpx/machine/mightyboard"
	"github.com/mastercactapus/gpx/vm"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// translateFlags are shared by the commands that run the translator.
var translateFlags = []cli.Flag{
	&cli.StringFlag{Name: "machine", Aliases: []string{"m"}, Usage: "machine `TYPE`, see 'gpx machines'"},
	&cli.PathFlag{Name: "machine-yaml", Usage: "load the machine profile from a YAML `FILE`"},
	&cli.PathFlag{Name: "config", Aliases: []string{"c"}, Usage: "custom machine definition (ini `FILE`)"},
	&cli.BoolFlag{Name: "ditto", Aliases: []string{"d"}, Usage: "simulated ditto printing"},
	&cli.BoolFlag{Name: "makerbot", Aliases: []string{"g"}, Usage: "Makerbot/ReplicatorG GCODE flavor"},
	&cli.BoolFlag{Name: "reprap", Aliases: []string{"r"}, Usage: "RepRap GCODE flavor"},
	&cli.BoolFlag{Name: "progress", Aliases: []string{"p"}, Usage: "override build percentage"},
	&cli.BoolFlag{Name: "rewrite-5d", Aliases: []string{"w"}, Usage: "rewrite 5D extrusion values"},
	&cli.Float64Flag{Name: "filament", Aliases: []string{"f"}, Usage: "actual filament `DIAMETER`"},
	&cli.Float64Flag{Name: "scale", Aliases: []string{"n"}, Usage: "scale XYZ by `FACTOR`"},
	&cli.Float64Flag{Name: "x", Usage: "offset X by `MM`"},
	&cli.Float64Flag{Name: "y", Usage: "offset Y by `MM`"},
	&cli.Float64Flag{Name: "z", Usage: "offset Z by `MM`"},
	&cli.StringFlag{Name: "no-build", Aliases: []string{"N"}, Usage: "omit the start (h), end (t), or both (ht) build notices"},
	&cli.StringFlag{Name: "build-name", Usage: "build `NAME` shown on the LCD"},
	&cli.StringFlag{Name: "preamble", Usage: "start build notice `NAME` sent before the input"},
}

var serialFlags = []cli.Flag{
	&cli.StringFlag{Name: "port", Aliases: []string{"s"}, Usage: "serial `PORT` of the printer", Required: true},
	&cli.IntFlag{Name: "baud", Aliases: []string{"b"}, Usage: "serial baud `RATE`", Value: mightyboard.DefaultBaud},
}

// loadProfile selects and configures the machine and translator options
// from the command line.
func loadProfile(c *cli.Context) (*machine.Profile, vm.Options, error) {
	var opts vm.Options
	p := machine.Default()

	if name := c.String("machine"); name != "" {
		if err := config.SetProperty(p, &opts, "printer", "machine_type", name); err != nil {
			return nil, opts, err
		}
	}
	if name := c.Path("machine-yaml"); name != "" {
		f, err := os.Open(name)
		if err != nil {
			return nil, opts, err
		}
		defer f.Close()
		if p, err = machine.ReadYAML(f); err != nil {
			return nil, opts, err
		}
	}
	if name := c.Path("config"); name != "" {
		logrus.WithField("config", name).Debug("loading custom config")
		if err := config.LoadMachine(name, p, &opts); err != nil {
			return nil, opts, fmt.Errorf("configuration %s: %w", name, err)
		}
	}

	if c.Bool("ditto") {
		opts.Ditto = true
	}
	if c.Bool("makerbot") {
		opts.Makerbot = true
	}
	if c.Bool("reprap") {
		opts.Makerbot = false
	}
	if c.Bool("progress") {
		opts.BuildProgress = true
	}
	if c.Bool("rewrite-5d") {
		opts.Rewrite5D = true
	}
	if d := c.Float64("filament"); d > 0.0001 {
		opts.Override[0].ActualFilamentDiameter = d
		opts.Override[1].ActualFilamentDiameter = d
	}
	opts.Scale = c.Float64("scale")
	opts.Offset = coord.Point{X: c.Float64("x"), Y: c.Float64("y"), Z: c.Float64("z")}

	nb := strings.ToLower(c.String("no-build"))
	opts.NoStart = strings.Contains(nb, "h")
	opts.NoEnd = strings.Contains(nb, "t")
	opts.BuildName = c.String("build-name")

	opts.Preamble = c.String("preamble")

	opts.Verbose = opts.Verbose || c.Bool("verbose")
	opts.Log = logrus.StandardLogger()
	return p, opts, nil
}

// buildName is the default name for a build, the input file name without
// its extension.
func buildName(in string) string {
	base := filepath.Base(in)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// outputName derives the output file from the input file, optionally
// limited to a DOS 8.3 name for SD cards.
func outputName(in string, truncate bool) string {
	dir, name := filepath.Split(in)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if truncate && len(name) > 8 {
		name = name[:8]
	}
	return filepath.Join(dir, name+".x3g")
}
