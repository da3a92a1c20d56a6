package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "gpx",
		Usage: "translate G-code to x3g for MakerBot class printers",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging and conversion summaries"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only log warnings and errors"},
			&cli.PathFlag{Name: "log", Aliases: []string{"l"}, Usage: "log to `FILE` instead of stderr"},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			convertCmd,
			sendCmd,
			daemonCmd,
			machinesCmd,
			dumpCmd,
			eepromCmd,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		logrus.WithError(err).Error("gpx failed")
		stop()
		os.Exit(1)
	}
}

func setupLogging(c *cli.Context) error {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(colorable.NewColorableStderr())

	if name := c.Path("log"); name != "" {
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		logrus.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
		logrus.SetOutput(f)
	}

	switch {
	case c.Bool("verbose"):
		logrus.SetLevel(logrus.DebugLevel)
	case c.Bool("quiet"):
		logrus.SetLevel(logrus.WarnLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
	return nil
}
