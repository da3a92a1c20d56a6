package main

import (
	"fmt"
	"os"

	"github.com/mastercactapus/gpx/config"
	"github.com/mastercactapus/gpx/eeprom"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var eepromCmd = &cli.Command{
	Name:      "eeprom",
	Usage:     "read or write printer EEPROM settings",
	ArgsUsage: "[SETTINGS.ini]",
	Flags: append([]cli.Flag{
		&cli.PathFlag{Name: "map", Usage: "load an EEPROM layout from `FILE` (YAML)"},
		&cli.BoolFlag{Name: "list", Usage: "print every setting in the layout matching the firmware"},
	}, serialFlags...),
	Action: func(c *cli.Context) error {
		if name := c.Path("map"); name != "" {
			f, err := os.Open(name)
			if err != nil {
				return fmt.Errorf("open map: %w", err)
			}
			m, err := eeprom.ReadYAML(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("read map %s: %w", name, err)
			}
			eeprom.Register(m)
		}

		ini := c.Args().First()
		if ini == "" && !c.Bool("list") {
			return cli.Exit("nothing to do: pass a settings file or --list", 1)
		}

		conn, err := dial(c)
		if err != nil {
			return err
		}
		defer conn.Close()

		if ini != "" {
			if err := config.LoadEEPROM(c.Context, ini, conn); err != nil {
				return err
			}
			logrus.WithField("file", ini).Info("eeprom written")
		}

		if !c.Bool("list") {
			return nil
		}

		variant, version, err := conn.FirmwareVersion(c.Context)
		if err != nil {
			return err
		}
		log := logrus.WithFields(logrus.Fields{
			"firmware": eeprom.VariantName(variant),
			"version":  fmt.Sprintf("%d.%d", version/100, version%100),
		})
		m, ok := eeprom.Find(variant, version)
		if !ok {
			log.Warn("no eeprom map for firmware")
			return cli.Exit("no eeprom map for this firmware; pass one with --map", 1)
		}
		for i := range m.Mappings {
			s, err := eeprom.Describe(c.Context, conn, &m.Mappings[i])
			if err != nil {
				log.WithError(err).WithField("id", m.Mappings[i].ID).Warn("read setting")
				continue
			}
			fmt.Println(s)
		}
		return nil
	},
}
