package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/airmon/cmd/airmon/console"
	"github.com/mklimuk/airmon/pkg/config"
)

var resetCmd = cli.Command{
	Name:  "reset",
	Usage: "soft reset a sensor",
	Flags: append(append(busFlags(), sensorFlags()...), &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "do not ask for confirmation",
	}),
	Action: func(c *cli.Context) error {
		cfg := config.Default()
		applyBusFlags(c, &cfg)
		sc, err := sensorFromFlags(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if !c.Bool("yes") {
			ok, err := console.Confirm("soft reset " + sc.Name + "?")
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if !ok {
				console.Infof("aborted")
				return nil
			}
		}
		b, err := openBus(c.Context, cfg)
		if err != nil {
			return console.Exit(1, "could not open bus: %s", console.Red(err))
		}
		defer b.Close()

		s, err := newSensor(b, b.id, sc)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if err := s.SoftReset(c.Context); err != nil {
			return console.Exit(1, "soft reset error: %s", console.Red(err))
		}
		if s.Stats().Resets == 0 {
			console.Warnf("%s has no soft reset sequence", sc.Model)
			return nil
		}
		console.Infof("%s reset", console.White(sc.Name))
		return nil
	},
}
