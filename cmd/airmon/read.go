package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/airmon/cmd/airmon/console"
	"github.com/mklimuk/airmon/pkg/config"
)

var readCmd = cli.Command{
	Name:  "read",
	Usage: "initialize a sensor and take one reading",
	Flags: append(busFlags(), sensorFlags()...),
	Action: func(c *cli.Context) error {
		cfg := config.Default()
		applyBusFlags(c, &cfg)
		sc, err := sensorFromFlags(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
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
		if err := s.Initialize(c.Context); err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		r, err := s.Measure(c.Context)
		if err != nil {
			return console.Exit(1, "measurement error: %s", console.Red(err))
		}
		console.PrintReading(r)
		if !r.Valid() {
			return console.Exit(2, "")
		}
		return nil
	},
}
