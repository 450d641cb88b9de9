package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/airmon"
	"github.com/mklimuk/airmon/air"
	"github.com/mklimuk/airmon/driver"
	"github.com/mklimuk/airmon/environment"
	"github.com/mklimuk/airmon/pkg/config"
	"github.com/mklimuk/airmon/poll"
)

type sensor interface {
	poll.Sensor
	Initialize(ctx context.Context) error
	SoftReset(ctx context.Context) error
	Stats() driver.Stats
	Config() driver.Config
}

func sensorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "sensor",
			Aliases: []string{"s"},
			Value:   config.ModelAHT21,
			Usage:   "sensor model: aht10, aht21, ccs811 or mcp9808",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "series name (defaults to the model)",
		},
		&cli.StringFlag{
			Name:  "addr",
			Usage: "7-bit address, e.g. 0x38 (defaults to the model's)",
		},
		&cli.StringFlag{
			Name:  "range",
			Usage: "AHT validation range: datasheet or extended",
		},
	}
}

func sensorFromFlags(c *cli.Context) (config.Sensor, error) {
	s := config.Sensor{
		Name:  c.String("name"),
		Model: c.String("sensor"),
		Range: c.String("range"),
	}
	if s.Name == "" {
		s.Name = s.Model
	}
	if c.IsSet("addr") {
		addr, err := parseAddress(c.String("addr"))
		if err != nil {
			return config.Sensor{}, err
		}
		s.Address = int(addr)
	}
	if err := s.Validate(); err != nil {
		return config.Sensor{}, err
	}
	return s, nil
}

func parseAddress(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil || v > 0x77 {
		return 0, fmt.Errorf("invalid i2c address %q", s)
	}
	return byte(v), nil
}

func newSensor(bus airmon.I2CBus, busID string, s config.Sensor, opts ...driver.Opt) (sensor, error) {
	switch s.Model {
	case config.ModelAHT10, config.ModelAHT21:
		r, err := environment.ParseAHTRange(s.Range)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		ahtOpts := []environment.AHTConfigOption{
			environment.WithAHTName(s.Name),
			environment.WithAHTBusID(busID),
			environment.WithAHTDriverOpts(opts...),
		}
		if s.Range != "" {
			ahtOpts = append(ahtOpts, environment.WithRange(r))
		}
		if s.Address != 0 {
			ahtOpts = append(ahtOpts, environment.WithAHTAddress(byte(s.Address)))
		}
		if s.TemperatureOffset != nil {
			ahtOpts = append(ahtOpts, environment.WithTemperatureOffset(*s.TemperatureOffset))
		}
		if s.Settle > 0 {
			ahtOpts = append(ahtOpts, environment.WithAHTSettle(s.Settle))
		}
		if s.Model == config.ModelAHT10 {
			return environment.NewAHT10(bus, ahtOpts...), nil
		}
		return environment.NewAHT21(bus, ahtOpts...), nil
	case config.ModelCCS811:
		ccsOpts := []air.CCS811ConfigOption{
			air.WithName(s.Name),
			air.WithBusID(busID),
			air.WithDriverOpts(opts...),
		}
		if s.Address != 0 {
			ccsOpts = append(ccsOpts, air.WithAddress(byte(s.Address)))
		}
		return air.NewCCS811(bus, ccsOpts...), nil
	case config.ModelMCP9808:
		mcpOpts := []environment.MCP9808ConfigOption{
			environment.WithMCP9808Name(s.Name),
			environment.WithMCP9808BusID(busID),
			environment.WithMCP9808DriverOpts(opts...),
		}
		if s.Address != 0 {
			mcpOpts = append(mcpOpts, environment.WithMCP9808Address(byte(s.Address)))
		}
		return environment.NewMCP9808(bus, mcpOpts...), nil
	default:
		return nil, fmt.Errorf("%s: unknown sensor model %q", s.Name, s.Model)
	}
}
