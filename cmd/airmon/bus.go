package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/airmon"
	"github.com/mklimuk/airmon/adapter"
	"github.com/mklimuk/airmon/i2c"
	"github.com/mklimuk/airmon/pkg/config"
)

func busFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Usage:   "bus adapter: mcp2221, generic or nanopi",
		},
		&cli.StringFlag{
			Name:    "device",
			Aliases: []string{"d"},
			Usage:   "i2c bus name (generic), bus number (nanopi) or adapter index (mcp2221)",
		},
		&cli.Int64Flag{
			Name:  "speed",
			Usage: "bus clock in Hz (generic adapter only)",
		},
	}
}

// applyBusFlags overrides the bus section of cfg with the flags set on c.
func applyBusFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("adapter") {
		cfg.Adapter = c.String("adapter")
	}
	if c.IsSet("device") {
		cfg.Device = c.String("device")
	}
	if c.IsSet("speed") {
		cfg.BusSpeedHz = c.Int64("speed")
	}
}

type bus struct {
	airmon.I2CBus
	id    string
	close func() error
}

func (b *bus) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func openBus(ctx context.Context, cfg config.Config) (*bus, error) {
	id := fmt.Sprintf("%s:%s", cfg.Adapter, cfg.Device)
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		var opts []adapter.MCP2221Opt
		if cfg.Device != "" {
			index, err := strconv.Atoi(cfg.Device)
			if err != nil {
				return nil, fmt.Errorf("invalid adapter index %q: %w", cfg.Device, err)
			}
			opts = append(opts, adapter.WithDeviceIndex(index))
		}
		a := adapter.NewMCP2221(opts...)
		if err := a.Init(ctx); err != nil {
			return nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		return &bus{I2CBus: a, id: id}, nil
	case config.AdapterGeneric:
		b, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, err
		}
		if cfg.BusSpeedHz > 0 {
			if err := b.SetSpeed(physic.Frequency(cfg.BusSpeedHz) * physic.Hertz); err != nil {
				_ = b.Close()
				return nil, err
			}
		}
		return &bus{I2CBus: b, id: id, close: b.Close}, nil
	case config.AdapterNanoPi:
		number := 0
		if cfg.Device != "" {
			n, err := strconv.Atoi(cfg.Device)
			if err != nil {
				return nil, fmt.Errorf("invalid bus number %q: %w", cfg.Device, err)
			}
			number = n
		}
		npi := nanopi.NewNeoAdaptor()
		if err := npi.Connect(); err != nil {
			return nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		b := i2c.NewGobotBus(npi, number)
		return &bus{I2CBus: b, id: id, close: func() error {
			return errors.Join(b.Close(), npi.Finalize())
		}}, nil
	default:
		return nil, fmt.Errorf("unknown adapter %q", cfg.Adapter)
	}
}
