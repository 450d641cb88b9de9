package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/airmon/adapter"
	"github.com/mklimuk/airmon/cmd/airmon/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 adapter maintenance",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var indexFlag = &cli.IntFlag{
	Name:  "index",
	Value: -1,
	Usage: "adapter index from 'usb detect' when several are connected",
}

func newAdapter(c *cli.Context) *adapter.MCP2221 {
	if c.Int("index") < 0 {
		return adapter.NewMCP2221()
	}
	return adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Usage: "print the I2C engine status",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		status, err := newAdapter(c).Status(c.Context)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		if err := yaml.NewEncoder(os.Stdout).Encode(status); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel a hanging I2C transfer and print the status",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		status, err := newAdapter(c).ReleaseBus(c.Context)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		if err := yaml.NewEncoder(os.Stdout).Encode(status); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}
