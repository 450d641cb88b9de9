package environment

import (
	"context"

	"github.com/mklimuk/airmon"
	"github.com/mklimuk/airmon/driver"
)

const MCP9808DefaultAddress = 0x18

// Register map
const (
	mcp9808RegConfig  byte = 0x01
	mcp9808RegAmbient byte = 0x05
)

const mcp9808SignBit = 0x10

var mcp9808Range = airmon.Range{Min: -40, Max: 125}

// MCP9808Codec decodes the ambient temperature register. The upper three
// bits of the first byte are alert flags and are ignored.
type MCP9808Codec struct{}

func (MCP9808Codec) Decode(raw driver.RawBlock) []airmon.Measurement {
	return []airmon.Measurement{airmon.Valid(airmon.Temperature, convertMCP9808(raw))}
}

func convertMCP9808(raw driver.RawBlock) float64 {
	b0, b1 := raw.Byte(0), raw.Byte(1)
	temp := float64(b0&0x0F)*16 + float64(b1)/16
	if b0&mcp9808SignBit != 0 {
		temp -= 256
	}
	return temp
}

type MCP9808Config struct {
	Name       string
	BusID      string
	Address    byte
	DriverOpts []driver.Opt
}

type MCP9808ConfigOption func(*MCP9808Config)

func WithMCP9808Address(address byte) MCP9808ConfigOption {
	return func(c *MCP9808Config) {
		c.Address = address
	}
}

func WithMCP9808Name(name string) MCP9808ConfigOption {
	return func(c *MCP9808Config) {
		c.Name = name
	}
}

func WithMCP9808BusID(id string) MCP9808ConfigOption {
	return func(c *MCP9808Config) {
		c.BusID = id
	}
}

func WithMCP9808DriverOpts(opts ...driver.Opt) MCP9808ConfigOption {
	return func(c *MCP9808Config) {
		c.DriverOpts = append(c.DriverOpts, opts...)
	}
}

// MCP9808 is a Microchip digital temperature sensor. It converts
// continuously, so a measurement is a single register read.
type MCP9808 struct {
	*driver.Driver
}

func NewMCP9808(trans airmon.I2CBus, opts ...MCP9808ConfigOption) *MCP9808 {
	config := &MCP9808Config{
		Name:    "mcp9808",
		Address: MCP9808DefaultAddress,
	}
	for _, opt := range opts {
		opt(config)
	}
	cfg := driver.Config{
		Name:    config.Name,
		BusID:   config.BusID,
		Address: config.Address,
		// enable the event output
		Init:       []driver.Command{{Payload: []byte{mcp9808RegConfig, 0x00, 0x08}}},
		Trigger:    []byte{mcp9808RegAmbient},
		Combined:   true,
		ReadLength: 2,
		Limits:     []driver.Limit{{Quantity: airmon.Temperature, Range: mcp9808Range}},
	}
	return &MCP9808{Driver: driver.New(trans, cfg, MCP9808Codec{}, driver.AlwaysOK, config.DriverOpts...)}
}

// GetTemperature returns the temperature in °C, or airmon.InvalidValue and
// the reason when the cycle was invalid.
func (s *MCP9808) GetTemperature(ctx context.Context) (float64, error) {
	r, err := s.Measure(ctx)
	if err != nil {
		return airmon.InvalidValue, err
	}
	m, _ := r.Get(airmon.Temperature)
	return m.Legacy(), r.Err
}
