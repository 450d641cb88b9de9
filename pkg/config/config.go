// Package config holds the process configuration of airmon and the build
// version injected by the dev tool.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is set at build time.
var Version = "latest"

const (
	AdapterMCP2221 = "mcp2221"
	AdapterGeneric = "generic"
	AdapterNanoPi  = "nanopi"
)

const (
	ModelAHT10   = "aht10"
	ModelAHT21   = "aht21"
	ModelCCS811  = "ccs811"
	ModelMCP9808 = "mcp9808"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Adapter string `yaml:"adapter"`
	// Device is the I2C bus name for the generic adapter (e.g. /dev/i2c-1),
	// the bus number for nanopi and the HID index for mcp2221.
	Device     string `yaml:"device"`
	BusSpeedHz int64  `yaml:"bus_speed_hz"`

	Interval              time.Duration `yaml:"interval"`
	MaxConsecutiveInvalid int           `yaml:"max_consecutive_invalid"`
	// LegacyInvalid forwards -1 for invalid values instead of skipping them.
	LegacyInvalid bool `yaml:"legacy_invalid"`

	Sensors []Sensor `yaml:"sensors"`
	Sinks   Sinks    `yaml:"sinks"`
}

type Sensor struct {
	Name    string `yaml:"name"`
	Model   string `yaml:"model"`
	Address int    `yaml:"address"`
	// Range is datasheet or extended; AHT family only.
	Range             string        `yaml:"range"`
	TemperatureOffset *float64      `yaml:"temperature_offset"`
	Settle            time.Duration `yaml:"settle"`
}

type Sinks struct {
	Log       bool   `yaml:"log"`
	Database  string `yaml:"database"`
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

func Default() Config {
	return Config{
		Adapter:               AdapterGeneric,
		Device:                "/dev/i2c-1",
		Interval:              10 * time.Second,
		MaxConsecutiveInvalid: 10,
		Sinks: Sinks{
			Log:       true,
			Namespace: "airmon",
		},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: could not open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: could not decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterMCP2221, AdapterGeneric, AdapterNanoPi:
	default:
		return fmt.Errorf("config: %w: unknown adapter %q", ErrInvalid, c.Adapter)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("config: %w: interval must be positive", ErrInvalid)
	}
	if c.MaxConsecutiveInvalid < 0 {
		return fmt.Errorf("config: %w: max_consecutive_invalid must not be negative", ErrInvalid)
	}
	names := make(map[string]struct{}, len(c.Sensors))
	for i, s := range c.Sensors {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("config: sensor %d: %w", i, err)
		}
		if _, ok := names[s.Name]; ok {
			return fmt.Errorf("config: %w: duplicate sensor name %q", ErrInvalid, s.Name)
		}
		names[s.Name] = struct{}{}
	}
	return nil
}

// Validate checks a single sensor entry. Tuning fields that only the AHT
// family understands are rejected for other models.
func (s Sensor) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	switch s.Model {
	case ModelAHT10, ModelAHT21, ModelCCS811, ModelMCP9808:
	default:
		return fmt.Errorf("%w: unknown model %q", ErrInvalid, s.Model)
	}
	if s.Address != 0 && (s.Address < 0x03 || s.Address > 0x77) {
		return fmt.Errorf("%w: address %#x outside the 7-bit range", ErrInvalid, s.Address)
	}
	switch s.Range {
	case "", "datasheet", "extended":
	default:
		return fmt.Errorf("%w: unknown range %q", ErrInvalid, s.Range)
	}
	if s.Model == ModelAHT10 || s.Model == ModelAHT21 {
		return nil
	}
	// range, offset and settle time only apply to the AHT family
	switch {
	case s.Range != "":
		return fmt.Errorf("%w: range is not supported by %s", ErrInvalid, s.Model)
	case s.TemperatureOffset != nil:
		return fmt.Errorf("%w: temperature_offset is not supported by %s", ErrInvalid, s.Model)
	case s.Settle != 0:
		return fmt.Errorf("%w: settle is not supported by %s", ErrInvalid, s.Model)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
