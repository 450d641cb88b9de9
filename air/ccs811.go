package air

import (
	"context"
	"log/slog"
	"time"

	"github.com/mklimuk/airmon"
	"github.com/mklimuk/airmon/driver"
)

// CCS811 (CJMCU-811 board) 7-bit addresses. ADDR pin low selects 0x5A.
const (
	CCS811DefaultAddress   = 0x5A
	CCS811AlternateAddress = 0x5B
)

// Register/command map
const (
	ccs811RegMeasMode byte = 0x01
	ccs811RegResult   byte = 0x02
	ccs811AppStart    byte = 0xF4
	ccs811RegReset    byte = 0xFF
)

// Drive mode 1 (a measurement every second), interrupts disabled.
const ccs811MeasModeEverySecond byte = 0b0001_0000

// Status register bits
const (
	ccs811StatusError     = 1 << 0
	ccs811StatusDataReady = 1 << 3
	ccs811StatusAppValid  = 1 << 4
	ccs811StatusFWMode    = 1 << 7
)

var ccs811ResetSequence = []byte{ccs811RegReset, 0x11, 0xE5, 0x72, 0x8A}

const (
	ccs811StartDelay = 100 * time.Millisecond
	ccs811ResetDelay = 20 * time.Millisecond
)

var (
	eco2Range = airmon.Range{Min: 400, Max: 8192}
	tvocRange = airmon.Range{Min: 0, Max: 1187}
)

// ccs811ErrorCodes lists ERROR_ID bits from bit 0 upwards.
var ccs811ErrorCodes = []driver.ErrorCode{
	driver.CodeWriteRegInvalid,
	driver.CodeReadRegInvalid,
	driver.CodeMeasModeInvalid,
	driver.CodeMaxResistance,
	driver.CodeHeaterFault,
	driver.CodeHeaterSupply,
}

// CCS811Codec decodes the ALG_RESULT_DATA block:
// eCO2 (2), TVOC (2), STATUS, ERROR_ID, RAW_DATA (2).
type CCS811Codec struct{}

func (CCS811Codec) Decode(raw driver.RawBlock) []airmon.Measurement {
	eco2 := uint16(raw.Byte(0))<<8 | uint16(raw.Byte(1))
	tvoc := uint16(raw.Byte(2))<<8 | uint16(raw.Byte(3))
	return []airmon.Measurement{
		airmon.Valid(airmon.ECO2, float64(eco2)),
		airmon.Valid(airmon.TVOC, float64(tvoc)),
	}
}

// DecodeRawData returns the heater current in µA and the raw ADC reading
// of the sensing element.
func DecodeRawData(raw driver.RawBlock) (current uint8, adc uint16) {
	b6, b7 := raw.Byte(6), raw.Byte(7)
	return b6 >> 2, uint16(b6&0x03)<<8 | uint16(b7)
}

// InterpretCCS811Status checks the error flag first and then the readiness
// bits in the order the firmware sets them.
func InterpretCCS811Status(raw driver.RawBlock) driver.Disposition {
	status := raw.Byte(4)
	switch {
	case status&ccs811StatusError != 0:
		return driver.HasError(decodeErrorID(raw.Byte(5)))
	case status&ccs811StatusDataReady == 0:
		return driver.Dispose(driver.StatusNoNewData)
	case status&ccs811StatusAppValid == 0:
		return driver.Dispose(driver.StatusFirmwareNotLoaded)
	case status&ccs811StatusFWMode == 0:
		return driver.Dispose(driver.StatusNotInAppMode)
	default:
		return driver.OK
	}
}

func decodeErrorID(id byte) driver.ErrorCode {
	for bit, code := range ccs811ErrorCodes {
		if id&(1<<bit) != 0 {
			return code
		}
	}
	return driver.CodeUnknown
}

type CCS811Config struct {
	Name       string
	BusID      string
	Address    byte
	Logger     *slog.Logger
	DriverOpts []driver.Opt
}

type CCS811ConfigOption func(*CCS811Config)

func WithAddress(address byte) CCS811ConfigOption {
	return func(c *CCS811Config) {
		c.Address = address
	}
}

func WithName(name string) CCS811ConfigOption {
	return func(c *CCS811Config) {
		c.Name = name
	}
}

func WithBusID(id string) CCS811ConfigOption {
	return func(c *CCS811Config) {
		c.BusID = id
	}
}

func WithLogger(logger *slog.Logger) CCS811ConfigOption {
	return func(c *CCS811Config) {
		c.Logger = logger
		c.DriverOpts = append(c.DriverOpts, driver.WithLogger(logger))
	}
}

func WithDriverOpts(opts ...driver.Opt) CCS811ConfigOption {
	return func(c *CCS811Config) {
		c.DriverOpts = append(c.DriverOpts, opts...)
	}
}

// CCS811 represents an AMS CCS811 eCO2/TVOC sensor. Typical usage:
//
//	s := NewCCS811(bus)
//	err := s.Initialize(ctx)
//	eco2, tvoc, err := s.GetECO2TVOC(ctx)
//
// The result register must be read with a repeated start; separate write
// and read transactions return stale data.
type CCS811 struct {
	*driver.Driver
}

func NewCCS811(trans airmon.I2CBus, opts ...CCS811ConfigOption) *CCS811 {
	config := &CCS811Config{
		Name:    "ccs811",
		Address: CCS811DefaultAddress,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(config)
	}
	cfg := driver.Config{
		Name:    config.Name,
		BusID:   config.BusID,
		Address: config.Address,
		Init: []driver.Command{
			{Payload: []byte{ccs811AppStart}, Delay: ccs811StartDelay},
			{Payload: []byte{ccs811RegMeasMode, ccs811MeasModeEverySecond}, Delay: ccs811StartDelay},
		},
		Trigger:    []byte{ccs811RegResult},
		Combined:   true,
		Reset:      ccs811ResetSequence,
		ResetDelay: ccs811ResetDelay,
		ReadLength: 8,
		Limits: []driver.Limit{
			{Quantity: airmon.ECO2, Range: eco2Range},
			{Quantity: airmon.TVOC, Range: tvocRange},
		},
	}
	codec := loggingCodec{CCS811Codec: CCS811Codec{}, log: config.Logger}
	return &CCS811{Driver: driver.New(trans, cfg, codec, driver.StatusFunc(InterpretCCS811Status), config.DriverOpts...)}
}

// GetECO2TVOC returns eCO2 in ppm and TVOC in ppb. Both are
// airmon.InvalidValue when the cycle was invalid.
func (s *CCS811) GetECO2TVOC(ctx context.Context) (float64, float64, error) {
	r, err := s.Measure(ctx)
	if err != nil {
		return airmon.InvalidValue, airmon.InvalidValue, err
	}
	eco2, _ := r.Get(airmon.ECO2)
	tvoc, _ := r.Get(airmon.TVOC)
	return eco2.Legacy(), tvoc.Legacy(), r.Err
}

type loggingCodec struct {
	CCS811Codec
	log *slog.Logger
}

func (c loggingCodec) Decode(raw driver.RawBlock) []airmon.Measurement {
	current, adc := DecodeRawData(raw)
	c.log.Debug("ccs811 raw data", "current_uA", current, "adc", adc)
	return c.CCS811Codec.Decode(raw)
}
