package environment

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sigurn/crc8"

	"github.com/mklimuk/airmon"
	"github.com/mklimuk/airmon/driver"
)

// AHT10/AHT21 I2C address (7-bit)
const AHTDefaultAddress = 0x38

const (
	ahtCmdTrigger byte = 0xAC
	ahtCmdReset   byte = 0xBA
	ahtCmdStatus  byte = 0x71
)

// Status byte bits
const (
	ahtStatusBusy       = 0x80
	ahtStatusCalibrated = 0x08
)

// Datasheet minimum conversion times.
const (
	aht10MinSettle = 75 * time.Millisecond
	aht21MinSettle = 80 * time.Millisecond
	ahtInitDelay   = 100 * time.Millisecond
	ahtResetDelay  = 20 * time.Millisecond
)

const ahtFullScale = 1 << 20

var ahtCRCTable = crc8.MakeTable(crc8.Params{
	Poly:   0x31,
	Init:   0xFF,
	RefIn:  false,
	RefOut: false,
	XorOut: 0x00,
	Check:  0xF7,
	Name:   "CRC-8/NRSC-5",
})

// AHTRange selects which documented limits readings are checked against.
type AHTRange int

const (
	// RangeDatasheet is the accuracy-specified range: -45..85 °C, 5..95 %RH.
	RangeDatasheet AHTRange = iota
	// RangeExtended is the operating range: -40..120 °C, 0..100 %RH.
	RangeExtended
)

func (r AHTRange) limits() []driver.Limit {
	if r == RangeExtended {
		return []driver.Limit{
			{Quantity: airmon.Humidity, Range: airmon.Range{Min: 0, Max: 100}},
			{Quantity: airmon.Temperature, Range: airmon.Range{Min: -40, Max: 120}},
		}
	}
	return []driver.Limit{
		{Quantity: airmon.Humidity, Range: airmon.Range{Min: 5, Max: 95}},
		{Quantity: airmon.Temperature, Range: airmon.Range{Min: -45, Max: 85}},
	}
}

func ParseAHTRange(name string) (AHTRange, error) {
	switch name {
	case "", "datasheet":
		return RangeDatasheet, nil
	case "extended":
		return RangeExtended, nil
	default:
		return 0, fmt.Errorf("unknown range %q", name)
	}
}

// AHTCodec decodes the 20-bit packed humidity and temperature of AHT-class
// sensors. Blocks of 7 bytes carry a CRC in the last byte.
type AHTCodec struct {
	// TemperatureOffset is added after scaling.
	TemperatureOffset float64
}

var _ driver.Verifier = AHTCodec{}

func (c AHTCodec) Decode(raw driver.RawBlock) []airmon.Measurement {
	hum, temp := convertAHT(raw)
	return []airmon.Measurement{
		airmon.Valid(airmon.Humidity, hum),
		airmon.Valid(airmon.Temperature, temp+c.TemperatureOffset),
	}
}

func (c AHTCodec) Verify(raw driver.RawBlock) error {
	if raw.Len() < 7 {
		return nil
	}
	b := raw.Bytes()
	if crc := crc8.Checksum(b[:6], ahtCRCTable); crc != b[6] {
		return fmt.Errorf("aht: %w: expected %#x, got %#x", airmon.ErrChecksum, b[6], crc)
	}
	return nil
}

func convertAHT(raw driver.RawBlock) (hum, temp float64) {
	rawHum := uint32(raw.Byte(1))<<12 | uint32(raw.Byte(2))<<4 | uint32(raw.Byte(3))>>4
	rawTemp := uint32(raw.Byte(3)&0x0F)<<16 | uint32(raw.Byte(4))<<8 | uint32(raw.Byte(5))
	hum = float64(rawHum) / ahtFullScale * 100
	temp = float64(rawTemp)/ahtFullScale*200 - 50
	return hum, temp
}

// InterpretAHTStatus checks the busy bit first, then calibration.
func InterpretAHTStatus(raw driver.RawBlock) driver.Disposition {
	status := raw.Byte(0)
	if status&ahtStatusBusy != 0 {
		return driver.Dispose(driver.StatusBusy)
	}
	if status&ahtStatusCalibrated == 0 {
		return driver.Dispose(driver.StatusUncalibrated)
	}
	return driver.OK
}

type AHTConfig struct {
	Name              string
	BusID             string
	Address           byte
	Range             AHTRange
	TemperatureOffset float64
	Settle            time.Duration
	DriverOpts        []driver.Opt
}

type AHTConfigOption func(*AHTConfig)

func WithAHTAddress(address byte) AHTConfigOption {
	return func(c *AHTConfig) {
		c.Address = address
	}
}

func WithAHTName(name string) AHTConfigOption {
	return func(c *AHTConfig) {
		c.Name = name
	}
}

func WithAHTBusID(id string) AHTConfigOption {
	return func(c *AHTConfig) {
		c.BusID = id
	}
}

func WithRange(r AHTRange) AHTConfigOption {
	return func(c *AHTConfig) {
		c.Range = r
	}
}

// WithTemperatureOffset corrects a constant bias of the board, in °C.
func WithTemperatureOffset(offset float64) AHTConfigOption {
	return func(c *AHTConfig) {
		c.TemperatureOffset = offset
	}
}

// WithAHTSettle lengthens the conversion wait. It cannot go below the
// datasheet minimum.
func WithAHTSettle(settle time.Duration) AHTConfigOption {
	return func(c *AHTConfig) {
		c.Settle = settle
	}
}

func WithAHTDriverOpts(opts ...driver.Opt) AHTConfigOption {
	return func(c *AHTConfig) {
		c.DriverOpts = append(c.DriverOpts, opts...)
	}
}

// AHT represents an Aosong AHT10 or AHT21 temperature/humidity sensor.
// Typical usage:
//
//	s := NewAHT21(bus)
//	err := s.Initialize(ctx)
//	r, err := s.Measure(ctx)
type AHT struct {
	*driver.Driver
	transport airmon.I2CBus
	address   byte
}

// NewAHT10 uses the datasheet range and a 6 byte read without CRC.
func NewAHT10(trans airmon.I2CBus, opts ...AHTConfigOption) *AHT {
	config := &AHTConfig{
		Name:    "aht10",
		Address: AHTDefaultAddress,
		Range:   RangeDatasheet,
	}
	for _, opt := range opts {
		opt(config)
	}
	return newAHT(trans, config, []byte{0xE1, 0x08, 0x00}, aht10MinSettle, 6)
}

// NewAHT21 uses the extended range, a 7 byte read with CRC and corrects the
// +1 °C self-heating bias seen on common breakout boards.
func NewAHT21(trans airmon.I2CBus, opts ...AHTConfigOption) *AHT {
	config := &AHTConfig{
		Name:              "aht21",
		Address:           AHTDefaultAddress,
		Range:             RangeExtended,
		TemperatureOffset: -1,
	}
	for _, opt := range opts {
		opt(config)
	}
	return newAHT(trans, config, []byte{0x1B, 0x1C, 0x1E}, aht21MinSettle, 7)
}

func newAHT(trans airmon.I2CBus, config *AHTConfig, init []byte, minSettle time.Duration, readLength int) *AHT {
	cfg := driver.Config{
		Name:                  config.Name,
		BusID:                 config.BusID,
		Address:               config.Address,
		Init:                  []driver.Command{{Payload: init, Delay: ahtInitDelay}},
		Trigger:               []byte{ahtCmdTrigger, 0x33, 0x00},
		Settle:                config.Settle,
		MinSettle:             minSettle,
		Reset:                 []byte{ahtCmdReset},
		ResetDelay:            ahtResetDelay,
		ReadLength:            readLength,
		Limits:                config.Range.limits(),
		ResetOnRangeViolation: true,
	}
	codec := AHTCodec{TemperatureOffset: config.TemperatureOffset}
	return &AHT{
		Driver:    driver.New(trans, cfg, codec, driver.StatusFunc(InterpretAHTStatus), config.DriverOpts...),
		transport: trans,
		address:   config.Address,
	}
}

// Status reads the status byte without triggering a measurement.
func (s *AHT) Status(ctx context.Context) (driver.Disposition, error) {
	resp := make([]byte, 1)
	err := s.transport.TxToAddr(ctx, s.address, []byte{ahtCmdStatus}, resp)
	if err != nil {
		return driver.Disposition{}, fmt.Errorf("aht: could not read status: %w", err)
	}
	return InterpretAHTStatus(driver.NewRawBlock(resp)), nil
}

// GetTempAndHum runs one cycle and returns temperature and humidity.
// Invalid cycles yield airmon.InvalidValue for both and the reason.
func (s *AHT) GetTempAndHum(ctx context.Context) (float64, float64, error) {
	r, err := s.Measure(ctx)
	if err != nil {
		return airmon.InvalidValue, airmon.InvalidValue, err
	}
	temp, _ := r.Get(airmon.Temperature)
	hum, _ := r.Get(airmon.Humidity)
	return temp.Legacy(), hum.Legacy(), r.Err
}

// EncodeAHT packs humidity (%) and temperature (°C) into a 6 byte block
// with an OK status, the inverse of the codec without offset.
func EncodeAHT(hum, temp float64) []byte {
	rawHum := toAHTRaw(hum / 100)
	rawTemp := toAHTRaw((temp + 50) / 200)
	return []byte{
		0x1C,
		byte(rawHum >> 12),
		byte(rawHum >> 4),
		byte(rawHum<<4) | byte(rawTemp>>16)&0x0F,
		byte(rawTemp >> 8),
		byte(rawTemp),
	}
}

// toAHTRaw scales a fraction of the full scale to a 20 bit raw value,
// saturating at both ends.
func toAHTRaw(fraction float64) uint32 {
	switch {
	case fraction <= 0 || math.IsNaN(fraction):
		return 0
	case fraction >= 1:
		return ahtFullScale - 1
	default:
		return uint32(fraction * ahtFullScale)
	}
}

// AppendAHTChecksum adds the CRC byte AHT21 sends after the data.
func AppendAHTChecksum(block []byte) []byte {
	return append(block, crc8.Checksum(block, ahtCRCTable))
}
