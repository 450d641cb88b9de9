package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/airmon"
	"github.com/mklimuk/airmon/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// HID command codes (MCP2221A datasheet, section 3.1)
const (
	cmdStatusSetParams    byte = 0x10
	cmdI2CWriteData       byte = 0x90
	cmdI2CWriteDataNoStop byte = 0x94
	cmdI2CReadData        byte = 0x91
	cmdI2CReadDataRepeat  byte = 0x93
	cmdI2CGetData         byte = 0x40
)

const reportSize = 64

// maxPayload is what fits in one HID report after the 4 header bytes.
const maxPayload = reportSize - 4

var ErrCommandFailed = errors.New("command failed")
var ErrPayloadTooLarge = fmt.Errorf("payload larger than %d bytes", maxPayload)

var _ airmon.I2CBus = &MCP2221{}

// Device is the part of an opened HID device the adapter uses.
type Device interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// Opener returns a handle to the adapter. The default opener enumerates
// USB HID devices with the MCP2221 vendor and product id.
type Opener func() (Device, error)

// MCP2221 is an I2C bus driven through a Microchip MCP2221 USB-HID bridge.
type MCP2221 struct {
	mx           sync.Mutex
	open         Opener
	request      []byte
	response     []byte
	responseWait time.Duration
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

type MCP2221Opt func(*MCP2221)

// WithDeviceIndex selects one of several connected adapters.
func WithDeviceIndex(index int) MCP2221Opt {
	return func(d *MCP2221) {
		d.open = func() (Device, error) { return openHID(index) }
	}
}

func WithOpener(open Opener) MCP2221Opt {
	return func(d *MCP2221) {
		d.open = open
	}
}

// WithResponseWait sets the pause between a request and reading its response.
func WithResponseWait(wait time.Duration) MCP2221Opt {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

func NewMCP2221(opts ...MCP2221Opt) *MCP2221 {
	d := &MCP2221{
		open:         func() (Device, error) { return openHID(-1) },
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Init checks that the adapter is reachable and frees the I2C engine in case
// a previous process left a transfer hanging.
func (d *MCP2221) Init(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.write(ctx, cmdI2CWriteData, address, buffer); err != nil {
		return fmt.Errorf("write to %#x failed: %w", address, err)
	}
	return nil
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.read(ctx, cmdI2CReadData, address, buffer); err != nil {
		return fmt.Errorf("read from %#x failed: %w", address, err)
	}
	return nil
}

// TxToAddr writes without a stop condition and reads with a repeated start,
// so the target sees a single transaction.
func (d *MCP2221) TxToAddr(ctx context.Context, address byte, w, r []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.write(ctx, cmdI2CWriteDataNoStop, address, w); err != nil {
		return fmt.Errorf("write (no stop) to %#x failed: %w", address, err)
	}
	if err := d.read(ctx, cmdI2CReadDataRepeat, address, r); err != nil {
		return fmt.Errorf("repeated start read from %#x failed: %w", address, err)
	}
	return nil
}

func (d *MCP2221) write(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	if len(buffer) > maxPayload {
		return ErrPayloadTooLarge
	}
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	if err := d.send(ctx); err != nil {
		return err
	}
	if d.response[1] == 0x01 {
		slog.Debug("adapter busy", "sensor", snsctx.Sensor(ctx))
		return airmon.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) read(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	if len(buffer) > maxPayload {
		return ErrPayloadTooLarge
	}
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 | 1
	if err := d.send(ctx); err != nil {
		return err
	}
	if d.response[1] == 0x01 {
		return airmon.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdI2CGetData
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:4+len(buffer)])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

// ReleaseBus cancels the current I2C transfer and returns the engine status.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	d.request[2] = 0x10
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context) error {
	dev, err := d.open()
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Warn("could not close adapter handle", "error", err)
		}
	}()
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending message to adapter", "sensor", snsctx.Sensor(ctx), "dump", hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	time.Sleep(d.responseWait)
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		slog.Debug("read message from adapter", "sensor", snsctx.Sensor(ctx), "dump", hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}

// openHID opens the adapter at index, or the only connected one when index
// is negative.
func openHID(index int) (Device, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return nil, fmt.Errorf("MCP2221 device not found")
	}
	if index < 0 {
		if len(devs) > 1 {
			return nil, fmt.Errorf("ambiguous device identification: %d adapters connected", len(devs))
		}
		index = 0
	}
	if index >= len(devs) {
		return nil, fmt.Errorf("no device with id %d", index)
	}
	dev, err := devs[index].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}
