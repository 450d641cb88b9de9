package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gobot "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/airmon"
)

var _ airmon.I2CBus = &GobotBus{}

// ErrCombinedUnsupported is returned when a combined transaction cannot be
// expressed as an SMBus block read.
var ErrCombinedUnsupported = errors.New("combined transaction needs a single register byte on gobot buses")

// GobotBus adapts a gobot I2C connector (e.g. the NanoPi NEO adaptor) to
// the bus interface. Gobot opens one connection per device address; they
// are opened lazily and kept until Close.
type GobotBus struct {
	mx        sync.Mutex
	connector gobot.Connector
	bus       int
	conns     map[byte]gobot.Connection
}

func NewGobotBus(connector gobot.Connector, bus int) *GobotBus {
	return &GobotBus{
		connector: connector,
		bus:       bus,
		conns:     make(map[byte]gobot.Connection),
	}
}

// NewGobotDefaultBus uses the connector's default bus number.
func NewGobotDefaultBus(connector gobot.Connector) *GobotBus {
	return NewGobotBus(connector, connector.DefaultI2cBus())
}

func (b *GobotBus) conn(address byte) (gobot.Connection, error) {
	if c, ok := b.conns[address]; ok {
		return c, nil
	}
	c, err := b.connector.GetI2cConnection(int(address), b.bus)
	if err != nil {
		return nil, fmt.Errorf("could not open connection to %#x on bus %d: %w", address, b.bus, err)
	}
	b.conns[address] = c
	return c, nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	n, err := c.Read(buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c device %#x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short read from i2c device %#x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	n, err := c.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c device %#x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("short write to i2c device %#x: %d of %d bytes", address, n, len(buffer))
	}
	return nil
}

// TxToAddr maps to an SMBus I2C block read, which issues the register byte
// and the read with a repeated start.
func (b *GobotBus) TxToAddr(ctx context.Context, address byte, w, r []byte) error {
	if len(w) != 1 {
		return ErrCombinedUnsupported
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	if err := c.ReadBlockData(w[0], r); err != nil {
		return fmt.Errorf("could not read register %#x of i2c device %#x: %w", w[0], address, err)
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var errs []error
	for addr, c := range b.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("could not close connection to %#x: %w", addr, err))
		}
		delete(b.conns, addr)
	}
	return errors.Join(errs...)
}
