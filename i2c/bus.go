package i2c

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/airmon"
	"github.com/mklimuk/airmon/snsctx"
)

var _ airmon.I2CBus = &GenericBus{}

// GenericBus talks to a kernel I2C device (e.g. /dev/i2c-1) through periph.
type GenericBus struct {
	mx  sync.Mutex
	bus i2c.BusCloser
}

func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return newGenericBus(bus), nil
}

func newGenericBus(bus i2c.BusCloser) *GenericBus {
	return &GenericBus{bus: bus}
}

// SetSpeed changes the bus clock. Some sensors need a slow clock.
func (b *GenericBus) SetSpeed(f physic.Frequency) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.bus.SetSpeed(f)
}

func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.tx(ctx, address, nil, buffer)
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.tx(ctx, address, buffer, nil)
}

// TxToAddr relies on the kernel i2c-dev combined transfer, which keeps the
// bus between the write and the read.
func (b *GenericBus) TxToAddr(ctx context.Context, address byte, w, r []byte) error {
	return b.tx(ctx, address, w, r)
}

func (b *GenericBus) tx(ctx context.Context, address byte, w, r []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	verbose := snsctx.IsVerbose(ctx)
	if verbose && len(w) > 0 {
		slog.Debug("i2c write", "addr", fmt.Sprintf("%#x", address), "data", hex.EncodeToString(w))
	}
	err := b.bus.Tx(uint16(address), w, r)
	if err != nil {
		switch {
		case len(w) > 0 && len(r) > 0:
			return fmt.Errorf("could not transact with i2c device %#x: %w", address, err)
		case len(r) > 0:
			return fmt.Errorf("could not read from i2c device %#x: %w", address, err)
		default:
			return fmt.Errorf("could not write to i2c device %#x: %w", address, err)
		}
	}
	if verbose && len(r) > 0 {
		slog.Debug("i2c read", "addr", fmt.Sprintf("%#x", address), "data", hex.EncodeToString(r))
	}
	return nil
}

func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
