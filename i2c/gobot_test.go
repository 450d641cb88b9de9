package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
)

type fakeConn struct {
	gobot.Connection
	written  [][]byte
	read     []byte
	register byte
	closed   bool
	err      error
}

func (c *fakeConn) Write(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.written = append(c.written, append([]byte(nil), b...))
	return len(b), nil
}

func (c *fakeConn) Read(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	return copy(b, c.read), nil
}

func (c *fakeConn) ReadBlockData(reg uint8, b []byte) error {
	if c.err != nil {
		return c.err
	}
	c.register = reg
	copy(b, c.read)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeConnector struct {
	conns  map[int]*fakeConn
	opened []int
}

func (f *fakeConnector) GetI2cConnection(address int, bus int) (gobot.Connection, error) {
	f.opened = append(f.opened, address)
	c, ok := f.conns[address]
	if !ok {
		return nil, errors.New("no device")
	}
	return c, nil
}

func (f *fakeConnector) DefaultI2cBus() int {
	return 0
}

func TestGobotBus_ReadWrite(t *testing.T) {
	aht := &fakeConn{read: []byte{0x1C, 0x19, 0x9A, 0x71, 0x6B, 0x21}}
	connector := &fakeConnector{conns: map[int]*fakeConn{0x38: aht}}
	bus := NewGobotDefaultBus(connector)
	ctx := context.Background()

	require.NoError(t, bus.WriteToAddr(ctx, 0x38, []byte{0xAC, 0x33, 0x00}))
	buf := make([]byte, 6)
	require.NoError(t, bus.ReadFromAddr(ctx, 0x38, buf))

	assert.Equal(t, [][]byte{{0xAC, 0x33, 0x00}}, aht.written)
	assert.Equal(t, aht.read, buf)
	assert.Equal(t, []int{0x38}, connector.opened, "connection is opened once per address")

	require.NoError(t, bus.Close())
	assert.True(t, aht.closed)
}

func TestGobotBus_TxToAddr(t *testing.T) {
	mcp := &fakeConn{read: []byte{0xC1, 0x90}}
	bus := NewGobotBus(&fakeConnector{conns: map[int]*fakeConn{0x18: mcp}}, 2)
	ctx := context.Background()

	buf := make([]byte, 2)
	require.NoError(t, bus.TxToAddr(ctx, 0x18, []byte{0x05}, buf))
	assert.Equal(t, byte(0x05), mcp.register)
	assert.Equal(t, []byte{0xC1, 0x90}, buf)

	err := bus.TxToAddr(ctx, 0x18, []byte{0x05, 0x06}, buf)
	assert.ErrorIs(t, err, ErrCombinedUnsupported)
}

func TestGobotBus_Errors(t *testing.T) {
	broken := &fakeConn{err: errors.New("nack")}
	bus := NewGobotBus(&fakeConnector{conns: map[int]*fakeConn{0x5A: broken}}, 1)
	ctx := context.Background()

	err := bus.WriteToAddr(ctx, 0x5A, []byte{0xF4})
	assert.EqualError(t, err, "could not write to i2c device 0x5a: nack")

	err = bus.ReadFromAddr(ctx, 0x77, make([]byte, 1))
	assert.ErrorContains(t, err, "could not open connection to 0x77 on bus 1")
}
