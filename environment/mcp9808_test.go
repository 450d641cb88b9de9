package environment

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/airmon"
	"github.com/mklimuk/airmon/driver"
	"github.com/mklimuk/airmon/internal/bustest"
)

var mcp9808Init = []byte{0x01, 0x00, 0x08}

func newTestMCP9808(t *testing.T, bus *bustest.MockI2CBus) *MCP9808 {
	t.Helper()
	bus.On("WriteToAddr", mock.Anything, byte(MCP9808DefaultAddress), mcp9808Init).Return(nil).Once()
	s := NewMCP9808(bus, WithMCP9808DriverOpts(driver.WithSleep(func(time.Duration) {
		t.Fatal("mcp9808 must not sleep")
	})))
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func TestMCP9808_Convert(t *testing.T) {
	tests := []struct {
		given    []byte
		expected float64
	}{
		{[]byte{0x00, 0x00}, 0},
		{[]byte{0x01, 0x94}, 25.25},
		{[]byte{0xC1, 0x94}, 25.25},
		{[]byte{0x07, 0xD0}, 125},
		{[]byte{0x08, 0x20}, 130},
		{[]byte{0x1F, 0xF0}, -1},
		{[]byte{0x1D, 0x80}, -40},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			assert.Equal(t, test.expected, convertMCP9808(driver.NewRawBlock(test.given)))
		})
	}
}

func TestMCP9808_Measure(t *testing.T) {
	bus := new(bustest.MockI2CBus)
	s := newTestMCP9808(t, bus)
	bus.On("TxToAddr", mock.Anything, byte(MCP9808DefaultAddress), []byte{0x05}, mock.Anything).Return([]byte{0x01, 0x94}, nil).Once()

	temp, err := s.GetTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25.25, temp)
	bus.AssertExpectations(t)
}

func TestMCP9808_OutOfRangeIsNotReset(t *testing.T) {
	bus := new(bustest.MockI2CBus)
	s := newTestMCP9808(t, bus)
	bus.On("TxToAddr", mock.Anything, byte(MCP9808DefaultAddress), []byte{0x05}, mock.Anything).Return([]byte{0x08, 0x20}, nil).Once()

	r, err := s.Measure(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Valid())
	assert.ErrorIs(t, r.Err, airmon.ErrSensorRangeViolation)
	m, ok := r.Get(airmon.Temperature)
	require.True(t, ok)
	assert.Equal(t, float64(airmon.InvalidValue), m.Legacy())
	assert.Len(t, bus.Writes(MCP9808DefaultAddress), 1, "only the init sequence is written")
	assert.Equal(t, 0, s.Stats().Resets)
	bus.AssertExpectations(t)
}

func TestMCP9808_TransportFailure(t *testing.T) {
	bus := new(bustest.MockI2CBus)
	s := newTestMCP9808(t, bus)
	bus.On("TxToAddr", mock.Anything, byte(MCP9808DefaultAddress), []byte{0x05}, mock.Anything).Return(nil, errors.New("timeout")).Once()

	temp, err := s.GetTemperature(context.Background())
	assert.ErrorIs(t, err, airmon.ErrTransport)
	assert.Equal(t, float64(airmon.InvalidValue), temp)
}
