package air

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/airmon"
	"github.com/mklimuk/airmon/driver"
	"github.com/mklimuk/airmon/internal/bustest"
)

var (
	appStart = []byte{0xF4}
	measMode = []byte{0x01, 0x10}
	resetSeq = []byte{0xFF, 0x11, 0xE5, 0x72, 0x8A}
)

func newTestCCS811(t *testing.T, bus *bustest.MockI2CBus) (*CCS811, *bustest.Sleeps) {
	t.Helper()
	sleeps := &bustest.Sleeps{}
	bus.On("WriteToAddr", mock.Anything, byte(CCS811DefaultAddress), appStart).Return(nil).Once()
	bus.On("WriteToAddr", mock.Anything, byte(CCS811DefaultAddress), measMode).Return(nil).Once()
	s := NewCCS811(bus, WithDriverOpts(driver.WithSleep(sleeps.Sleep)))
	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, sleeps.Delays)
	sleeps.Delays = nil
	return s, sleeps
}

func expectResult(bus *bustest.MockI2CBus, block []byte) {
	bus.On("TxToAddr", mock.Anything, byte(CCS811DefaultAddress), []byte{0x02}, mock.Anything).Return(block, nil).Once()
}

func TestCCS811_Decode(t *testing.T) {
	tests := []struct {
		given        []byte
		expectedECO2 float64
		expectedTVOC float64
	}{
		{[]byte{0x01, 0x90, 0x00, 0x64, 0x98, 0x00, 0x00, 0x00}, 400, 100},
		{[]byte{0x20, 0x00, 0x04, 0xA3, 0x98, 0x00, 0x00, 0x00}, 8192, 1187},
		{[]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, 0, 0},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			ms := CCS811Codec{}.Decode(driver.NewRawBlock(test.given))
			require.Len(t, ms, 2)
			assert.Equal(t, airmon.ECO2, ms[0].Quantity)
			assert.Equal(t, test.expectedECO2, ms[0].Value)
			assert.Equal(t, airmon.TVOC, ms[1].Quantity)
			assert.Equal(t, test.expectedTVOC, ms[1].Value)
		})
	}
}

func TestCCS811_DecodeRawData(t *testing.T) {
	current, adc := DecodeRawData(driver.NewRawBlock([]byte{0, 0, 0, 0, 0, 0, 0x7F, 0x10}))
	assert.Equal(t, uint8(0x1F), current)
	assert.Equal(t, uint16(0x310), adc)
}

func TestInterpretCCS811Status(t *testing.T) {
	tests := []struct {
		status   byte
		errorID  byte
		expected driver.Disposition
	}{
		{0x98, 0x00, driver.OK},
		{0x99, 0x01, driver.HasError(driver.CodeWriteRegInvalid)},
		{0x99, 0x02, driver.HasError(driver.CodeReadRegInvalid)},
		{0x99, 0x04, driver.HasError(driver.CodeMeasModeInvalid)},
		{0x99, 0x08, driver.HasError(driver.CodeMaxResistance)},
		{0x99, 0x18, driver.HasError(driver.CodeMaxResistance)},
		{0x99, 0x10, driver.HasError(driver.CodeHeaterFault)},
		{0x99, 0x20, driver.HasError(driver.CodeHeaterSupply)},
		{0x01, 0x00, driver.HasError(driver.CodeUnknown)},
		{0x01, 0xC0, driver.HasError(driver.CodeUnknown)},
		{0x90, 0x00, driver.Dispose(driver.StatusNoNewData)},
		{0x88, 0x00, driver.Dispose(driver.StatusFirmwareNotLoaded)},
		{0x18, 0x00, driver.Dispose(driver.StatusNotInAppMode)},
		{0x00, 0x00, driver.Dispose(driver.StatusNoNewData)},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString([]byte{test.status, test.errorID}), func(t *testing.T) {
			block := []byte{0, 0, 0, 0, test.status, test.errorID, 0, 0}
			assert.Equal(t, test.expected, InterpretCCS811Status(driver.NewRawBlock(block)))
		})
	}
}

func TestCCS811_Measure(t *testing.T) {
	bus := new(bustest.MockI2CBus)
	s, sleeps := newTestCCS811(t, bus)
	expectResult(bus, []byte{0x01, 0x90, 0x00, 0x64, 0x98, 0x00, 0x00, 0x00})

	eco2, tvoc, err := s.GetECO2TVOC(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 400.0, eco2)
	assert.Equal(t, 100.0, tvoc)
	assert.Empty(t, sleeps.Delays)
	bus.AssertExpectations(t)
}

func TestCCS811_HeaterFaultResetsAndReinitializes(t *testing.T) {
	bus := new(bustest.MockI2CBus)
	s, _ := newTestCCS811(t, bus)
	expectResult(bus, []byte{0x01, 0x90, 0x00, 0x64, 0x99, 0x10, 0x00, 0x00})
	bus.On("WriteToAddr", mock.Anything, byte(CCS811DefaultAddress), resetSeq).Return(nil).Once()
	bus.On("WriteToAddr", mock.Anything, byte(CCS811DefaultAddress), appStart).Return(nil).Once()
	bus.On("WriteToAddr", mock.Anything, byte(CCS811DefaultAddress), measMode).Return(nil).Once()

	eco2, tvoc, err := s.GetECO2TVOC(context.Background())
	assert.ErrorIs(t, err, airmon.ErrSensorFirmwareFault)
	assert.EqualError(t, err, "sensor firmware fault: HEATER_FAULT")
	assert.Equal(t, float64(airmon.InvalidValue), eco2)
	assert.Equal(t, float64(airmon.InvalidValue), tvoc)
	assert.Equal(t, 1, s.Stats().Resets)
	assert.Equal(t, 1, s.Stats().Reinitializations)
	bus.AssertExpectations(t)
}

func TestCCS811_NoNewDataIsNotRecovered(t *testing.T) {
	bus := new(bustest.MockI2CBus)
	s, _ := newTestCCS811(t, bus)
	expectResult(bus, []byte{0x01, 0x90, 0x00, 0x64, 0x90, 0x00, 0x00, 0x00})

	r, err := s.Measure(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, r.Err, airmon.ErrSensorDataStale)
	assert.Len(t, bus.Writes(CCS811DefaultAddress), 2)
	bus.AssertExpectations(t)
}

func TestCCS811_RangeViolationInvalidatesBoth(t *testing.T) {
	bus := new(bustest.MockI2CBus)
	s, _ := newTestCCS811(t, bus)
	// eCO2 below the 400 ppm floor, TVOC plausible
	expectResult(bus, []byte{0x01, 0x00, 0x00, 0x64, 0x98, 0x00, 0x00, 0x00})

	r, err := s.Measure(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Valid())
	assert.ErrorIs(t, r.Err, airmon.ErrSensorRangeViolation)
	for _, m := range r.Measurements {
		assert.False(t, m.Valid, m.Quantity.String())
	}
	assert.Equal(t, 0, s.Stats().Resets)
	bus.AssertExpectations(t)
}

func TestCCS811_AlternateAddress(t *testing.T) {
	bus := new(bustest.MockI2CBus)
	s := NewCCS811(bus, WithAddress(CCS811AlternateAddress), WithName("office"))
	assert.Equal(t, byte(0x5B), s.Config().Address)
	assert.Equal(t, "office", s.Name())
}

func TestCCS811_MeasureToleratesAnyStatus(t *testing.T) {
	errorIDs := []byte{0x00, 0x01, 0x02, 0x04, 0x08, 0x10, 0x20, 0x40, 0x80, 0xFF}
	for status := range 256 {
		for _, id := range errorIDs {
			t.Run(fmt.Sprintf("%02x-%02x", status, id), func(t *testing.T) {
				block := []byte{0x01, 0x90, 0x00, 0x64, byte(status), id, 0x00, 0x00}
				bus := new(bustest.MockI2CBus)
				s, _ := newTestCCS811(t, bus)
				expectResult(bus, block)
				bus.On("WriteToAddr", mock.Anything, byte(CCS811DefaultAddress), resetSeq).Return(nil).Maybe()
				bus.On("WriteToAddr", mock.Anything, byte(CCS811DefaultAddress), appStart).Return(nil).Maybe()
				bus.On("WriteToAddr", mock.Anything, byte(CCS811DefaultAddress), measMode).Return(nil).Maybe()

				r, err := s.Measure(context.Background())
				require.NoError(t, err)
				ready := status&0x01 == 0 && status&0x08 != 0 && status&0x10 != 0 && status&0x80 != 0
				assert.Equal(t, ready, r.Valid())
				assert.Equal(t, InterpretCCS811Status(driver.NewRawBlock(block)).OK(), r.Valid())
				if status&0x01 != 0 {
					assert.ErrorIs(t, r.Err, airmon.ErrSensorFirmwareFault)
					assert.Equal(t, 1, s.Stats().Reinitializations)
				}
				bus.AssertExpectations(t)
			})
		}
	}
}
