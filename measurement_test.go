package airmon

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange_Contains(t *testing.T) {
	r := Range{Min: 5, Max: 95}
	tests := []struct {
		given    float64
		expected bool
	}{
		{5, true},
		{95, true},
		{50, true},
		{95.0001, false},
		{4.9999, false},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, r.Contains(test.given), "value %v", test.given)
	}
}

func TestMeasurement_Legacy(t *testing.T) {
	assert.Equal(t, 21.5, Valid(Temperature, 21.5).Legacy())
	inv := Invalid(Humidity, ErrSensorBusy)
	assert.False(t, inv.Valid)
	assert.Equal(t, float64(InvalidValue), inv.Legacy())
	assert.ErrorIs(t, inv.Err, ErrSensorBusy)
}

func TestReading_Valid(t *testing.T) {
	now := time.Now()
	r := Reading{Sensor: "aht10", Time: now, Measurements: []Measurement{Valid(Temperature, 20), Valid(Humidity, 40)}}
	assert.True(t, r.Valid())

	m, ok := r.Get(Humidity)
	require.True(t, ok)
	assert.Equal(t, 40.0, m.Value)
	_, ok = r.Get(ECO2)
	assert.False(t, ok)

	inv := InvalidReading("ccs811", now, ErrSensorDataStale, ECO2, TVOC)
	assert.False(t, inv.Valid())
	require.Len(t, inv.Measurements, 2)
	for _, m := range inv.Measurements {
		assert.False(t, m.Valid)
		assert.True(t, errors.Is(m.Err, ErrSensorDataStale))
	}

	assert.False(t, Reading{}.Valid(), "empty reading is never valid")
}

func TestParseQuantity(t *testing.T) {
	for _, q := range []Quantity{Temperature, Humidity, ECO2, TVOC, Pressure, IAQ} {
		parsed, err := ParseQuantity(q.String())
		require.NoError(t, err)
		assert.Equal(t, q, parsed)
	}
	_, err := ParseQuantity("radon")
	assert.Error(t, err)
}
