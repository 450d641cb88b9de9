package environment

import (
	"context"
	"time"

	"github.com/mklimuk/airmon"
)

// ValueBehaviorFunc produces one value of a quantity, or the reason the
// value could not be produced.
type ValueBehaviorFunc func(ctx context.Context) (float64, error)

// MockSensor is a sensor driven by behaviour functions instead of hardware.
// It reports readings exactly like a driver does: a failing behaviour
// yields an invalid reading, never an error.
type MockSensor struct {
	name       string
	quantities []airmon.Quantity
	behaviors  []ValueBehaviorFunc
	now        func() time.Time
}

// NewMockSensor creates a mock sensor reporting a single quantity.
//
// Example usage:
//
//	// Simple static value
//	sensor := NewMockSensor("office", airmon.ECO2,
//		func(ctx context.Context) (float64, error) { return 650, nil })
func NewMockSensor(name string, q airmon.Quantity, behavior ValueBehaviorFunc) *MockSensor {
	return &MockSensor{
		name:       name,
		quantities: []airmon.Quantity{q},
		behaviors:  []ValueBehaviorFunc{behavior},
		now:        time.Now,
	}
}

// NewMockTemperatureAndHumiditySensor creates a mock of an AHT-like sensor.
// The reading lists humidity first, as the AHT codec does.
//
//	temp := 20.0
//	sensor := NewMockTemperatureAndHumiditySensor("attic",
//		func(ctx context.Context) (float64, error) { return temp, nil },
//		func(ctx context.Context) (float64, error) { return 50, nil },
//	)
func NewMockTemperatureAndHumiditySensor(name string, tempBehavior, humBehavior ValueBehaviorFunc) *MockSensor {
	return &MockSensor{
		name:       name,
		quantities: []airmon.Quantity{airmon.Humidity, airmon.Temperature},
		behaviors:  []ValueBehaviorFunc{humBehavior, tempBehavior},
		now:        time.Now,
	}
}

func (m *MockSensor) Name() string {
	return m.name
}

// Measure calls every behaviour. The first failure invalidates the cycle.
func (m *MockSensor) Measure(ctx context.Context) (airmon.Reading, error) {
	at := m.now()
	reading := airmon.Reading{Sensor: m.name, Time: at}
	for i, behavior := range m.behaviors {
		v, err := behavior(ctx)
		if err != nil {
			return airmon.InvalidReading(m.name, at, err, m.quantities...), nil
		}
		reading.Measurements = append(reading.Measurements, airmon.Valid(m.quantities[i], v))
	}
	return reading, nil
}

// Static returns a behaviour always producing v.
func Static(v float64) ValueBehaviorFunc {
	return func(context.Context) (float64, error) {
		return v, nil
	}
}
