package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/airmon"
	"github.com/mklimuk/airmon/environment"
	"github.com/mklimuk/airmon/internal/bustest"
)

type forwarded struct {
	series string
	field  string
	value  float64
}

type recordingSink struct {
	mu      sync.Mutex
	values  []forwarded
	invalid []string
}

func (s *recordingSink) Forward(_ context.Context, series, field string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, forwarded{series, field, value})
}

func (s *recordingSink) RecordInvalid(_ context.Context, series string, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalid = append(s.invalid, series)
}

var errUnplugged = errors.New("unplugged")

func failing(context.Context) (float64, error) {
	return 0, errUnplugged
}

// flaky fails the calls listed in fail and returns v otherwise.
func flaky(v float64, fail ...int) environment.ValueBehaviorFunc {
	var n int
	return func(context.Context) (float64, error) {
		n++
		for _, f := range fail {
			if f == n {
				return 0, errUnplugged
			}
		}
		return v, nil
	}
}

func TestLoop_CycleForwardsValidReadings(t *testing.T) {
	sink := &recordingSink{}
	loop := NewLoop(sink, []Sensor{
		environment.NewMockTemperatureAndHumiditySensor("attic", environment.Static(21.5), environment.Static(40)),
		environment.NewMockSensor("office", airmon.ECO2, environment.Static(650)),
	})

	require.NoError(t, loop.Cycle(context.Background()))
	assert.Equal(t, []forwarded{
		{"attic", "humidity", 40},
		{"attic", "temperature", 21.5},
		{"office", "eco2", 650},
	}, sink.values)
	assert.Empty(t, sink.invalid)
}

func TestLoop_SharedBusIsNeverUsedConcurrently(t *testing.T) {
	const cycles = 4
	hold := func(mock.Arguments) { time.Sleep(time.Millisecond) }
	bus := new(bustest.MockI2CBus)
	var sensors []Sensor
	for name, addr := range map[string]byte{"desk": 0x18, "shelf": 0x19} {
		bus.On("WriteToAddr", mock.Anything, addr, []byte{0x01, 0x00, 0x08}).Return(nil).Once()
		bus.On("TxToAddr", mock.Anything, addr, []byte{0x05}, mock.Anything).Return([]byte{0x01, 0x94}, nil).Run(hold).Times(cycles)
		s := environment.NewMCP9808(bus, environment.WithMCP9808Name(name), environment.WithMCP9808Address(addr))
		require.NoError(t, s.Initialize(context.Background()))
		sensors = append(sensors, s)
	}
	sink := &recordingSink{}
	loop := NewLoop(sink, sensors)

	var wg sync.WaitGroup
	for range cycles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, loop.Cycle(context.Background()))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, bus.MaxConcurrent(), "sensors on one bus must be polled one at a time")
	assert.Len(t, sink.values, 2*cycles)
	for _, v := range sink.values {
		assert.Equal(t, 25.25, v.value)
	}
	bus.AssertExpectations(t)
}

func TestLoop_InvalidReadingsAreSkipped(t *testing.T) {
	sink := &recordingSink{}
	loop := NewLoop(sink, []Sensor{environment.NewMockSensor("office", airmon.ECO2, failing)})

	require.NoError(t, loop.Cycle(context.Background()))
	assert.Empty(t, sink.values)
	assert.Equal(t, []string{"office"}, sink.invalid)
	assert.Equal(t, 1, loop.ConsecutiveInvalid("office"))
}

func TestLoop_LegacyInvalidForwardsSentinel(t *testing.T) {
	sink := &recordingSink{}
	loop := NewLoop(sink, []Sensor{
		environment.NewMockTemperatureAndHumiditySensor("attic", environment.Static(21.5), failing),
	}, WithLegacyInvalid(true))

	require.NoError(t, loop.Cycle(context.Background()))
	assert.Equal(t, []forwarded{
		{"attic", "humidity", airmon.InvalidValue},
		{"attic", "temperature", airmon.InvalidValue},
	}, sink.values)
}

func TestLoop_TooManyInvalid(t *testing.T) {
	sink := &recordingSink{}
	loop := NewLoop(sink, []Sensor{
		environment.NewMockSensor("ok", airmon.Temperature, environment.Static(20)),
		environment.NewMockSensor("broken", airmon.Temperature, failing),
	}, WithMaxConsecutiveInvalid(2))

	require.NoError(t, loop.Cycle(context.Background()))
	require.NoError(t, loop.Cycle(context.Background()))
	err := loop.Cycle(context.Background())
	assert.ErrorIs(t, err, ErrTooManyInvalid)
	assert.EqualError(t, err, "poll: broken: too many consecutive invalid readings (3)")
	assert.Equal(t, 0, loop.ConsecutiveInvalid("ok"))
}

func TestLoop_ValidReadingResetsStreak(t *testing.T) {
	sink := &recordingSink{}
	loop := NewLoop(sink, []Sensor{
		environment.NewMockSensor("flaky", airmon.Temperature, flaky(20, 1, 2, 4, 5)),
	}, WithMaxConsecutiveInvalid(2))

	for range 6 {
		require.NoError(t, loop.Cycle(context.Background()))
	}
	assert.Len(t, sink.values, 2)
	assert.Len(t, sink.invalid, 4)
}

type uninitialized struct{}

func (uninitialized) Name() string { return "raw" }

func (uninitialized) Measure(context.Context) (airmon.Reading, error) {
	return airmon.Reading{}, errors.New("driver not initialized")
}

func TestLoop_MeasureErrorStopsCycle(t *testing.T) {
	loop := NewLoop(&recordingSink{}, []Sensor{uninitialized{}})
	assert.EqualError(t, loop.Cycle(context.Background()), "poll: raw: driver not initialized")
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls int
	sink := &recordingSink{}
	loop := NewLoop(sink, []Sensor{
		environment.NewMockSensor("office", airmon.ECO2, func(context.Context) (float64, error) {
			calls++
			if calls == 3 {
				cancel()
			}
			return 600, nil
		}),
	}, WithInterval(time.Millisecond))

	require.NoError(t, loop.Run(ctx))
	assert.Equal(t, 3, calls)
}

func TestLoop_RunReturnsAbort(t *testing.T) {
	loop := NewLoop(&recordingSink{}, []Sensor{
		environment.NewMockSensor("broken", airmon.Temperature, failing),
	}, WithInterval(time.Millisecond), WithMaxConsecutiveInvalid(1))

	assert.ErrorIs(t, loop.Run(context.Background()), ErrTooManyInvalid)
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	var plain []forwarded
	sink := MultiSink{a, b, SinkFunc(func(_ context.Context, series, field string, value float64) {
		plain = append(plain, forwarded{series, field, value})
	})}

	sink.Forward(context.Background(), "attic", "humidity", 40)
	sink.RecordInvalid(context.Background(), "attic", errUnplugged)
	for _, s := range []*recordingSink{a, b} {
		assert.Equal(t, []forwarded{{"attic", "humidity", 40}}, s.values)
		assert.Equal(t, []string{"attic"}, s.invalid)
	}
	assert.Len(t, plain, 1)
}
