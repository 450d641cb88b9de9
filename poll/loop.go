// Package poll runs sensors at a fixed interval and forwards what they
// measure to sinks.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/airmon"
	"github.com/mklimuk/airmon/snsctx"
)

var ErrTooManyInvalid = errors.New("too many consecutive invalid readings")

// Sensor is anything producing readings; drivers of every family and the
// mock sensors satisfy it.
type Sensor interface {
	Name() string
	Measure(ctx context.Context) (airmon.Reading, error)
}

type Opt func(*Loop)

func WithInterval(interval time.Duration) Opt {
	return func(l *Loop) {
		l.interval = interval
	}
}

// WithMaxConsecutiveInvalid stops the loop once a sensor returned more than
// max invalid readings in a row. Zero disables the check.
func WithMaxConsecutiveInvalid(max int) Opt {
	return func(l *Loop) {
		l.maxInvalid = max
	}
}

// WithLegacyInvalid forwards airmon.InvalidValue for every quantity of an
// invalid reading instead of skipping it.
func WithLegacyInvalid(enabled bool) Opt {
	return func(l *Loop) {
		l.legacyInvalid = enabled
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(l *Loop) {
		l.log = logger
	}
}

// Loop polls its sensors sequentially, so sensors sharing a bus never
// overlap.
type Loop struct {
	sensors       []Sensor
	sink          Sink
	interval      time.Duration
	maxInvalid    int
	legacyInvalid bool
	log           *slog.Logger

	// cycle serialises Cycle calls
	cycle   sync.Mutex
	mx      sync.Mutex
	invalid map[string]int
}

func NewLoop(sink Sink, sensors []Sensor, opts ...Opt) *Loop {
	l := &Loop{
		sensors:  sensors,
		sink:     sink,
		interval: 10 * time.Second,
		log:      slog.Default(),
		invalid:  make(map[string]int, len(sensors)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run polls until ctx is done or a cycle fails. A cancelled context is a
// normal stop and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		if err := l.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Cycle measures every sensor once and forwards the results. Concurrent
// calls wait for each other.
func (l *Loop) Cycle(ctx context.Context) error {
	l.cycle.Lock()
	defer l.cycle.Unlock()
	for _, s := range l.sensors {
		if err := ctx.Err(); err != nil {
			return err
		}
		reading, err := s.Measure(snsctx.WithSensor(ctx, s.Name()))
		if err != nil {
			return fmt.Errorf("poll: %s: %w", s.Name(), err)
		}
		if err := l.handle(ctx, s.Name(), reading); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) handle(ctx context.Context, name string, reading airmon.Reading) error {
	l.mx.Lock()
	defer l.mx.Unlock()
	if reading.Valid() {
		l.invalid[name] = 0
		for _, m := range reading.Measurements {
			l.sink.Forward(ctx, name, m.Quantity.String(), m.Value)
		}
		return nil
	}

	l.invalid[name]++
	l.log.Warn("invalid reading", "sensor", name, "consecutive", l.invalid[name], "reason", reading.Err)
	if r, ok := l.sink.(InvalidRecorder); ok {
		r.RecordInvalid(ctx, name, reading.Err)
	}
	if l.legacyInvalid {
		for _, m := range reading.Measurements {
			l.sink.Forward(ctx, name, m.Quantity.String(), airmon.InvalidValue)
		}
	}
	if l.maxInvalid > 0 && l.invalid[name] > l.maxInvalid {
		return fmt.Errorf("poll: %s: %w (%d)", name, ErrTooManyInvalid, l.invalid[name])
	}
	return nil
}

// ConsecutiveInvalid reports the current invalid streak of a sensor.
func (l *Loop) ConsecutiveInvalid(name string) int {
	l.mx.Lock()
	defer l.mx.Unlock()
	return l.invalid[name]
}
