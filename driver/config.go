package driver

import (
	"log/slog"
	"time"

	"github.com/mklimuk/airmon"
)

// Command is a payload written to the sensor followed by a mandatory pause.
type Command struct {
	Payload []byte
	Delay   time.Duration
}

// Limit is the plausible range of one decoded quantity.
type Limit struct {
	Quantity airmon.Quantity
	Range    airmon.Range
}

// Config describes how to talk to one physical sensor. The driver keeps its
// own copy, so changing a Config after New has no effect.
type Config struct {
	Name    string
	BusID   string
	Address byte

	// Init is written by Initialize, and again by recovery.
	Init []Command

	// Trigger starts a measurement. With Combined set it is written in the
	// same bus transaction as the read (register pointer reads).
	Trigger  []byte
	Combined bool

	// Settle is the pause between Trigger and the read. It is never shorter
	// than MinSettle, the datasheet minimum.
	Settle    time.Duration
	MinSettle time.Duration

	// Reset is the soft reset sequence; empty when the sensor has none.
	Reset      []byte
	ResetDelay time.Duration

	ReadLength int
	Limits     []Limit

	// ResetOnRangeViolation soft-resets the sensor after an implausible value.
	ResetOnRangeViolation bool
}

func (c Config) clone() Config {
	out := c
	out.Init = make([]Command, len(c.Init))
	for i, cmd := range c.Init {
		out.Init[i] = Command{Payload: append([]byte(nil), cmd.Payload...), Delay: cmd.Delay}
	}
	out.Trigger = append([]byte(nil), c.Trigger...)
	out.Reset = append([]byte(nil), c.Reset...)
	out.Limits = append([]Limit(nil), c.Limits...)
	if out.Settle < out.MinSettle {
		out.Settle = out.MinSettle
	}
	return out
}

// Quantities lists the quantities the config validates, in order.
func (c Config) Quantities() []airmon.Quantity {
	qs := make([]airmon.Quantity, 0, len(c.Limits))
	for _, l := range c.Limits {
		qs = append(qs, l.Quantity)
	}
	return qs
}

// Codec turns a raw block into measurements. Implementations must be pure.
type Codec interface {
	Decode(raw RawBlock) []airmon.Measurement
}

// StatusInterpreter decodes the status byte(s) of a raw block.
type StatusInterpreter interface {
	Interpret(raw RawBlock) Disposition
}

// CodecFunc adapts a function to Codec.
type CodecFunc func(raw RawBlock) []airmon.Measurement

func (f CodecFunc) Decode(raw RawBlock) []airmon.Measurement {
	return f(raw)
}

// StatusFunc adapts a function to StatusInterpreter.
type StatusFunc func(raw RawBlock) Disposition

func (f StatusFunc) Interpret(raw RawBlock) Disposition {
	return f(raw)
}

// AlwaysOK is used by sensors whose result carries no status.
var AlwaysOK StatusInterpreter = StatusFunc(func(RawBlock) Disposition { return OK })

type Opt func(*Driver)

func WithLogger(logger *slog.Logger) Opt {
	return func(d *Driver) {
		d.log = logger
	}
}

// WithSleep replaces time.Sleep for every mandatory pause.
func WithSleep(sleep func(time.Duration)) Opt {
	return func(d *Driver) {
		d.sleep = sleep
	}
}

// WithSettleTime overrides the settle time. Values below the datasheet
// minimum are raised to it.
func WithSettleTime(settle time.Duration) Opt {
	return func(d *Driver) {
		d.cfg.Settle = max(settle, d.cfg.MinSettle)
	}
}

func WithClock(now func() time.Time) Opt {
	return func(d *Driver) {
		d.now = now
	}
}
