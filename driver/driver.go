// Package driver implements the measurement cycle shared by all sensors:
// trigger, settle, read, interpret status, decode, validate and recover.
//
// A sensor family plugs in a Codec and a StatusInterpreter; everything that
// differs between two sensors of one family lives in Config.
//
//	d := driver.New(bus, cfg, codec, status)
//	if err := d.Initialize(ctx); err != nil { ... }
//	reading, err := d.Measure(ctx) // err is only ErrNotInitialized
//
// Measure never fails because of the sensor: bus errors, status faults and
// implausible values produce an invalid Reading, and the driver attempts
// best-effort recovery before returning it.
package driver

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

var ErrNotInitialized = errors.New("driver not initialized")

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateMeasuring
	StateRecovering
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateMeasuring:
		return "measuring"
	case StateRecovering:
		return "recovering"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Verifier is implemented by codecs whose blocks carry a checksum. A block
// failing verification is treated like a failed bus transaction.
type Verifier interface {
	Verify(raw RawBlock) error
}

// Stats counts what happened to a driver since it was created.
type Stats struct {
	Cycles             int
	Invalid            int
	ConsecutiveInvalid int
	Reinitializations  int
	Resets             int
	// FailedRecoveries counts resets and re-initializations that did not
	// go through. They are not included in Resets or Reinitializations.
	FailedRecoveries int
}

type Driver struct {
	mx     sync.Mutex
	bus    airmon.I2CBus
	cfg    Config
	codec  Codec
	status StatusInterpreter
	log    *slog.Logger
	sleep  func(time.Duration)
	now    func() time.Time
	state  State
	stats  Stats
}

func New(bus airmon.I2CBus, cfg Config, codec Codec, status StatusInterpreter, opts ...Opt) *Driver {
	if status == nil {
		status = AlwaysOK
	}
	d := &Driver{
		bus:    bus,
		cfg:    cfg.clone(),
		codec:  codec,
		status: status,
		log:    slog.Default(),
		sleep:  time.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string {
	return d.cfg.Name
}

// Config returns a copy of the configuration in use.
func (d *Driver) Config() Config {
	return d.cfg.clone()
}

func (d *Driver) State() State {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.state
}

func (d *Driver) Stats() Stats {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.stats
}

// Initialize writes the init sequence. It must succeed once before Measure.
func (d *Driver) Initialize(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.initialize(ctx); err != nil {
		return err
	}
	d.state = StateReady
	return nil
}

// SoftReset writes the reset sequence and waits for the sensor to restart.
// It does nothing for sensors without a reset sequence.
func (d *Driver) SoftReset(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.softReset(ctx)
}

// Measure runs one measurement cycle. It blocks for the settle time and
// cannot be interrupted once the trigger has been written.
func (d *Driver) Measure(ctx context.Context) (airmon.Reading, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.state == StateUninitialized {
		return airmon.Reading{}, fmt.Errorf("%s: %w", d.cfg.Name, ErrNotInitialized)
	}
	d.state = StateMeasuring
	reading := d.measure(ctx)
	d.state = StateReady

	d.stats.Cycles++
	if reading.Valid() {
		d.stats.ConsecutiveInvalid = 0
	} else {
		d.stats.Invalid++
		d.stats.ConsecutiveInvalid++
	}
	return reading, nil
}

func (d *Driver) measure(ctx context.Context) airmon.Reading {
	at := d.now()
	if err := ctx.Err(); err != nil {
		return d.invalid(at, err)
	}
	// the sequence must complete once started
	ctx = context.WithoutCancel(ctx)

	raw, err := d.transact(ctx)
	if err != nil {
		d.log.Warn("bus transaction failed", "sensor", d.cfg.Name, "error", err)
		return d.invalid(at, fmt.Errorf("%w: %w", airmon.ErrTransport, err))
	}
	if snsctx.IsVerbose(ctx) {
		d.log.Debug("raw block", "sensor", d.cfg.Name, "data", raw.String())
	}
	if v, ok := d.codec.(Verifier); ok {
		if err := v.Verify(raw); err != nil {
			d.log.Warn("corrupted block", "sensor", d.cfg.Name, "data", raw.String(), "error", err)
			return d.invalid(at, err)
		}
	}

	disp := d.status.Interpret(raw)
	if !disp.OK() {
		d.log.Warn("sensor not ready", "sensor", d.cfg.Name, "status", disp.String(), "data", raw.String())
		d.recover(ctx, disp.recovery())
		return d.invalid(at, disp.Err())
	}

	measurements := d.codec.Decode(raw)
	if err := d.validate(measurements); err != nil {
		d.log.Warn("implausible value", "sensor", d.cfg.Name, "error", err, "data", raw.String())
		if d.cfg.ResetOnRangeViolation {
			d.recover(ctx, recoverReset)
		}
		return d.invalid(at, err)
	}
	return airmon.Reading{Sensor: d.cfg.Name, Time: at, Measurements: measurements}
}

func (d *Driver) transact(ctx context.Context) (RawBlock, error) {
	buf := make([]byte, d.cfg.ReadLength)
	if d.cfg.Combined {
		d.pause(d.cfg.Settle)
		if err := d.bus.TxToAddr(ctx, d.cfg.Address, d.cfg.Trigger, buf); err != nil {
			return RawBlock{}, err
		}
		return NewRawBlock(buf), nil
	}
	if len(d.cfg.Trigger) > 0 {
		if err := d.bus.WriteToAddr(ctx, d.cfg.Address, d.cfg.Trigger); err != nil {
			return RawBlock{}, fmt.Errorf("trigger failed: %w", err)
		}
	}
	d.pause(d.cfg.Settle)
	if err := d.bus.ReadFromAddr(ctx, d.cfg.Address, buf); err != nil {
		return RawBlock{}, fmt.Errorf("read failed: %w", err)
	}
	return NewRawBlock(buf), nil
}

func (d *Driver) validate(measurements []airmon.Measurement) error {
	for _, limit := range d.cfg.Limits {
		var found bool
		for _, m := range measurements {
			if m.Quantity != limit.Quantity {
				continue
			}
			found = true
			if !limit.Range.Contains(m.Value) {
				return fmt.Errorf("%w: %s %.4f outside %s", airmon.ErrSensorRangeViolation, m.Quantity, m.Value, limit.Range)
			}
		}
		if !found {
			return fmt.Errorf("%w: no %s decoded", airmon.ErrSensorRangeViolation, limit.Quantity)
		}
	}
	return nil
}

func (d *Driver) invalid(at time.Time, reason error) airmon.Reading {
	return airmon.InvalidReading(d.cfg.Name, at, reason, d.cfg.Quantities()...)
}

// recover is best effort: failures are logged and the driver stays usable.
func (d *Driver) recover(ctx context.Context, action recovery) {
	if action == recoverNone {
		return
	}
	prev := d.state
	d.state = StateRecovering
	defer func() { d.state = prev }()

	if action == recoverReset || action == recoverResetReinit {
		if err := d.softReset(ctx); err != nil {
			d.stats.FailedRecoveries++
			d.log.Error("soft reset failed", "sensor", d.cfg.Name, "error", err)
		}
	}
	if action == recoverReinit || action == recoverResetReinit {
		if err := d.initialize(ctx); err != nil {
			d.stats.FailedRecoveries++
			d.log.Error("re-initialization failed", "sensor", d.cfg.Name, "error", err)
			return
		}
		d.stats.Reinitializations++
	}
}

func (d *Driver) initialize(ctx context.Context) error {
	for i, cmd := range d.cfg.Init {
		if err := d.bus.WriteToAddr(ctx, d.cfg.Address, cmd.Payload); err != nil {
			return fmt.Errorf("%s: init command %d failed: %w", d.cfg.Name, i, err)
		}
		d.pause(cmd.Delay)
	}
	d.log.Info("sensor initialized", "sensor", d.cfg.Name, "bus", d.cfg.BusID, "addr", fmt.Sprintf("%#x", d.cfg.Address))
	return nil
}

func (d *Driver) softReset(ctx context.Context) error {
	if len(d.cfg.Reset) == 0 {
		return nil
	}
	if err := d.bus.WriteToAddr(ctx, d.cfg.Address, d.cfg.Reset); err != nil {
		return fmt.Errorf("%s: soft reset failed: %w", d.cfg.Name, err)
	}
	d.stats.Resets++
	d.pause(d.cfg.ResetDelay)
	d.log.Info("sensor soft reset", "sensor", d.cfg.Name)
	return nil
}

func (d *Driver) pause(delay time.Duration) {
	if delay > 0 {
		d.sleep(delay)
	}
}
