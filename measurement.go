package airmon

import (
	"fmt"
	"strings"
	"time"
)

// InvalidValue is what legacy consumers receive in place of a value that
// failed decoding or validation.
const InvalidValue = -1

type Quantity int

const (
	Temperature Quantity = iota
	Humidity
	ECO2
	TVOC
	Pressure
	IAQ
)

var quantityNames = map[Quantity]string{
	Temperature: "temperature",
	Humidity:    "humidity",
	ECO2:        "eco2",
	TVOC:        "tvoc",
	Pressure:    "pressure",
	IAQ:         "iaq",
}

var quantityUnits = map[Quantity]string{
	Temperature: "°C",
	Humidity:    "%RH",
	ECO2:        "ppm",
	TVOC:        "ppb",
	Pressure:    "hPa",
	IAQ:         "",
}

func (q Quantity) String() string {
	if name, ok := quantityNames[q]; ok {
		return name
	}
	return fmt.Sprintf("quantity(%d)", int(q))
}

// Unit returns the physical unit the quantity is reported in.
func (q Quantity) Unit() string {
	return quantityUnits[q]
}

// ParseQuantity is the inverse of Quantity.String.
func ParseQuantity(name string) (Quantity, error) {
	for q, n := range quantityNames {
		if strings.EqualFold(n, name) {
			return q, nil
		}
	}
	return 0, fmt.Errorf("unknown quantity %q", name)
}

// Measurement is a single decoded value. Use Valid or Invalid to build one.
type Measurement struct {
	Quantity Quantity
	Value    float64
	Valid    bool
	Err      error
}

func Valid(q Quantity, value float64) Measurement {
	return Measurement{Quantity: q, Value: value, Valid: true}
}

func Invalid(q Quantity, reason error) Measurement {
	return Measurement{Quantity: q, Value: InvalidValue, Err: reason}
}

// Legacy returns the value, or InvalidValue when the measurement is not valid.
func (m Measurement) Legacy() float64 {
	if !m.Valid {
		return InvalidValue
	}
	return m.Value
}

func (m Measurement) String() string {
	if !m.Valid {
		return fmt.Sprintf("%s: invalid (%v)", m.Quantity, m.Err)
	}
	return fmt.Sprintf("%s: %.2f%s", m.Quantity, m.Value, m.Quantity.Unit())
}

// Reading groups the measurements taken by one sensor in one cycle.
type Reading struct {
	Sensor       string
	Time         time.Time
	Measurements []Measurement
	// Err holds the reason the cycle was invalidated, if it was.
	Err error
}

// InvalidReading builds a reading where every quantity carries reason.
func InvalidReading(sensor string, at time.Time, reason error, quantities ...Quantity) Reading {
	r := Reading{Sensor: sensor, Time: at, Err: reason, Measurements: make([]Measurement, 0, len(quantities))}
	for _, q := range quantities {
		r.Measurements = append(r.Measurements, Invalid(q, reason))
	}
	return r
}

func (r Reading) Valid() bool {
	if r.Err != nil || len(r.Measurements) == 0 {
		return false
	}
	for _, m := range r.Measurements {
		if !m.Valid {
			return false
		}
	}
	return true
}

func (r Reading) Get(q Quantity) (Measurement, bool) {
	for _, m := range r.Measurements {
		if m.Quantity == q {
			return m, true
		}
	}
	return Measurement{}, false
}

// Range is an inclusive interval of plausible physical values.
type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}
