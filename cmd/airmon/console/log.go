package console

import (
	"fmt"
	"io"
	"os"

	"github.com/mklimuk/airmon"
)

const PictoThermometer = "🌡"
const PictoHumidity = "💧"
const PictoLeaf = "🍃"
const PictoFactory = "🏭"
const PictoGauge = "⏱"
const PictoStop = "🚫"
const PictoPin = "📌"

var writer io.Writer
var errWriter io.Writer

func init() {
	writer = os.Stdout
	errWriter = os.Stderr
}

func SetOutput(w, errw io.Writer) {
	writer = w
	errWriter = errw
}

// Picto returns the pictogram printed in front of a quantity.
func Picto(q airmon.Quantity) string {
	switch q {
	case airmon.Temperature:
		return PictoThermometer
	case airmon.Humidity:
		return PictoHumidity
	case airmon.TVOC:
		return PictoLeaf
	case airmon.ECO2:
		return PictoFactory
	default:
		return PictoGauge
	}
}

// PrintReading renders one reading, one quantity per line.
func PrintReading(r airmon.Reading) {
	if !r.Valid() {
		_, _ = fmt.Fprintf(errWriter, "%s %s: %s\n", PictoStop, Bold(r.Sensor), Red(fmt.Sprintf("invalid reading: %v", r.Err)))
		return
	}
	for _, m := range r.Measurements {
		_, _ = fmt.Fprintf(writer, "%s %s %s %s\n", Picto(m.Quantity), m.Quantity, White(fmt.Sprintf("%.2f", m.Value)), m.Quantity.Unit())
	}
}

func Errorf(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(errWriter, "%s: %s\n", Red("ERROR"), fmt.Sprintf(msg, args...))
}

func Warnf(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(errWriter, "%s: %s\n", Yellow("WARN"), fmt.Sprintf(msg, args...))
}

func Infof(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(writer, "%s %s\n", White("..."), fmt.Sprintf(msg, args...))
}

func PInfof(picto, msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(writer, "%s %s\n", picto, fmt.Sprintf(msg, args...))
}

func Printf(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(writer, msg, args...)
}
