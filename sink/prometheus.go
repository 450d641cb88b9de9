// Package sink holds the poll.Sink implementations backed by external
// stores.
package sink

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mklimuk/airmon/poll"
)

var (
	_ poll.Sink            = &Prometheus{}
	_ poll.InvalidRecorder = &Prometheus{}
)

// Prometheus exposes the last value of every series/field pair as a gauge.
type Prometheus struct {
	values  *prometheus.GaugeVec
	invalid *prometheus.CounterVec
}

// NewPrometheus registers the collectors with reg.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	p := &Prometheus{
		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reading",
				Help:      "Last valid value measured by a sensor (units depend on the field)",
			},
			[]string{"series", "field"},
		),
		invalid: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalid_readings_total",
				Help:      "Measurement cycles that produced an invalid reading",
			},
			[]string{"series"},
		),
	}
	for _, c := range []prometheus.Collector{p.values, p.invalid} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) Forward(_ context.Context, series, field string, value float64) {
	p.values.WithLabelValues(series, field).Set(value)
}

// RecordInvalid counts the cycle and drops the stale gauges of the series,
// so scrapes show a gap instead of the last good value.
func (p *Prometheus) RecordInvalid(_ context.Context, series string, _ error) {
	p.invalid.WithLabelValues(series).Inc()
	p.values.DeletePartialMatch(prometheus.Labels{"series": series})
}
