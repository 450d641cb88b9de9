package sink

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Forward(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "airmon")
	require.NoError(t, err)

	p.Forward(context.Background(), "attic", "temperature", 21.5)
	p.Forward(context.Background(), "attic", "temperature", 22)
	p.Forward(context.Background(), "office", "eco2", 650)

	assert.Equal(t, 22.0, testutil.ToFloat64(p.values.WithLabelValues("attic", "temperature")))
	assert.Equal(t, 650.0, testutil.ToFloat64(p.values.WithLabelValues("office", "eco2")))

	expected := `
# HELP airmon_reading Last valid value measured by a sensor (units depend on the field)
# TYPE airmon_reading gauge
airmon_reading{field="eco2",series="office"} 650
airmon_reading{field="temperature",series="attic"} 22
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "airmon_reading"))
}

func TestPrometheus_RecordInvalid(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg, "airmon")
	require.NoError(t, err)

	p.Forward(context.Background(), "attic", "temperature", 21.5)
	p.Forward(context.Background(), "office", "eco2", 650)
	p.RecordInvalid(context.Background(), "attic", errors.New("sensor busy"))
	p.RecordInvalid(context.Background(), "attic", errors.New("sensor busy"))

	assert.Equal(t, 2.0, testutil.ToFloat64(p.invalid.WithLabelValues("attic")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.values), "stale attic gauge dropped")
}

func TestPrometheus_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg, "airmon")
	require.NoError(t, err)
	_, err = NewPrometheus(reg, "airmon")
	assert.Error(t, err)
}
