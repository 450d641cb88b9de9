package poll

import (
	"context"
	"log/slog"
)

// Sink receives one value per quantity per cycle. Forward never fails:
// delivery problems are the sink's to log.
type Sink interface {
	Forward(ctx context.Context, series, field string, value float64)
}

// InvalidRecorder is implemented by sinks that track invalid cycles.
type InvalidRecorder interface {
	RecordInvalid(ctx context.Context, series string, reason error)
}

type SinkFunc func(ctx context.Context, series, field string, value float64)

func (f SinkFunc) Forward(ctx context.Context, series, field string, value float64) {
	f(ctx, series, field, value)
}

// LogSink writes every value to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Forward(ctx context.Context, series, field string, value float64) {
	s.logger().InfoContext(ctx, "reading", "series", series, "field", field, "value", value)
}

func (s LogSink) RecordInvalid(ctx context.Context, series string, reason error) {
	s.logger().WarnContext(ctx, "invalid reading", "series", series, "reason", reason)
}

func (s LogSink) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// MultiSink fans every value out to all of its sinks, in order.
type MultiSink []Sink

func (m MultiSink) Forward(ctx context.Context, series, field string, value float64) {
	for _, s := range m {
		s.Forward(ctx, series, field, value)
	}
}

func (m MultiSink) RecordInvalid(ctx context.Context, series string, reason error) {
	for _, s := range m {
		if r, ok := s.(InvalidRecorder); ok {
			r.RecordInvalid(ctx, series, reason)
		}
	}
}
