// Package snsctx carries per-call flags through bus transactions.
package snsctx

import "context"

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexSensor
)

// IsVerbose reports whether transports should dump raw frames.
func IsVerbose(ctx context.Context) bool {
	val, ok := ctx.Value(ctxIndexVerbose).(bool)
	return ok && val
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// Sensor returns the name of the sensor the call is made for, if any.
func Sensor(ctx context.Context) string {
	val, _ := ctx.Value(ctxIndexSensor).(string)
	return val
}

func WithSensor(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxIndexSensor, name)
}
