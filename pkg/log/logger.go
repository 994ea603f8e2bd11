package log

import (
	"context"

	"go.uber.org/zap"
)

type logCtxKey int

// IntoContext stores the given logger in the context.
func IntoContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, logCtxKey(0), logger)
}

// FromContext returns the logger stored in the context, falling back to the
// global logger if none is present.
func FromContext(ctx context.Context) *zap.Logger {
	val := ctx.Value(logCtxKey(0))
	if val != nil {
		return val.(*zap.Logger)
	}
	return zap.L()
}
