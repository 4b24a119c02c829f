// Package ctxlog carries a go-kit logger through a context.Context, so that
// deeply nested bundler code can log without threading a logger argument
// through every call.
package ctxlog

import (
	"context"

	"github.com/go-kit/kit/log"
)

type loggerCtxKey struct{}

// NewContext returns a new context with logger attached.
func NewContext(ctx context.Context, logger log.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger if none
// was attached. Callers never need to nil-check the result.
func FromContext(ctx context.Context) log.Logger {
	if logger, ok := ctx.Value(loggerCtxKey{}).(log.Logger); ok {
		return logger
	}
	return log.NewNopLogger()
}
