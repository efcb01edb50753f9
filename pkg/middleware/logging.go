package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/vango-dev/vstore/pkg/store"
)

// Logging creates middleware that logs every settled dispatch. Successful
// and no-op calls log at Debug, failures at Warn. A nil logger uses
// slog.Default.
func Logging(logger *slog.Logger) store.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return store.MiddlewareFunc(func(ctx context.Context, call *store.Call, next func(context.Context) store.Outcome) store.Outcome {
		outcome := next(ctx)

		attrs := []slog.Attr{
			slog.String("store", call.Store),
			slog.String("action", call.Action),
			slog.String("kind", call.Kind.String()),
			slog.String("call_id", call.ID),
			slog.String("status", outcome.Status.String()),
			slog.Duration("duration", time.Since(call.Started)),
		}
		level := slog.LevelDebug
		if outcome.Status == store.StatusFailure {
			level = slog.LevelWarn
			attrs = append(attrs, slog.Any("error", outcome.Err))
		}
		logger.LogAttrs(ctx, level, "store dispatch", attrs...)
		return outcome
	})
}
