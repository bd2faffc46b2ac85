package connectivity

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hazyhaar/prquick/kit"
)

// HandlerMiddleware decorates a Handler.
type HandlerMiddleware func(next Handler) Handler

// Chain composes middlewares; the first one is the outermost.
func Chain(mws ...HandlerMiddleware) HandlerMiddleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging records each call with its duration and the request metadata in
// ctx. Payloads are never logged, only their sizes.
func Logging(logger *slog.Logger, service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			attrs := append(kit.LogAttrs(ctx),
				"service", service,
				"duration_ms", time.Since(start).Milliseconds(),
				"payload_bytes", len(payload))
			if err != nil {
				logger.WarnContext(ctx, "connectivity: call failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "connectivity: call ok", append(attrs, "response_bytes", len(resp))...)
			}
			return resp, err
		}
	}
}

// Timeout bounds a call to d. The handler keeps running on its own
// goroutine after the deadline; its late reply is dropped.
func Timeout(service string, d time.Duration) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type reply struct {
				resp []byte
				err  error
			}
			done := make(chan reply, 1)
			go func() {
				resp, err := next(ctx, payload)
				done <- reply{resp, err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					return nil, &ErrCallTimeout{Service: service}
				}
				return nil, ctx.Err()
			}
		}
	}
}

// Recovery turns a handler panic into ErrPanic.
func Recovery(logger *slog.Logger) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "connectivity: handler panic",
						"panic", r, "stack", string(debug.Stack()))
					err = &ErrPanic{Value: r}
				}
			}()
			return next(ctx, payload)
		}
	}
}
