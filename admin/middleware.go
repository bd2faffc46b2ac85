package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/prquick/idgen"
	"github.com/hazyhaar/prquick/kit"
)

type contextKey string

// LoggerKey holds the per-request logger.
const LoggerKey contextKey = "admin_logger"

// SecurityHeaders sets restrictive headers on every response. The admin
// surface serves JSON only, so nothing may be framed, sniffed or scripted.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// HeadToGet converts HEAD requests to GET so that routes registered with
// r.Get() answer HEAD probes instead of 405.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

// TraceID tags each request with an id (context, X-Trace-ID header and a
// per-request logger).
func TraceID(base *slog.Logger, gen idgen.Generator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := gen()
			ctx := kit.WithTraceID(r.Context(), traceID)
			ctx = kit.WithTransport(ctx, kit.TransportHTTP)
			w.Header().Set("X-Trace-ID", traceID)

			logger := base.With(append(kit.LogAttrs(ctx), "method", r.Method, "path", r.URL.Path)...)
			ctx = context.WithValue(ctx, LoggerKey, logger)
			logger.Debug("admin: request")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLogger returns the per-request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
