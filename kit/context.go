package kit

import "context"

type ctxKey int

const (
	transportKey ctxKey = iota
	requestIDKey
	traceIDKey
)

// Transports a request can arrive through.
const (
	TransportChannel = "channel"
	TransportMCP     = "mcp"
	TransportHTTP    = "http"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// GetTransport defaults to TransportChannel, the in-process page/agent route.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey).(string); ok {
		return v
	}
	return TransportChannel
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// LogAttrs returns the request metadata carried by ctx as slog key/value
// pairs. Unset IDs are omitted.
func LogAttrs(ctx context.Context) []any {
	attrs := []any{"transport", GetTransport(ctx)}
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id := GetTraceID(ctx); id != "" {
		attrs = append(attrs, "trace_id", id)
	}
	return attrs
}
