package observability

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldRequestID is the field name for request ID.
	LogFieldRequestID = "request_id"
	// LogFieldStrategy is the field name for the interception strategy.
	LogFieldStrategy = "strategy"
	// LogFieldCache is the field name for the cache outcome (hit, miss, fallback...).
	LogFieldCache = "cache"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldURL is the field name for the request URL.
	LogFieldURL = "url"
	// LogFieldNamespace is the field name for a cache namespace.
	LogFieldNamespace = "namespace"
	// LogFieldVersion is the field name for a deployment version.
	LogFieldVersion = "version"
)

// NewLogger returns the process logger: text for dev and demo, JSON for prod.
func NewLogger(w io.Writer, mode string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if mode != "prod" {
		opts.Level = slog.LevelDebug
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// RequestContext represents the context for a single intercepted request with structured logging.
type RequestContext struct {
	RequestID string
	Strategy  string
	URL       string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewRequestContext creates a new request context with a generated request ID.
func NewRequestContext(logger *slog.Logger, strategy, url string) *RequestContext {
	return NewRequestContextWithID(logger, generateRequestID(), strategy, url)
}

// NewRequestContextWithID creates a new request context with a specific request ID.
func NewRequestContextWithID(logger *slog.Logger, requestID, strategy, url string) *RequestContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestContext{
		RequestID: requestID,
		Strategy:  strategy,
		URL:       url,
		StartTime: time.Now(),
		Logger:    logger,
	}
}

// Debug logs a debug message.
func (r *RequestContext) Debug(msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(context.Background(), slog.LevelDebug, msg, r.baseAttrsAppended(attrs...)...)
}

// Warn logs a warning message.
func (r *RequestContext) Warn(msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(context.Background(), slog.LevelWarn, msg, r.baseAttrsAppended(attrs...)...)
}

// Error logs an error message with the error.
func (r *RequestContext) Error(msg string, err error, attrs ...slog.Attr) {
	allAttrs := append(attrs, slog.String("error", err.Error()))
	r.Logger.LogAttrs(context.Background(), slog.LevelError, msg, r.baseAttrsAppended(allAttrs...)...)
}

// Done logs the final outcome of the request with its duration.
func (r *RequestContext) Done(outcome string) {
	r.Debug("request intercepted",
		slog.String(LogFieldCache, outcome),
		slog.Int64(LogFieldDuration, r.DurationMs()),
	)
}

// Duration returns the elapsed time since the request started.
func (r *RequestContext) Duration() time.Duration {
	return time.Since(r.StartTime)
}

// DurationMs returns the elapsed time in milliseconds.
func (r *RequestContext) DurationMs() int64 {
	return r.Duration().Milliseconds()
}

func (r *RequestContext) baseAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String(LogFieldRequestID, r.RequestID),
		slog.String(LogFieldStrategy, r.Strategy),
		slog.String(LogFieldURL, r.URL),
	}
}

func (r *RequestContext) baseAttrsAppended(attrs ...slog.Attr) []slog.Attr {
	base := r.baseAttrs()
	return append(base, attrs...)
}

// generateRequestID generates a unique request ID using full UUID.
func generateRequestID() string {
	return uuid.New().String()
}

type ctxKey struct{}

// WithRequestContext adds the request context to the context.
func WithRequestContext(ctx context.Context, reqCtx *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, reqCtx)
}

// FromContext extracts the request context from the context.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	reqCtx, ok := ctx.Value(ctxKey{}).(*RequestContext)
	return reqCtx, ok
}
