package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	// LoggerKey carries the request- or job-scoped logger.
	LoggerKey contextKey = "logger"
	// RequestIDKey carries the inbound request ID.
	RequestIDKey contextKey = "request_id"
	// TenantIDKey carries the tenant owning the current work.
	TenantIDKey contextKey = "tenant_id"
	// UserIDKey carries the authenticated user.
	UserIDKey contextKey = "user_id"
	// ExecutionIDKey carries the sync execution a pipeline run belongs to.
	ExecutionIDKey contextKey = "execution_id"
)

// WithContext attaches l to ctx so downstream code can recover it.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithTenantID stamps the tenant onto both the context and the logger.
func WithTenantID(ctx context.Context, l *zap.Logger, tenantID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	scoped := l.With(zap.String("tenant_id", tenantID))
	return WithContext(ctx, scoped), scoped
}

// WithUserID stamps the authenticated user onto both the context and the logger.
func WithUserID(ctx context.Context, l *zap.Logger, userID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	scoped := l.With(zap.String("user_id", userID))
	return WithContext(ctx, scoped), scoped
}

// WithExecutionID stamps the sync execution onto both the context and the
// logger so connector and persistence entries correlate with the run.
func WithExecutionID(ctx context.Context, l *zap.Logger, executionID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, ExecutionIDKey, executionID)
	scoped := l.With(zap.String("execution_id", executionID))
	return WithContext(ctx, scoped), scoped
}

// GetRequestID returns the request ID stored in ctx, if any.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// GetTenantID returns the tenant ID stored in ctx, if any.
func GetTenantID(ctx context.Context) string {
	return stringValue(ctx, TenantIDKey)
}

// GetUserID returns the user ID stored in ctx, if any.
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, UserIDKey)
}

// GetExecutionID returns the sync execution ID stored in ctx, if any.
func GetExecutionID(ctx context.Context) string {
	return stringValue(ctx, ExecutionIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// ContextLogger decorates every entry with the identifiers found in its
// context: trace/span IDs from the active span plus request, tenant, user
// and execution IDs when present.
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L wraps the logger stored in ctx.
//
//	logger.L(ctx).Info("cursor advanced", zap.Time("watermark", wm))
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

// With returns a child ContextLogger carrying extra fields.
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{ctx: cl.ctx, logger: cl.logger.With(fields...)}
}

// Zap returns the underlying logger with all context fields applied.
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.scoped()
}

// Debug logs at debug level with context fields applied.
func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) {
	cl.scoped().Debug(msg, fields...)
}

// Info logs at info level with context fields applied.
func (cl *ContextLogger) Info(msg string, fields ...zap.Field) {
	cl.scoped().Info(msg, fields...)
}

// Warn logs at warn level with context fields applied.
func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) {
	cl.scoped().Warn(msg, fields...)
}

// Error logs at error level with context fields applied.
func (cl *ContextLogger) Error(msg string, fields ...zap.Field) {
	cl.scoped().Error(msg, fields...)
}

func (cl *ContextLogger) scoped() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}

	var fields []zap.Field
	if sc := trace.SpanContextFromContext(cl.ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	for _, kv := range []struct {
		key  contextKey
		name string
	}{
		{RequestIDKey, "request_id"},
		{TenantIDKey, "tenant_id"},
		{UserIDKey, "user_id"},
		{ExecutionIDKey, "execution_id"},
	} {
		if v := stringValue(cl.ctx, kv.key); v != "" {
			fields = append(fields, zap.String(kv.name, v))
		}
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
