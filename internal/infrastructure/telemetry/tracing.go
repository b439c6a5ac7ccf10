package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer all business spans are started from.
const TracerName = "synchub-backend"

// SpanOption configures how a business span is started.
type SpanOption func(*spanOptions)

type spanOptions struct {
	attrs []attribute.KeyValue
	kind  trace.SpanKind
}

// WithAttribute attaches a start-time attribute to the span.
func WithAttribute(key string, value interface{}) SpanOption {
	return func(o *spanOptions) {
		o.attrs = append(o.attrs, toAttribute(key, value))
	}
}

// WithSpanKind overrides the default internal span kind.
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(o *spanOptions) {
		o.kind = kind
	}
}

// StartSpan opens a span on the global tracer. The caller owns span.End.
//
//	ctx, span := telemetry.StartSpan(ctx, "sync.pull_batch")
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	o := &spanOptions{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(o)
	}

	start := []trace.SpanStartOption{trace.WithSpanKind(o.kind)}
	if len(o.attrs) > 0 {
		start = append(start, trace.WithAttributes(o.attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, start...)
}

// StartServiceSpan opens a span named {service}.{method}, the convention
// the application services use ("sync.submit_execution", "conflict.resolve").
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, method), opts...)
}

// SetAttributes sets attributes from alternating key/value arguments.
// Keys that are not strings are skipped.
func SetAttributes(span trace.Span, keyValues ...interface{}) {
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		if key, ok := keyValues[i].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[i+1]))
		}
	}
	span.SetAttributes(attrs...)
}

// SetAttribute sets a single attribute on the span.
func SetAttribute(span trace.Span, key string, value interface{}) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttribute(key, value))
}

// RecordError records err on the span and marks its status as failed.
// Nil spans and nil errors are ignored.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as explicitly successful.
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// AddEvent records a timestamped event with alternating key/value attributes.
//
//	telemetry.AddEvent(span, "watermark_advanced",
//	    "mapping_id", m.ID.String(),
//	    "record_count", pushed,
//	)
func AddEvent(span trace.Span, name string, keyValues ...interface{}) {
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		if key, ok := keyValues[i].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[i+1]))
		}
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// Span attribute keys shared by the application services. Metric attribute
// keys live in metrics.go; these are plain strings for trace spans.
const (
	SpanAttrConnectionID   = "connection_id"
	SpanAttrConnectionCode = "connection_code"
	SpanAttrConnectorType  = "connector_type"

	SpanAttrExecutionID   = "execution_id"
	SpanAttrMappingID     = "mapping_id"
	SpanAttrEntityType    = "entity_type"
	SpanAttrDirection     = "direction"
	SpanAttrTriggerSource = "trigger_source"
	SpanAttrRecordCount   = "record_count"

	SpanAttrWebhookID = "webhook_id"
	SpanAttrEventType = "event_type"
)
