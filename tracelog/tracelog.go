// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package tracelog provides a slog.Handler middleware which correlates
// log records with the active trace.
package tracelog

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type options struct {
	traceIDKey string
	spanIDKey  string
	spanEvents bool
	eventLevel slog.Leveler
}

// Option helps configure the Handler.
type Option interface {
	applyOption(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyOption(o *options) {
	f(o)
}

// TraceIDKey sets the key used to record the trace ID. The default
// is "trace_id".
func TraceIDKey(key string) Option {
	return optionFunc(func(o *options) {
		o.traceIDKey = key
	})
}

// SpanIDKey sets the key used to record the span ID. The default
// is "span_id".
func SpanIDKey(key string) Option {
	return optionFunc(func(o *options) {
		o.spanIDKey = key
	})
}

// RecordSpanEvents attaches each record emitted within a recording
// span to that span as a span event.
func RecordSpanEvents() Option {
	return optionFunc(func(o *options) {
		o.spanEvents = true
	})
}

// SpanEventLevel sets the minimum record level attached as span
// events. The default is [slog.LevelInfo].
func SpanEventLevel(lvl slog.Leveler) Option {
	return optionFunc(func(o *options) {
		o.eventLevel = lvl
	})
}

// Handler stamps the active trace and span IDs onto every record
// emitted within a valid span context before passing the record on
// to the next handler. Error level records mark the active span's
// status as [codes.Error].
type Handler struct {
	next slog.Handler
	opts *options
}

// NewHandler returns a [Handler] wrapping next.
func NewHandler(next slog.Handler, opts ...Option) *Handler {
	o := &options{
		traceIDKey: "trace_id",
		spanIDKey:  "span_id",
		eventLevel: slog.LevelInfo,
	}
	for _, opt := range opts {
		opt.applyOption(o)
	}
	return &Handler{
		next: next,
		opts: o,
	}
}

// New provides a simple wrapper for slog.New(NewHandler(next, opts...)).
func New(next slog.Handler, opts ...Option) *slog.Logger {
	return slog.New(NewHandler(next, opts...))
}

// Enabled implements the [slog.Handler] interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

// Handle implements the [slog.Handler] interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	span := trace.SpanFromContext(ctx)
	spanCtx := span.SpanContext()
	if !spanCtx.IsValid() {
		return h.next.Handle(ctx, record)
	}

	if span.IsRecording() {
		if h.opts.spanEvents && record.Level >= h.opts.eventLevel.Level() {
			span.AddEvent("log", trace.WithAttributes(eventAttrs(record)...))
		}
		if record.Level >= slog.LevelError {
			span.SetStatus(codes.Error, record.Message)
		}
	}

	r := record.Clone()
	r.AddAttrs(
		slog.String(h.opts.traceIDKey, spanCtx.TraceID().String()),
		slog.String(h.opts.spanIDKey, spanCtx.SpanID().String()),
	)
	return h.next.Handle(ctx, r)
}

// WithAttrs implements the [slog.Handler] interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		next: h.next.WithAttrs(attrs),
		opts: h.opts,
	}
}

// WithGroup implements the [slog.Handler] interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		next: h.next.WithGroup(name),
		opts: h.opts,
	}
}

func eventAttrs(record slog.Record) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, record.NumAttrs()+2)
	attrs = append(
		attrs,
		attribute.String(slog.MessageKey, record.Message),
		attribute.String(slog.LevelKey, record.Level.String()),
	)
	record.Attrs(func(attr slog.Attr) bool {
		attrs = appendAttr(attrs, attr.Key, attr.Value)
		return true
	})
	return attrs
}

func appendAttr(attrs []attribute.KeyValue, key string, v slog.Value) []attribute.KeyValue {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		for _, attr := range v.Group() {
			attrs = appendAttr(attrs, key+"."+attr.Key, attr.Value)
		}
	case slog.KindBool:
		attrs = append(attrs, attribute.Bool(key, v.Bool()))
	case slog.KindInt64:
		attrs = append(attrs, attribute.Int64(key, v.Int64()))
	case slog.KindFloat64:
		attrs = append(attrs, attribute.Float64(key, v.Float64()))
	default:
		attrs = append(attrs, attribute.String(key, v.String()))
	}
	return attrs
}
