// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config fully determines the telemetry pipeline topology. It is
// consumed exactly once by [Init] and never mutated afterwards.
type Config struct {
	// AppName is included in every emitted record. It becomes the
	// service.name resource attribute on exported spans and the
	// "name" field of structured log records.
	AppName string `envconfig:"APP_NAME"`

	// Env is the deployment environment label. "development" selects
	// compact, human-readable log output. Any other value, including
	// empty, selects structured JSON output.
	Env string `envconfig:"ENV"`

	// ExporterEndpoint is an optional collector URL. If set, spans are
	// batched and exported to it over OTLP. The URL scheme selects the
	// transport: "http" and "https" use OTLP over HTTP, while "grpc"
	// and "grpcs" use OTLP over gRPC.
	ExporterEndpoint string `envconfig:"OPENTELEMETRY_ENDPOINT_URL"`

	// TracerID optionally names the tracer returned by [Handle.Tracer].
	// It defaults to AppName.
	TracerID string `envconfig:"TRACER_ID"`
}

// FromEnv returns a [Config] populated from the process environment.
func FromEnv() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

type options struct {
	sampleRatio     float64
	flushTimeout    time.Duration
	logWriter       io.Writer
	logLevel        slog.Leveler
	resourceAttrs   []attribute.KeyValue
	tlsConfig       *tls.Config
	insecure        bool
	exportLogs      bool
	exportMetrics   bool
	spanEvents      bool
	localSpanWriter io.Writer
}

// Option configures optional [Init] behaviour.
type Option interface {
	applyOption(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyOption(o *options) {
	f(o)
}

// SampleRatio sets the fraction of traces which are sampled.
// The default is 1.0, i.e. every trace is sampled.
func SampleRatio(ratio float64) Option {
	return optionFunc(func(o *options) {
		o.sampleRatio = ratio
	})
}

// FlushTimeout bounds how long [Handle.Shutdown] waits for buffered
// telemetry to be flushed. The default is 5 seconds.
func FlushTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.flushTimeout = d
	})
}

// LogWriter sets the destination for locally rendered log records.
// The default is [os.Stdout].
func LogWriter(w io.Writer) Option {
	return optionFunc(func(o *options) {
		o.logWriter = w
	})
}

// LogLevel sets the minimum level for locally rendered log records.
// The default is [slog.LevelInfo].
func LogLevel(lvl slog.Leveler) Option {
	return optionFunc(func(o *options) {
		o.logLevel = lvl
	})
}

// ResourceAttributes appends extra attributes to the OTel resource
// describing this process.
func ResourceAttributes(attrs ...attribute.KeyValue) Option {
	return optionFunc(func(o *options) {
		o.resourceAttrs = append(o.resourceAttrs, attrs...)
	})
}

// TLSConfig sets the TLS configuration used when exporting over an
// encrypted transport. By default the system root trust store is used.
func TLSConfig(cfg *tls.Config) Option {
	return optionFunc(func(o *options) {
		o.tlsConfig = cfg
	})
}

// InsecureTransport disables transport security when exporting to the
// collector. Meant for local collectors only.
func InsecureTransport() Option {
	return optionFunc(func(o *options) {
		o.insecure = true
	})
}

// ExportLogs also exports log records to the collector over OTLP, in
// addition to rendering them locally.
func ExportLogs() Option {
	return optionFunc(func(o *options) {
		o.exportLogs = true
	})
}

// ExportMetrics also exports metrics to the collector over OTLP.
func ExportMetrics() Option {
	return optionFunc(func(o *options) {
		o.exportMetrics = true
	})
}

// SpanEvents attaches each log record emitted within an active span
// to that span as a span event.
func SpanEvents() Option {
	return optionFunc(func(o *options) {
		o.spanEvents = true
	})
}

// LocalSpanExport writes completed spans to w in a human-readable
// format. It only applies when no exporter endpoint is configured.
func LocalSpanExport(w io.Writer) Option {
	return optionFunc(func(o *options) {
		o.localSpanWriter = w
	})
}

func defaultOptions() *options {
	return &options{
		sampleRatio:  1.0,
		flushTimeout: 5 * time.Second,
		logWriter:    os.Stdout,
		logLevel:     slog.LevelInfo,
	}
}

var (
	initMu      sync.Mutex
	initialized bool
)

// Init wires the global logging and tracing pipeline from cfg.
//
// It selects the log format from cfg.Env, optionally attaches OTLP
// exporters pointed at cfg.ExporterEndpoint and installs the composed
// pipeline as the process wide default via [otel.SetTracerProvider]
// and [slog.SetDefault]. Installing the default slog handler also
// rewires the stdlib [log] package into the same pipeline.
//
// Init must be called at most once per process, before any telemetry
// emitting code runs. A second call fails with [AlreadyInitializedError]
// and leaves the first installed pipeline active. Calls which fail
// before installation do not count against this limit.
//
// The returned [Handle] must be shut down before process exit to flush
// any buffered telemetry.
func Init(ctx context.Context, cfg Config, opts ...Option) (*Handle, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt.applyOption(o)
	}

	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil, AlreadyInitializedError{}
	}

	ep, err := parseEndpoint(cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg, o)
	if err != nil {
		return nil, ResourceError{Cause: err}
	}

	// Construct every provider before touching any global state so a
	// failed Init leaves nothing installed.
	var tp *sdktrace.TracerProvider
	switch {
	case ep != nil:
		exp, err := newSpanExporter(ctx, ep, o)
		if err != nil {
			return nil, ExporterError{Cause: err}
		}

		tp = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.sampleRatio))),
			sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp)),
		)
	case o.localSpanWriter != nil:
		exp, err := newLocalSpanExporter(o.localSpanWriter)
		if err != nil {
			return nil, ExporterError{Cause: err}
		}

		tp = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exp),
		)
	}

	var lp *sdklog.LoggerProvider
	if ep != nil && o.exportLogs {
		exp, err := newLogExporter(ctx, ep, o)
		if err != nil {
			return nil, ExporterError{Cause: err}
		}

		lp = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		)
	}

	var mp *sdkmetric.MeterProvider
	if ep != nil && o.exportMetrics {
		exp, err := newMetricExporter(ctx, ep, o)
		if err != nil {
			return nil, ExporterError{Cause: err}
		}

		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		)
	}

	h := &Handle{
		flushTimeout: o.flushTimeout,
	}

	if tp != nil {
		otel.SetTracerProvider(tp)
		h.onShutdown(tp.Shutdown)
	}
	if lp != nil {
		global.SetLoggerProvider(lp)
		h.onShutdown(lp.Shutdown)
	}
	if mp != nil {
		otel.SetMeterProvider(mp)
		h.onShutdown(mp.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.SetDefault(slog.New(newLogHandler(cfg, o)))

	tracerName := cfg.TracerID
	if tracerName == "" {
		tracerName = cfg.AppName
	}
	h.tracer = otel.Tracer(tracerName)

	initialized = true
	return h, nil
}

// Handle represents the installed telemetry pipeline. Its only
// responsibility is flushing buffered telemetry at process exit.
type Handle struct {
	flushTimeout time.Duration
	tracer       trace.Tracer
	shutdowns    []func(context.Context) error
}

func (h *Handle) onShutdown(f func(context.Context) error) {
	h.shutdowns = append(h.shutdowns, f)
}

// Tracer returns the tracer named by [Config.TracerID].
func (h *Handle) Tracer() trace.Tracer {
	return h.tracer
}

// Shutdown flushes buffered telemetry and shuts down every installed
// provider. It waits at most the configured flush timeout, regardless
// of collector reachability. Telemetry not flushed within the timeout
// is dropped.
func (h *Handle) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.flushTimeout)
	defer cancel()

	errs := make([]error, 0, len(h.shutdowns))
	for _, shutdown := range h.shutdowns {
		err := shutdown(ctx)
		if err == nil {
			continue
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close implements the [io.Closer] interface.
func (h *Handle) Close() error {
	return h.Shutdown(context.Background())
}

// TraceID returns the trace ID of the span active in ctx. The zero
// [trace.TraceID] is returned if ctx carries no valid span context.
func TraceID(ctx context.Context) trace.TraceID {
	return trace.SpanContextFromContext(ctx).TraceID()
}
