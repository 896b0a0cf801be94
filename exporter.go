// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"
)

var (
	errUnsupportedScheme = errors.New("scheme must be one of http, https, grpc or grpcs")
	errMissingHost       = errors.New("missing host")
)

// endpoint is the parsed form of [Config.ExporterEndpoint].
type endpoint struct {
	scheme  string
	host    string
	urlPath string
}

func (ep *endpoint) useGRPC() bool {
	return ep.scheme == "grpc" || ep.scheme == "grpcs"
}

func (ep *endpoint) secure(o *options) bool {
	if o.insecure {
		return false
	}
	return ep.scheme == "https" || ep.scheme == "grpcs"
}

// parseEndpoint validates the configured exporter endpoint. It returns
// nil for an empty endpoint since the export layer is optional.
func parseEndpoint(raw string) (*endpoint, error) {
	if raw == "" {
		return nil, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, InvalidEndpointError{Endpoint: raw, Cause: err}
	}

	switch u.Scheme {
	case "http", "https", "grpc", "grpcs":
	default:
		return nil, InvalidEndpointError{Endpoint: raw, Cause: errUnsupportedScheme}
	}
	if u.Host == "" {
		return nil, InvalidEndpointError{Endpoint: raw, Cause: errMissingHost}
	}

	urlPath := u.Path
	if urlPath == "/" {
		urlPath = ""
	}
	return &endpoint{
		scheme:  u.Scheme,
		host:    u.Host,
		urlPath: urlPath,
	}, nil
}

func newResource(ctx context.Context, cfg Config, o *options) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.AppName),
	}
	if cfg.Env != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Env))
	}
	if cfg.TracerID != "" {
		attrs = append(attrs, attribute.String("tracer.name", cfg.TracerID))
	}
	attrs = append(attrs, o.resourceAttrs...)

	return resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithProcessPID(),
		resource.WithAttributes(attrs...),
	)
}

func newSpanExporter(ctx context.Context, ep *endpoint, o *options) (*otlptrace.Exporter, error) {
	if ep.useGRPC() {
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(ep.host),
		}
		if ep.secure(o) {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(o.tlsConfig)))
		} else {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(ep.host),
		otlptracehttp.WithHTTPClient(newHTTPClient(o)),
	}
	if !ep.secure(o) {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if ep.urlPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(path.Join(ep.urlPath, "v1/traces")))
	}
	return otlptracehttp.New(ctx, opts...)
}

func newLocalSpanExporter(w io.Writer) (*stdouttrace.Exporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
}

func newLogExporter(ctx context.Context, ep *endpoint, o *options) (sdklog.Exporter, error) {
	if ep.useGRPC() {
		opts := []otlploggrpc.Option{
			otlploggrpc.WithEndpoint(ep.host),
		}
		if ep.secure(o) {
			opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(o.tlsConfig)))
		} else {
			opts = append(opts, otlploggrpc.WithInsecure())
		}
		return otlploggrpc.New(ctx, opts...)
	}

	opts := []otlploghttp.Option{
		otlploghttp.WithEndpoint(ep.host),
		otlploghttp.WithHTTPClient(newHTTPClient(o)),
	}
	if !ep.secure(o) {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	if ep.urlPath != "" {
		opts = append(opts, otlploghttp.WithURLPath(path.Join(ep.urlPath, "v1/logs")))
	}
	return otlploghttp.New(ctx, opts...)
}

func newMetricExporter(ctx context.Context, ep *endpoint, o *options) (sdkmetric.Exporter, error) {
	if ep.useGRPC() {
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(ep.host),
		}
		if ep.secure(o) {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(o.tlsConfig)))
		} else {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	}

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(ep.host),
		otlpmetrichttp.WithHTTPClient(newHTTPClient(o)),
	}
	if !ep.secure(o) {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if ep.urlPath != "" {
		opts = append(opts, otlpmetrichttp.WithURLPath(path.Join(ep.urlPath, "v1/metrics")))
	}
	return otlpmetrichttp.New(ctx, opts...)
}

// newHTTPClient returns the retrying client used by the OTLP HTTP exporters.
func newHTTPClient(o *options) *http.Client {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	if o.tlsConfig != nil {
		if t, ok := rc.HTTPClient.Transport.(*http.Transport); ok {
			t.TLSClientConfig = o.tlsConfig
		}
	}
	return rc.StandardClient()
}
