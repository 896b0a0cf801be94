// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package telemetry wires an application's logging and distributed
// tracing pipeline in a single call.
//
// [Init] selects the log output format from a deployment environment
// label, optionally attaches OTLP exporters pointed at a collector
// endpoint and installs the composed pipeline as the process wide
// default. All span collection, batching and network export is
// delegated to the OpenTelemetry SDK.
//
// # Basic Usage
//
// Construct a [Config], either directly or from the environment, and
// initialize exactly once at startup:
//
//	cfg, err := telemetry.FromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	handle, err := telemetry.Init(context.Background(), cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer handle.Close()
//
// After Init returns, [slog.Default] and the stdlib [log] package both
// emit through the installed pipeline, and [otel.Tracer] returns
// tracers backed by the installed provider.
//
// # Log Format
//
// Config.Env selects the local rendering: "development" produces
// compact, colorized text meant for humans, while every other value
// produces bunyan style JSON, one object per record. See the
// [github.com/z5labs/telemetry/bunyan] package for the record schema.
//
// # Export
//
// Config.ExporterEndpoint toggles remote export. When empty, spans are
// not exported and no network connection is attempted; logging remains
// local. When set, its scheme selects the OTLP transport: "http" and
// "https" use OTLP over HTTP, "grpc" and "grpcs" use OTLP over gRPC.
// Log and metric export over the same endpoint are opt-in via
// [ExportLogs] and [ExportMetrics].
//
// Export failures after initialization are absorbed by the SDK's
// batching exporters. Emitting telemetry never fails or blocks
// application code.
//
// # Shutdown
//
// [Handle.Shutdown] flushes buffered telemetry and shuts the installed
// providers down, bounded by the configured [FlushTimeout]. Telemetry
// not flushed within the timeout is dropped.
package telemetry
