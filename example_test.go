// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry_test

import (
	"context"
	"log"
	"log/slog"

	"github.com/z5labs/telemetry"
)

func Example() {
	cfg := telemetry.Config{
		AppName: "example",
		Env:     "development",
	}

	handle, err := telemetry.Init(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer handle.Close()

	slog.Info("telemetry is wired")
}

func Example_withCollector() {
	cfg := telemetry.Config{
		AppName:          "example",
		Env:              "production",
		ExporterEndpoint: "grpcs://collector.example.com:4317",
		TracerID:         "example/trace",
	}

	handle, err := telemetry.Init(
		context.Background(),
		cfg,
		telemetry.ExportLogs(),
		telemetry.SpanEvents(),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer handle.Close()

	ctx, span := handle.Tracer().Start(context.Background(), "operation")
	defer span.End()

	slog.InfoContext(ctx, "traced work", slog.String("trace_id", telemetry.TraceID(ctx).String()))
}
