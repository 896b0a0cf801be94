// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func resetInit(t *testing.T) {
	t.Helper()

	initMu.Lock()
	initialized = false
	initMu.Unlock()
}

func TestFromEnv(t *testing.T) {
	t.Setenv("APP_NAME", "my-app")
	t.Setenv("ENV", "development")
	t.Setenv("OPENTELEMETRY_ENDPOINT_URL", "grpcs://collector:4317")
	t.Setenv("TRACER_ID", "my-app/trace")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "my-app", cfg.AppName)
	require.Equal(t, "development", cfg.Env)
	require.Equal(t, "grpcs://collector:4317", cfg.ExporterEndpoint)
	require.Equal(t, "my-app/trace", cfg.TracerID)
}

func TestInit(t *testing.T) {
	t.Run("succeeds without an exporter endpoint", func(t *testing.T) {
		resetInit(t)

		var buf bytes.Buffer
		h, err := Init(context.Background(), Config{AppName: "test"}, LogWriter(&buf))
		require.NoError(t, err)
		require.NotNil(t, h)

		// No endpoint means no exporters and thus nothing to shut down.
		require.Empty(t, h.shutdowns)
		require.NoError(t, h.Shutdown(context.Background()))
	})

	t.Run("fails on a malformed endpoint url", func(t *testing.T) {
		resetInit(t)

		cfg := Config{
			AppName:          "test",
			ExporterEndpoint: "grpc://invalid host:4317",
		}
		_, err := Init(context.Background(), cfg)

		var ierr InvalidEndpointError
		require.ErrorAs(t, err, &ierr)
		require.Equal(t, cfg.ExporterEndpoint, ierr.Endpoint)
	})

	t.Run("fails on an unsupported endpoint scheme", func(t *testing.T) {
		resetInit(t)

		_, err := Init(context.Background(), Config{
			AppName:          "test",
			ExporterEndpoint: "ftp://collector:4317",
		})

		var ierr InvalidEndpointError
		require.ErrorAs(t, err, &ierr)
		require.ErrorIs(t, err, errUnsupportedScheme)
	})

	t.Run("failed init does not consume the install guard", func(t *testing.T) {
		resetInit(t)

		_, err := Init(context.Background(), Config{
			AppName:          "test",
			ExporterEndpoint: "ftp://collector:4317",
		})
		require.Error(t, err)

		var buf bytes.Buffer
		h, err := Init(context.Background(), Config{AppName: "test"}, LogWriter(&buf))
		require.NoError(t, err)
		require.NotNil(t, h)
	})

	t.Run("fails on a second call", func(t *testing.T) {
		resetInit(t)

		var buf bytes.Buffer
		_, err := Init(context.Background(), Config{AppName: "test"}, LogWriter(&buf))
		require.NoError(t, err)

		_, err = Init(context.Background(), Config{AppName: "test"}, LogWriter(&buf))

		var aerr AlreadyInitializedError
		require.ErrorAs(t, err, &aerr)

		// The first installed pipeline must remain active.
		slog.Info("still here")
		require.Contains(t, buf.String(), "still here")
	})

	t.Run("development env renders human readable text", func(t *testing.T) {
		resetInit(t)

		var buf bytes.Buffer
		cfg := Config{
			AppName: "test",
			Env:     "development",
		}
		_, err := Init(context.Background(), cfg, LogWriter(&buf))
		require.NoError(t, err)

		slog.Info("hello from development")

		out := buf.String()
		require.Contains(t, out, "hello from development")

		line, _, _ := strings.Cut(out, "\n")
		var record map[string]any
		require.Error(t, json.Unmarshal([]byte(line), &record))
	})

	t.Run("any other env renders one json object per record", func(t *testing.T) {
		resetInit(t)

		var buf bytes.Buffer
		cfg := Config{
			AppName: "test",
			Env:     "production",
		}
		_, err := Init(context.Background(), cfg, LogWriter(&buf))
		require.NoError(t, err)

		slog.Info("hello from production")

		line, _, _ := strings.Cut(buf.String(), "\n")
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))

		require.Equal(t, float64(0), record["v"])
		require.Equal(t, "test", record["name"])
		require.Equal(t, "hello from production", record["msg"])
		require.Equal(t, float64(30), record["level"])
		require.Contains(t, record, "hostname")
		require.Contains(t, record, "pid")
		require.Contains(t, record, "time")
		require.Contains(t, record, "target")
		require.Contains(t, record, "file")
		require.Contains(t, record, "line")
	})

	t.Run("empty env renders json", func(t *testing.T) {
		resetInit(t)

		var buf bytes.Buffer
		_, err := Init(context.Background(), Config{AppName: "test"}, LogWriter(&buf))
		require.NoError(t, err)

		slog.Info("hello")

		line, _, _ := strings.Cut(buf.String(), "\n")
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
	})

	t.Run("stdlib log package is bridged into the pipeline", func(t *testing.T) {
		resetInit(t)

		var buf bytes.Buffer
		_, err := Init(context.Background(), Config{AppName: "test"}, LogWriter(&buf))
		require.NoError(t, err)

		log.Print("legacy log line")
		require.Contains(t, buf.String(), "legacy log line")
	})
}

func TestHandle_Shutdown(t *testing.T) {
	t.Run("returns within the flush timeout against an unreachable collector", func(t *testing.T) {
		resetInit(t)

		var buf bytes.Buffer
		cfg := Config{
			AppName:          "test",
			ExporterEndpoint: "grpc://localhost:1",
		}
		h, err := Init(
			context.Background(),
			cfg,
			LogWriter(&buf),
			FlushTimeout(200*time.Millisecond),
		)
		require.NoError(t, err)
		require.NotEmpty(t, h.shutdowns)

		// Force a buffered span so shutdown has something to flush.
		_, span := h.Tracer().Start(context.Background(), "op")
		span.End()

		start := time.Now()
		h.Shutdown(context.Background())
		require.Less(t, time.Since(start), 3*time.Second)
	})
}

func TestTraceID(t *testing.T) {
	t.Run("returns the zero trace id without a span", func(t *testing.T) {
		require.False(t, TraceID(context.Background()).IsValid())
	})

	t.Run("returns the active span's trace id", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		t.Cleanup(func() {
			tp.Shutdown(context.Background())
		})

		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		require.Equal(t, span.SpanContext().TraceID(), TraceID(ctx))
		require.True(t, TraceID(ctx).IsValid())
	})
}
