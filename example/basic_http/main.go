// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/z5labs/telemetry"
	"github.com/z5labs/telemetry/httptelemetry"

	"golang.org/x/sync/errgroup"
)

const tracerName = "z5labs.io/telemetry/example/basic_http"

func main() {
	err := run(context.Background())
	if err != nil {
		slog.Error("failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := telemetry.FromEnv()
	if err != nil {
		return err
	}
	if cfg.AppName == "" {
		cfg.AppName = "basic-http"
	}
	cfg.TracerID = tracerName

	handle, err := telemetry.Init(ctx, cfg, telemetry.SpanEvents())
	if err != nil {
		return err
	}
	defer handle.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		slog.InfoContext(
			r.Context(),
			"received request for /hello",
			slog.String("trace_id", telemetry.TraceID(r.Context()).String()),
		)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`"Hello World!"`))
	})

	middleware := httptelemetry.Middleware(
		cfg.AppName,
		httptelemetry.ExcludePaths("/healthz"),
	)
	srv := &http.Server{
		Addr:    ":3001",
		Handler: middleware(mux),
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		slog.Info("starting http server", slog.String("addr", srv.Addr))

		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		<-egctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
