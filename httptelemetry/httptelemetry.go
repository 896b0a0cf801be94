// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httptelemetry provides net/http middleware which traces and
// logs requests through the installed telemetry pipeline.
package httptelemetry

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type options struct {
	excluded       map[string]struct{}
	publicEndpoint bool
	logger         *slog.Logger
}

// Option helps configure the middleware.
type Option interface {
	applyOption(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyOption(o *options) {
	f(o)
}

// ExcludePaths disables tracing and request logging for the given
// URL paths. Typically used for health check and readiness routes.
func ExcludePaths(paths ...string) Option {
	return optionFunc(func(o *options) {
		for _, p := range paths {
			o.excluded[p] = struct{}{}
		}
	})
}

// PublicEndpoint starts a new trace for every request instead of
// continuing a trace from incoming request headers.
func PublicEndpoint() Option {
	return optionFunc(func(o *options) {
		o.publicEndpoint = true
	})
}

// Logger sets the logger used for request records. The default is
// [slog.Default], resolved per request.
func Logger(logger *slog.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// Middleware wraps HTTP handlers with otelhttp instrumentation and
// emits one request scoped log record per handled request. Excluded
// paths pass through untouched.
func Middleware(operation string, opts ...Option) func(http.Handler) http.Handler {
	o := &options{
		excluded: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt.applyOption(o)
	}

	otelOpts := []otelhttp.Option{
		otelhttp.WithFilter(func(r *http.Request) bool {
			_, skip := o.excluded[r.URL.Path]
			return !skip
		}),
	}
	if o.publicEndpoint {
		otelOpts = append(otelOpts, otelhttp.WithPublicEndpoint())
	}

	return func(next http.Handler) http.Handler {
		logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := o.excluded[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)

			logger := o.logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.InfoContext(
				r.Context(),
				"handled request",
				slog.String("http.method", r.Method),
				slog.String("http.path", r.URL.Path),
				slog.Int("http.status_code", sw.status),
				slog.Duration("http.duration", time.Since(start)),
			)
		})

		return otelhttp.NewHandler(logged, operation, otelOpts...)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
