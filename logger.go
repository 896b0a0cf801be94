// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"context"
	"log/slog"

	"github.com/z5labs/telemetry/bunyan"
	"github.com/z5labs/telemetry/tracelog"

	"github.com/lmittmann/tint"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// newLogHandler composes the slog handler chain which [Init] installs
// as the process default.
func newLogHandler(cfg Config, o *options) slog.Handler {
	var base slog.Handler
	if cfg.Env == "development" {
		base = tint.NewHandler(o.logWriter, &tint.Options{
			Level:      o.logLevel,
			AddSource:  true,
			TimeFormat: "15:04:05",
		})
	} else {
		base = bunyan.NewHandler(
			o.logWriter,
			bunyan.Name(cfg.AppName),
			bunyan.Level(o.logLevel),
		)
	}

	if o.exportLogs {
		// The bridge resolves the logger provider set by Init.
		base = fanoutHandler{
			local:  base,
			bridge: otelslog.NewHandler(cfg.AppName),
		}
	}

	var opts []tracelog.Option
	if o.spanEvents {
		opts = append(opts, tracelog.RecordSpanEvents())
	}
	return tracelog.NewHandler(base, opts...)
}

// fanoutHandler forwards every record to the OTLP log bridge while
// still rendering it locally.
type fanoutHandler struct {
	local  slog.Handler
	bridge slog.Handler
}

// Enabled implements the [slog.Handler] interface.
func (h fanoutHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.local.Enabled(ctx, lvl) || h.bridge.Enabled(ctx, lvl)
}

// Handle implements the [slog.Handler] interface. Both handlers are
// always attempted, even if the first returns an error.
func (h fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	bridgeErr := h.bridge.Handle(ctx, record.Clone())
	localErr := h.local.Handle(ctx, record)
	if bridgeErr != nil {
		return bridgeErr
	}
	return localErr
}

// WithAttrs implements the [slog.Handler] interface.
func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fanoutHandler{
		local:  h.local.WithAttrs(attrs),
		bridge: h.bridge.WithAttrs(attrs),
	}
}

// WithGroup implements the [slog.Handler] interface.
func (h fanoutHandler) WithGroup(name string) slog.Handler {
	return fanoutHandler{
		local:  h.local.WithGroup(name),
		bridge: h.bridge.WithGroup(name),
	}
}
