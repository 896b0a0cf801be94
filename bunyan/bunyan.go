// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package bunyan provides a slog.Handler which renders records as
// bunyan style JSON, one object per line.
package bunyan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Record schema version emitted as the "v" field.
const schemaVersion = 0

type options struct {
	name     string
	level    slog.Leveler
	hostname string
}

// Option helps configure the Handler.
type Option interface {
	applyOption(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyOption(o *options) {
	f(o)
}

// Name sets the logger name emitted as the "name" field of every record.
func Name(name string) Option {
	return optionFunc(func(o *options) {
		o.name = name
	})
}

// Level sets the minimum record level. The default is [slog.LevelInfo].
func Level(lvl slog.Leveler) Option {
	return optionFunc(func(o *options) {
		o.level = lvl
	})
}

// Hostname overrides the hostname emitted with every record. The
// default is [os.Hostname].
func Hostname(hostname string) Option {
	return optionFunc(func(o *options) {
		o.hostname = hostname
	})
}

type prefixedAttr struct {
	key   string
	value slog.Value
}

// Handler is a [slog.Handler] which writes one JSON object per record.
// Every record carries the schema version, logger name, message,
// numeric severity, hostname, process id, UTC timestamp and the
// originating package, file and line.
type Handler struct {
	name     string
	level    slog.Leveler
	hostname string
	pid      int

	attrs  []prefixedAttr
	groups []string

	mu *sync.Mutex
	w  io.Writer
}

// NewHandler returns a [Handler] which writes to w.
func NewHandler(w io.Writer, opts ...Option) *Handler {
	o := &options{
		level: slog.LevelInfo,
	}
	for _, opt := range opts {
		opt.applyOption(o)
	}

	hostname := o.hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	return &Handler{
		name:     o.name,
		level:    o.level,
		hostname: hostname,
		pid:      os.Getpid(),
		mu:       &sync.Mutex{},
		w:        w,
	}
}

// Enabled implements the [slog.Handler] interface.
func (h *Handler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.level.Level()
}

var bufPool = &sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// Handle implements the [slog.Handler] interface.
func (h *Handler) Handle(_ context.Context, record slog.Record) error {
	fields := make(map[string]any, 10+len(h.attrs)+record.NumAttrs())
	fields["v"] = schemaVersion
	fields["name"] = h.name
	fields["msg"] = record.Message
	fields["level"] = severity(record.Level)
	fields["hostname"] = h.hostname
	fields["pid"] = h.pid

	t := record.Time
	if t.IsZero() {
		t = time.Now()
	}
	fields["time"] = t.UTC().Format(time.RFC3339Nano)

	target, file, line := source(record.PC)
	fields["target"] = target
	fields["file"] = file
	fields["line"] = line

	for _, attr := range h.attrs {
		putValue(fields, attr.key, attr.value)
	}

	prefix := strings.Join(h.groups, ".")
	record.Attrs(func(attr slog.Attr) bool {
		putValue(fields, joinKey(prefix, attr.Key), attr.Value)
		return true
	})

	buf := bufPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufPool.Put(buf)
	}()

	enc := json.NewEncoder(buf)
	err := enc.Encode(fields)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(buf.Bytes())
	return err
}

// WithAttrs implements the [slog.Handler] interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	prefix := strings.Join(h.groups, ".")
	for _, attr := range attrs {
		h2.attrs = append(h2.attrs, prefixedAttr{
			key:   joinKey(prefix, attr.Key),
			value: attr.Value,
		})
	}
	return h2
}

// WithGroup implements the [slog.Handler] interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.groups = append(h2.groups, name)
	return h2
}

func (h *Handler) clone() *Handler {
	return &Handler{
		name:     h.name,
		level:    h.level,
		hostname: h.hostname,
		pid:      h.pid,
		attrs:    append([]prefixedAttr(nil), h.attrs...),
		groups:   append([]string(nil), h.groups...),
		mu:       h.mu,
		w:        h.w,
	}
}

// severity maps slog levels onto the bunyan numeric levels, with
// levels in between mapped down to the nearest named level.
func severity(lvl slog.Level) int {
	switch {
	case lvl < slog.LevelDebug:
		return 10
	case lvl < slog.LevelInfo:
		return 20
	case lvl < slog.LevelWarn:
		return 30
	case lvl < slog.LevelError:
		return 40
	case lvl < slog.LevelError+4:
		return 50
	default:
		return 60
	}
}

func source(pc uintptr) (target, file string, line int) {
	if pc == 0 {
		return "", "", 0
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return pkgName(frame.Function), frame.File, frame.Line
}

// pkgName extracts the import path from a fully qualified function
// name, e.g. "example.com/foo/bar.(*T).Do" yields "example.com/foo/bar".
func pkgName(fn string) string {
	slash := strings.LastIndexByte(fn, '/')
	dot := strings.IndexByte(fn[slash+1:], '.')
	if dot < 0 {
		return fn
	}
	return fn[:slash+1+dot]
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// putValue flattens attr values into fields. Groups are flattened
// using dot separated keys.
func putValue(fields map[string]any, key string, v slog.Value) {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		for _, attr := range v.Group() {
			putValue(fields, joinKey(key, attr.Key), attr.Value)
		}
	case slog.KindTime:
		fields[key] = v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindDuration:
		fields[key] = v.Duration().String()
	case slog.KindAny:
		a := v.Any()
		if err, ok := a.(error); ok {
			fields[key] = err.Error()
			return
		}
		if _, err := json.Marshal(a); err != nil {
			fields[key] = fmt.Sprint(a)
			return
		}
		fields[key] = a
	default:
		fields[key] = v.Any()
	}
}
