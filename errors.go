// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import "fmt"

// AlreadyInitializedError occurs when [Init] is called after a
// previous call already installed the global telemetry pipeline.
// The pipeline installed by the first call remains active.
type AlreadyInitializedError struct{}

// Error implements the [builtin.error] interface.
func (AlreadyInitializedError) Error() string {
	return "telemetry: global pipeline has already been initialized"
}

// InvalidEndpointError occurs when the configured exporter endpoint
// can not be parsed as a URL or uses an unsupported scheme.
type InvalidEndpointError struct {
	Endpoint string
	Cause    error
}

// Error implements the [builtin.error] interface.
func (e InvalidEndpointError) Error() string {
	return fmt.Sprintf("telemetry: invalid exporter endpoint %q: %s", e.Endpoint, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidEndpointError) Unwrap() error {
	return e.Cause
}

// ExporterError occurs when an OTLP exporter fails to initialize.
type ExporterError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ExporterError) Error() string {
	return fmt.Sprintf("telemetry: failed to initialize exporter: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ExporterError) Unwrap() error {
	return e.Cause
}

// ResourceError occurs when the OTel resource describing this
// process fails to be constructed.
type ResourceError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ResourceError) Error() string {
	return fmt.Sprintf("telemetry: failed to construct resource: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ResourceError) Unwrap() error {
	return e.Cause
}
