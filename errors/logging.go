// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package errors

import "log/slog"

// Attrs exposes the populated fields of the error for structured logging.
func (e *Error) Attrs() []slog.Attr {
	a := make([]slog.Attr, 0, 6)

	a = append(a, slog.String("kind", e.Kind.String()))

	if e.NestedError != nil {
		a = append(a, slog.String("nested_error", e.NestedError.Error()))
	}

	if e.Elapsed != 0 {
		a = append(a, slog.Duration("elapsed", e.Elapsed))
	}

	switch e.Kind {
	case Remote:
		a = append(a, slog.Int("status_code", e.StatusCode))
		if e.RemoteElapsed != 0 {
			a = append(a, slog.Duration("remote_elapsed", e.RemoteElapsed))
		}
	case Timeout:
		a = append(a,
			slog.String("timeout_name", e.TimeoutName),
			slog.Duration("timeout_value", e.TimeoutValue),
		)
	case ConfigurationInvalid, ArgumentInvalid, StateInvalid:
		a = append(a, slog.String("property_name", e.PropertyName))
		if e.PropertyValue != nil {
			a = append(a, slog.Any("property_value", e.PropertyValue))
		}
	}

	return a
}
