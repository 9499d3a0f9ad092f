// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package errors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Normalize well-known errors into sigbench errors.
func Normalize(err error, msg string) error {
	if e, ok := err.(*Error); ok {
		return e
	}

	switch {
	case err == nil:
		return nil

	case os.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return &Error{
			Message:     fmt.Sprintf("%s timed out", msg),
			Kind:        Timeout,
			NestedError: err,
		}

	case errors.Is(err, context.Canceled):
		return &Error{
			Message:     fmt.Sprintf("%s cancelled", msg),
			Kind:        Cancellation,
			NestedError: err,
		}

	default:
		return &Error{
			Message:     fmt.Sprintf("%s error: %s", msg, err.Error()),
			Kind:        Unknown,
			NestedError: err,
		}
	}
}

// Context extracts the timeout or cancellation error from a context.
func Context(ctx context.Context, msg string) error {
	// A cause set by this module is already a structured error; a cause set
	// by the caller is respected as-is.
	if err := context.Cause(ctx); err != nil &&
		err != context.Canceled && err != context.DeadlineExceeded {
		return err
	}
	return Normalize(ctx.Err(), msg)
}

// As returns the structured error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsKind reports whether err's chain contains an error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// KindOf reports the kind of err, or Unknown for unstructured errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Unknown
}

// WithElapsed returns a copy of the structured error in err's chain with its
// elapsed time set. Unstructured errors are returned unchanged.
func WithElapsed(err error, elapsed time.Duration) error {
	e, ok := As(err)
	if !ok {
		return err
	}
	out := *e
	out.Elapsed = elapsed
	return &out
}
