// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package errors_test

import (
	"context"
	"encoding/json"
	stderr "errors"
	"fmt"
	"testing"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.NoError(t, errors.Normalize(nil, "op"))

	err := errors.Normalize(context.DeadlineExceeded, "invoke")
	require.True(t, errors.IsKind(err, errors.Timeout))
	require.Equal(t, "invoke timed out", err.Error())

	err = errors.Normalize(context.Canceled, "invoke")
	require.True(t, errors.IsKind(err, errors.Cancellation))

	base := stderr.New("boom")
	err = errors.Normalize(base, "invoke")
	require.Equal(t, errors.Unknown, errors.KindOf(err))
	require.ErrorIs(t, err, base)
}

func TestContextCause(t *testing.T) {
	cause := &errors.Error{Message: "edge timed out", Kind: errors.Timeout}
	ctx, cancel := context.WithTimeoutCause(
		context.Background(),
		time.Millisecond,
		cause,
	)
	defer cancel()
	<-ctx.Done()

	require.Same(t, cause, errors.Context(ctx, "edge"))

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	require.True(t, errors.IsKind(errors.Context(ctx, "edge"), errors.Cancellation))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("trial 3: %w", &errors.Error{Kind: errors.Remote})
	require.Equal(t, errors.Remote, errors.KindOf(err))
	require.Equal(t, "RemoteError", errors.KindOf(err).String())
}

func TestKindText(t *testing.T) {
	data, err := json.Marshal(struct{ Kind errors.Kind }{errors.EmptyInput})
	require.NoError(t, err)
	require.JSONEq(t, `{"Kind":"EmptyInputError"}`, string(data))

	var out struct{ Kind errors.Kind }
	require.NoError(t, json.Unmarshal([]byte(`{"Kind":"TimeoutError"}`), &out))
	require.Equal(t, errors.Timeout, out.Kind)
}

func TestWithElapsed(t *testing.T) {
	orig := &errors.Error{Message: "late", Kind: errors.Timeout}
	err := errors.WithElapsed(fmt.Errorf("wrapped: %w", orig), time.Second)

	e, ok := errors.As(err)
	require.True(t, ok)
	require.Equal(t, time.Second, e.Elapsed)
	require.Equal(t, errors.Timeout, e.Kind)
	require.Zero(t, orig.Elapsed)

	plain := stderr.New("plain")
	require.Equal(t, plain, errors.WithElapsed(plain, time.Second))
}
