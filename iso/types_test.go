// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package iso_test

import (
	"testing"
	"time"

	"github.com/edgebench/sigbench/iso"
	"github.com/stretchr/testify/require"
)

func TestDateTime(t *testing.T) {
	ts := time.Date(2026, 10, 14, 9, 30, 15, 250_000_000, time.UTC)
	dt := iso.DateTime(ts)
	require.Equal(t, "2026-10-14T09:30:15.25Z", dt.String())
	require.Equal(t, "2026-10-14", dt.Date())

	var parsed iso.DateTime
	require.NoError(t, parsed.UnmarshalText([]byte(dt.String())))
	require.True(t, ts.Equal(parsed.Time()))

	// Python's isoformat() omits the zone designator.
	require.NoError(t, parsed.UnmarshalText([]byte("2026-10-14T09:30:15.250000")))
	require.True(t, ts.Equal(parsed.Time()))

	require.Error(t, parsed.UnmarshalText([]byte("yesterday")))
}

func TestParseDuration(t *testing.T) {
	for in, want := range map[string]time.Duration{
		"5s":     5 * time.Second,
		"PT5S":   5 * time.Second,
		"pt1m":   time.Minute,
		"1h30m":  90 * time.Minute,
	} {
		got, err := iso.ParseDuration(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := iso.ParseDuration("five seconds")
	require.Error(t, err)

	var d iso.Duration
	require.NoError(t, d.UnmarshalText([]byte("PT2S")))
	require.Equal(t, iso.Duration(2*time.Second), d)
	require.Equal(t, "PT2S", d.String())
}
