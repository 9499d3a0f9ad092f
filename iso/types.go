// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package iso

import (
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/sosodev/duration"
)

// Wrappers for the native Go time types that will serialize to ISO 8601.
type (
	// DateTime is a date and time in ISO 8601 format, per RFC 3339, with
	// sub-second precision.
	DateTime time.Time

	// Duration is a duration in ISO 8601 format.
	Duration time.Duration
)

const dateLayout = "2006-01-02"

// UTC converts t to a date-time in UTC.
func UTC(t time.Time) DateTime {
	return DateTime(t.UTC())
}

// Time returns the underlying time.
func (dt DateTime) Time() time.Time {
	return time.Time(dt)
}

// Date returns the UTC calendar date of the date-time as YYYY-MM-DD.
func (dt DateTime) Date() string {
	return time.Time(dt).UTC().Format(dateLayout)
}

// String returns the date-time to an ISO 8601 string.
func (dt DateTime) String() string {
	return time.Time(dt).Format(time.RFC3339Nano)
}

// MarshalText marshals the date-time to an ISO 8601 string.
func (dt DateTime) MarshalText() ([]byte, error) {
	return []byte(dt.String()), nil
}

// UnmarshalText unmarshals the date-time from an ISO 8601 string. Timestamps
// without a zone designator are read as UTC.
func (dt *DateTime) UnmarshalText(b []byte) error {
	parsed, err := iso8601.Parse(b)
	if err != nil {
		return err
	}
	*dt = DateTime(parsed)
	return nil
}

// String returns the duration to an ISO 8601 string.
func (d Duration) String() string {
	return duration.Format(time.Duration(d))
}

// MarshalText marshals the duration to an ISO 8601 string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText unmarshals the duration from either an ISO 8601 string
// ("PT5S") or a Go duration string ("5s").
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ParseDuration parses either an ISO 8601 or a Go duration string.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), "P") {
		parsed, err := duration.Parse(strings.ToUpper(s))
		if err != nil {
			return 0, err
		}
		return parsed.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}
