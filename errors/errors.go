// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package errors

import "time"

type (
	// Error represents a structured sigbench error.
	Error struct {
		Message string
		Kind    Kind

		NestedError error

		// Elapsed is the locally measured time at failure.
		Elapsed time.Duration

		// RemoteElapsed and StatusCode are set on Remote errors from the
		// cloud endpoint.
		RemoteElapsed time.Duration
		StatusCode    int

		TimeoutName  string
		TimeoutValue time.Duration

		PropertyName  string
		PropertyValue any
	}

	// Kind defines the type of error being thrown.
	Kind int
)

// The following are the defined error kinds.
const (
	Unknown Kind = iota
	EmptyInput
	Decode
	Remote
	Timeout
	Record
	Connection
	Cancellation
	ConfigurationInvalid
	ArgumentInvalid
	StateInvalid
)

var kindNames = map[Kind]string{
	Unknown:              "UnknownError",
	EmptyInput:           "EmptyInputError",
	Decode:               "DecodeError",
	Remote:               "RemoteError",
	Timeout:              "TimeoutError",
	Record:               "RecordError",
	Connection:           "ConnectionError",
	Cancellation:         "CancellationError",
	ConfigurationInvalid: "ConfigurationInvalidError",
	ArgumentInvalid:      "ArgumentInvalidError",
	StateInvalid:         "StateInvalidError",
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the nested error, if any.
func (e *Error) Unwrap() error {
	return e.NestedError
}

// String returns the name used for the kind in logs and result files.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[Unknown]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name; unrecognized names decode as Unknown.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	*k = Unknown
	return nil
}
