// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package cloud implements the request/response processing path: an HTTP
// function that runs the statistics transform server-side, and the client
// that invokes it.
package cloud

import "github.com/edgebench/sigbench/signal"

type (
	// SuccessBody is returned with status 200.
	SuccessBody struct {
		Message         string                   `json:"message"`
		ProcessingTime  float64                  `json:"processing_time"`
		ProcessedSignal *signal.ProcessedMessage `json:"processed_signal"`
	}

	// ErrorBody is returned with status 400 or 500.
	ErrorBody struct {
		Error          string  `json:"error"`
		ProcessingTime float64 `json:"processing_time"`
	}
)

const (
	// SuccessMessage is the message of every successful invocation.
	SuccessMessage = "Signal processed successfully"

	// InvocationIDHeader carries the identifier the metrics record is stored
	// under.
	InvocationIDHeader = "X-Invocation-Id"

	maxBodyBytes = 32 << 20
)
