// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package signal implements the statistics transform shared by the cloud and
// edge processing paths, along with the messages that carry its input and
// output.
package signal

import "github.com/edgebench/sigbench/iso"

type (
	// Processed is a raw signal plus its summary statistics. It is created once
	// per invocation and must not be modified afterwards.
	Processed struct {
		Timestamp iso.DateTime `json:"timestamp"`
		Signal    []float64    `json:"signal"`
		Mean      float64      `json:"mean"`
		Std       float64      `json:"std"`
		Max       float64      `json:"max"`
		Min       float64      `json:"min"`
	}

	// RawMessage is published to the raw topic and posted to the cloud
	// endpoint.
	RawMessage struct {
		RequestID string    `json:"request_id"`
		Signal    []float64 `json:"signal"`
	}

	// ProcessedMessage is published to the processed topic and returned by
	// the cloud endpoint.
	ProcessedMessage struct {
		RequestID string `json:"request_id"`
		Processed
	}
)

// Message attaches the request identifier to the processed signal.
func (p *Processed) Message(requestID string) ProcessedMessage {
	return ProcessedMessage{RequestID: requestID, Processed: *p}
}
