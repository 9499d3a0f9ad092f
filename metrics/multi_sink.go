// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package metrics

import (
	"context"
	stderr "errors"
)

// MultiSink writes every record to all of its sinks. A failing sink does not
// prevent the others from being written.
type MultiSink []Sink

// Put writes the record to every sink and joins their errors.
func (m MultiSink) Put(ctx context.Context, key Key, record []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.Put(ctx, key, record); err != nil {
			errs = append(errs, err)
		}
	}
	if err := stderr.Join(errs...); err != nil {
		return recordError("cannot write metrics record to every sink", err)
	}
	return nil
}
