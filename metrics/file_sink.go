// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package metrics

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/edgebench/sigbench/errors"
)

// FileSink appends one JSON line per record. When partitioned, the path is a
// directory holding one file per UTC date; otherwise it is a single file.
type FileSink struct {
	path        string
	partitioned bool
	mu          sync.Mutex
}

// NewFileSink creates a sink appending to path.
func NewFileSink(path string, partitioned bool) (*FileSink, error) {
	if path == "" {
		return nil, &errors.Error{
			Message:      "metrics file path must not be empty",
			Kind:         errors.ConfigurationInvalid,
			PropertyName: "metrics.file",
		}
	}
	return &FileSink{path: path, partitioned: partitioned}, nil
}

// Put appends the record as a single line.
func (s *FileSink) Put(_ context.Context, key Key, record []byte) error {
	path := s.path
	if s.partitioned {
		path = filepath.Join(s.path, key.Date+".log")
	}

	line := make([]byte, 0, len(record)+1)
	line = append(append(line, record...), '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return recordError("cannot create metrics directory", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return recordError("cannot open metrics file", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return recordError("cannot append metrics record", err)
	}
	if err := f.Close(); err != nil {
		return recordError("cannot close metrics file", err)
	}
	return nil
}

func recordError(msg string, err error) error {
	return &errors.Error{
		Message:     msg,
		Kind:        errors.Record,
		NestedError: err,
	}
}
