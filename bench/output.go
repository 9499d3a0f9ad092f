// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package bench

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/edgebench/sigbench/errors"
)

// WriteResults writes the results as a JSON array. The file is replaced
// atomically, so rewriting the same results is idempotent.
func WriteResults(path string, results []TrialResult) error {
	if results == nil {
		results = []TrialResult{}
	}
	return writeJSONFile(path, results)
}

// WriteSummary writes the summary as a JSON object, replacing the file
// atomically.
func WriteSummary(path string, s Summary) error {
	return writeJSONFile(path, s)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return outputError("cannot encode results", path, err)
	}
	data = append(data, '\n')

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return outputError("cannot create results file", path, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return outputError("cannot write results file", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return outputError("cannot write results file", path, err)
	}
	if err := f.Close(); err != nil {
		return outputError("cannot write results file", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return outputError("cannot replace results file", path, err)
	}
	return nil
}

func outputError(msg, path string, err error) error {
	return &errors.Error{
		Message:       msg + ": " + err.Error(),
		Kind:          errors.Record,
		NestedError:   err,
		PropertyName:  "path",
		PropertyValue: path,
	}
}
