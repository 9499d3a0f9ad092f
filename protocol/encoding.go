// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package protocol

import (
	"encoding/json"
	stderr "errors"

	"github.com/edgebench/sigbench/errors"
)

type (
	// Encoding converts messages of type T to and from their wire form.
	// Implementations must be safe for concurrent use.
	Encoding[T any] interface {
		Serialize(T) (*Data, error)
		Deserialize(*Data) (T, error)
	}

	// Data is an encoded message and the content type it travels with.
	Data struct {
		Payload       []byte
		ContentType   string
		PayloadFormat byte
	}

	// JSON encodes messages as UTF-8 JSON documents.
	JSON[T any] struct{}
)

// ContentTypeJSON is the content type of JSON payloads.
const ContentTypeJSON = "application/json"

// payloadFormatUTF8 marks the payload as UTF-8 text.
const payloadFormatUTF8 byte = 1

// ErrUnsupportedContentType is returned by an encoding that cannot decode the
// content type it was given.
var ErrUnsupportedContentType = stderr.New("unsupported content type")

// Serialize encodes t as JSON.
func (JSON[T]) Serialize(t T) (*Data, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return &Data{
		Payload:       payload,
		ContentType:   ContentTypeJSON,
		PayloadFormat: payloadFormatUTF8,
	}, nil
}

// Deserialize decodes a JSON payload. Payloads without a content type are
// assumed to be JSON.
func (JSON[T]) Deserialize(data *Data) (T, error) {
	var t T
	if data.ContentType != "" && data.ContentType != ContentTypeJSON {
		return t, ErrUnsupportedContentType
	}
	return t, json.Unmarshal(data.Payload, &t)
}

// Encoding failures are argument errors: the value cannot be represented on
// the wire, e.g. a signal with a NaN sample.
func serialize[T any](encoding Encoding[T], value T) (*Data, error) {
	data, err := encoding.Serialize(value)
	if err == nil {
		return data, nil
	}
	return nil, asKind(err, &errors.Error{
		Message:     "cannot encode message",
		Kind:        errors.ArgumentInvalid,
		NestedError: err,
	})
}

// Decoding failures are always Decode errors so receivers can count them as
// malformed input.
func deserialize[T any](encoding Encoding[T], data *Data) (T, error) {
	value, err := encoding.Deserialize(data)
	switch {
	case err == nil:
		return value, nil
	case stderr.Is(err, ErrUnsupportedContentType):
		return value, &errors.Error{
			Message:       "unsupported content type",
			Kind:          errors.Decode,
			NestedError:   err,
			PropertyName:  "content_type",
			PropertyValue: data.ContentType,
		}
	default:
		return value, asKind(err, &errors.Error{
			Message:     "cannot decode message",
			Kind:        errors.Decode,
			NestedError: err,
		})
	}
}

// An encoding may already return a structured error; keep it.
func asKind(err error, fallback *errors.Error) error {
	var e *errors.Error
	if stderr.As(err, &e) {
		return e
	}
	return fallback
}
