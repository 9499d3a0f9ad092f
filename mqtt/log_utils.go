// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/eclipse/paho.golang/paho"
	"github.com/edgebench/sigbench/internal/log"
	"github.com/iancoleman/strcase"
)

type logger struct{ log.Logger }

// Packet logs the exported fields of a paho packet at debug level.
func (l logger) Packet(ctx context.Context, name string, packet any) {
	// This is expensive; bail out if we don't need it.
	if packet == nil || !l.Enabled(ctx, slog.LevelDebug) {
		return
	}

	val := realValue(reflect.ValueOf(packet))
	if val.Kind() != reflect.Struct {
		return
	}
	l.Log(ctx, slog.LevelDebug, name, packetAttrs(val)...)
}

func packetAttrs(val reflect.Value) []slog.Attr {
	typ := val.Type()
	var attrs []slog.Attr
	for i := range typ.NumField() {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		attrs = append(attrs, packetAttr(
			strcase.ToSnake(f.Name),
			realValue(val.Field(i)),
		)...)
	}
	return attrs
}

func packetAttr(name string, val reflect.Value) []slog.Attr {
	// Ignore zero values to keep the log cleaner.
	if val.Kind() == reflect.Invalid || val.IsZero() {
		return nil
	}

	switch name {
	case "properties":
		if val.Kind() == reflect.Struct {
			return packetAttrs(val)
		}
	case "qo_s":
		name = "qos"
	case "password":
		return []slog.Attr{slog.String(name, "<redacted>")}
	case "payload":
		return []slog.Attr{slog.Int("payload_size", val.Len())}
	}

	switch v := val.Interface().(type) {
	case []byte:
		return []slog.Attr{slog.String(name, string(v))}

	case []paho.SubscribeOptions:
		if len(v) == 1 {
			return packetAttrs(reflect.ValueOf(v[0]))
		}

	case paho.UserProperties:
		attrs := make([]any, len(v))
		for i, p := range v {
			attrs[i] = slog.String(p.Key, p.Value)
		}
		return []slog.Attr{slog.Group(name, attrs...)}
	}

	if val.Kind() == reflect.Struct {
		as := packetAttrs(val)
		if len(as) == 0 {
			return nil
		}
		group := make([]any, len(as))
		for i, a := range as {
			group[i] = a
		}
		return []slog.Attr{slog.Group(name, group...)}
	}

	return []slog.Attr{slog.Any(name, val.Interface())}
}

func realValue(val reflect.Value) reflect.Value {
	for val.Kind() == reflect.Pointer || val.Kind() == reflect.Interface {
		val = val.Elem()
	}
	return val
}
