// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package metrics

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

type (
	// RedisAPI is the subset of *redis.Client used by the redis sink.
	RedisAPI interface {
		SetNX(
			ctx context.Context,
			key string,
			value interface{},
			expiration time.Duration,
		) *redis.BoolCmd
	}

	// RedisSink stores each record under prefix:metrics/YYYY-MM-DD/<id>.json.
	// Records are write-once: a second write to the same key is ignored.
	RedisSink struct {
		api    RedisAPI
		prefix string
		ttl    time.Duration
	}
)

// NewRedisSink connects to a redis server.
func NewRedisSink(addr, prefix string, ttl time.Duration) *RedisSink {
	return NewRedisSinkWithAPI(
		redis.NewClient(&redis.Options{Addr: addr}),
		prefix,
		ttl,
	)
}

// NewRedisSinkWithAPI creates a redis sink over an existing client.
func NewRedisSinkWithAPI(api RedisAPI, prefix string, ttl time.Duration) *RedisSink {
	return &RedisSink{api: api, prefix: prefix, ttl: ttl}
}

// Put stores the record unless the key already exists.
func (s *RedisSink) Put(ctx context.Context, key Key, record []byte) error {
	name := key.Object()
	if s.prefix != "" {
		name = s.prefix + ":" + name
	}
	if err := s.api.SetNX(ctx, name, record, s.ttl).Err(); err != nil {
		return recordError("cannot store metrics record in redis", err)
	}
	return nil
}
