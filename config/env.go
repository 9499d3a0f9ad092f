// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package config

import (
	"strconv"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/iso"
)

type envVar struct {
	name  string
	apply func(c *Config, value string) error
}

var envVars = []envVar{
	{"MQTT_BROKER", setString(func(c *Config) *string { return &c.Broker.Host })},
	{"MQTT_PORT", setInt(func(c *Config) *int { return &c.Broker.Port })},
	{"SIGBENCH_CLIENT_ID", setString(func(c *Config) *string { return &c.Broker.ClientID })},
	{"SIGBENCH_CLOUD_ENDPOINT", setString(func(c *Config) *string { return &c.Cloud.Endpoint })},
	{"SIGBENCH_TRIALS", setInt(func(c *Config) *int { return &c.Bench.Trials })},
	{"SIGBENCH_SIGNAL_LENGTH", setInt(func(c *Config) *int { return &c.Bench.SignalLength })},
	{"SIGBENCH_TIMEOUT", setDuration(func(c *Config) *iso.Duration { return &c.Bench.Timeout })},
	{"SIGBENCH_OUTPUT", setString(func(c *Config) *string { return &c.Bench.Output })},
	{"SIGBENCH_METRICS_FILE", setString(func(c *Config) *string { return &c.Metrics.File })},
	{"SIGBENCH_REDIS_ADDR", setString(func(c *Config) *string { return &c.Metrics.Redis.Addr })},
	{"SIGBENCH_OBJECT_ENDPOINT", setString(func(c *Config) *string { return &c.Metrics.Object.Endpoint })},
	{"SIGBENCH_OBJECT_BUCKET", setString(func(c *Config) *string { return &c.Metrics.Object.Bucket })},
	{"SIGBENCH_OBJECT_ACCESS_KEY", setString(func(c *Config) *string { return &c.Metrics.Object.AccessKey })},
	{"SIGBENCH_OBJECT_SECRET_KEY", setString(func(c *Config) *string { return &c.Metrics.Object.SecretKey })},
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, v := range envVars {
		value, ok := lookup(v.name)
		if !ok {
			continue
		}
		if err := v.apply(c, value); err != nil {
			return &errors.Error{
				Message:       "invalid environment variable " + v.name,
				Kind:          errors.ConfigurationInvalid,
				NestedError:   err,
				PropertyName:  v.name,
				PropertyValue: value,
			}
		}
	}
	return nil
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, value string) error {
		*field(c) = value
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setDuration(field func(*Config) *iso.Duration) func(*Config, string) error {
	return func(c *Config, value string) error {
		return field(c).UnmarshalText([]byte(value))
	}
}
