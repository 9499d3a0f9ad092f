// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package config loads the sigbench configuration from an optional YAML file
// and the environment.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/iso"
	"github.com/edgebench/sigbench/mqtt"
	"gopkg.in/yaml.v3"
)

type (
	// Config is the configuration of every sigbench command.
	Config struct {
		Broker  BrokerConfig  `yaml:"broker"`
		Topics  TopicsConfig  `yaml:"topics"`
		Cloud   CloudConfig   `yaml:"cloud"`
		Edge    EdgeConfig    `yaml:"edge"`
		Bench   BenchConfig   `yaml:"bench"`
		Metrics MetricsConfig `yaml:"metrics"`
		Log     LogConfig     `yaml:"log"`
	}

	// BrokerConfig locates the MQTT broker and tunes the session.
	BrokerConfig struct {
		Host              string       `yaml:"host"`
		Port              int          `yaml:"port"`
		ClientID          string       `yaml:"client_id"`
		KeepAlive         iso.Duration `yaml:"keep_alive"`
		SessionExpiry     iso.Duration `yaml:"session_expiry"`
		ConnectTimeout    iso.Duration `yaml:"connect_timeout"`
		ReconnectAttempts uint64       `yaml:"reconnect_attempts"`
	}

	TopicsConfig struct {
		Raw       string `yaml:"raw"`
		Processed string `yaml:"processed"`
	}

	// CloudConfig configures both the cloud function and its clients.
	CloudConfig struct {
		Endpoint      string       `yaml:"endpoint"`
		Listen        string       `yaml:"listen"`
		MemoryLimitMB int          `yaml:"memory_limit_mb"`
		Timeout       iso.Duration `yaml:"timeout"`
		MirrorTopic   string       `yaml:"mirror_topic"`
	}

	EdgeConfig struct {
		Admin          string `yaml:"admin"`
		Retain         int    `yaml:"retain"`
		Concurrency    uint   `yaml:"concurrency"`
		EmbeddedBroker bool   `yaml:"embedded_broker"`
	}

	BenchConfig struct {
		Trials        int                `yaml:"trials"`
		SignalLength  int                `yaml:"signal_length"`
		Timeout       iso.Duration       `yaml:"timeout"`
		Concurrency   int                `yaml:"concurrency"`
		ParallelPaths bool               `yaml:"parallel_paths"`
		Distribution  DistributionConfig `yaml:"distribution"`
		Output        string             `yaml:"output"`
		Summary       string             `yaml:"summary"`
		MetricsAddr   string             `yaml:"metrics_addr"`
	}

	// DistributionConfig selects the test signal generator.
	DistributionConfig struct {
		Kind   string  `yaml:"kind"`
		Mean   float64 `yaml:"mean"`
		StdDev float64 `yaml:"stddev"`
		Min    float64 `yaml:"min"`
		Max    float64 `yaml:"max"`
		Value  float64 `yaml:"value"`
	}

	// MetricsConfig selects the sinks for invocation metrics. Every sink
	// with a non-empty location is written.
	MetricsConfig struct {
		File            string       `yaml:"file"`
		FilePartitioned bool         `yaml:"file_partitioned"`
		Object          ObjectConfig `yaml:"object"`
		Redis           RedisConfig  `yaml:"redis"`
	}

	ObjectConfig struct {
		Endpoint  string `yaml:"endpoint"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Region    string `yaml:"region"`
		Secure    bool   `yaml:"secure"`
	}

	RedisConfig struct {
		Addr   string       `yaml:"addr"`
		Prefix string       `yaml:"prefix"`
		TTL    iso.Duration `yaml:"ttl"`
	}

	LogConfig struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:           "localhost",
			Port:           1883,
			KeepAlive:      iso.Duration(60 * time.Second),
			SessionExpiry:  iso.Duration(time.Hour),
			ConnectTimeout: iso.Duration(10 * time.Second),
		},
		Topics: TopicsConfig{
			Raw:       "sensors/raw_data",
			Processed: "processed/signal",
		},
		Cloud: CloudConfig{
			Endpoint:      "http://localhost:8080/invoke",
			Listen:        ":8080",
			MemoryLimitMB: 128,
			Timeout:       iso.Duration(30 * time.Second),
		},
		Edge: EdgeConfig{
			Admin:  ":9100",
			Retain: 128,
		},
		Bench: BenchConfig{
			Trials:       10,
			SignalLength: 1000,
			Timeout:      iso.Duration(5 * time.Second),
			Concurrency:  1,
			Distribution: DistributionConfig{Kind: "normal", StdDev: 1},
			Output:       "performance_results.json",
		},
		Metrics: MetricsConfig{
			File: "metrics.log",
			Object: ObjectConfig{
				Bucket: "signal-processing-metrics",
			},
			Redis: RedisConfig{Prefix: "sigbench"},
		},
		Log: LogConfig{Level: "info", Format: FormatText},
	}
}

// Load reads the YAML file at path, if any, over the defaults, applies the
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &errors.Error{
				Message:       "cannot read configuration file",
				Kind:          errors.ConfigurationInvalid,
				NestedError:   err,
				PropertyName:  "config",
				PropertyValue: path,
			}
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, &errors.Error{
				Message:       "cannot parse configuration file: " + err.Error(),
				Kind:          errors.ConfigurationInvalid,
				NestedError:   err,
				PropertyName:  "config",
				PropertyValue: path,
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Restore defaults for settings that were explicitly emptied.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Broker.Host == "" {
		c.Broker.Host = def.Broker.Host
	}
	if c.Broker.Port == 0 {
		c.Broker.Port = def.Broker.Port
	}
	if c.Topics.Raw == "" {
		c.Topics.Raw = def.Topics.Raw
	}
	if c.Topics.Processed == "" {
		c.Topics.Processed = def.Topics.Processed
	}
	if c.Cloud.Endpoint == "" {
		c.Cloud.Endpoint = def.Cloud.Endpoint
	}
	if c.Cloud.Listen == "" {
		c.Cloud.Listen = def.Cloud.Listen
	}
	if c.Bench.Timeout == 0 {
		c.Bench.Timeout = def.Bench.Timeout
	}
	if c.Bench.Concurrency == 0 {
		c.Bench.Concurrency = def.Bench.Concurrency
	}
	if c.Bench.Output == "" {
		c.Bench.Output = def.Bench.Output
	}
	if c.Metrics.Object.Bucket == "" {
		c.Metrics.Object.Bucket = def.Metrics.Object.Bucket
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Broker.Port < 1 || c.Broker.Port > 65535:
		return invalid("broker.port", c.Broker.Port)
	case c.Broker.KeepAlive < 0:
		return invalid("broker.keep_alive", c.Broker.KeepAlive)
	case c.Broker.SessionExpiry < 0:
		return invalid("broker.session_expiry", c.Broker.SessionExpiry)
	case c.Broker.ConnectTimeout < 0:
		return invalid("broker.connect_timeout", c.Broker.ConnectTimeout)
	case c.Cloud.MemoryLimitMB < 0:
		return invalid("cloud.memory_limit_mb", c.Cloud.MemoryLimitMB)
	case c.Cloud.Timeout < 0:
		return invalid("cloud.timeout", c.Cloud.Timeout)
	case c.Edge.Retain < 0:
		return invalid("edge.retain", c.Edge.Retain)
	case c.Bench.Trials < 0:
		return invalid("bench.trials", c.Bench.Trials)
	case c.Bench.SignalLength < 1:
		return invalid("bench.signal_length", c.Bench.SignalLength)
	case c.Bench.Timeout <= 0:
		return invalid("bench.timeout", c.Bench.Timeout)
	case c.Bench.Concurrency < 1:
		return invalid("bench.concurrency", c.Bench.Concurrency)
	case c.Metrics.Redis.TTL < 0:
		return invalid("metrics.redis.ttl", c.Metrics.Redis.TTL)
	case c.Log.Format != FormatText && c.Log.Format != FormatJSON:
		return invalid("log.format", c.Log.Format)
	}

	for name, topic := range map[string]string{
		"topics.raw":         c.Topics.Raw,
		"topics.processed":   c.Topics.Processed,
		"cloud.mirror_topic": c.Cloud.MirrorTopic,
	} {
		if topic == "" && name == "cloud.mirror_topic" {
			continue
		}
		if err := mqtt.ValidateTopicName(topic); err != nil {
			return invalid(name, topic)
		}
	}
	if c.Topics.Raw == c.Topics.Processed {
		return invalid("topics.processed", c.Topics.Processed)
	}

	switch strings.ToLower(c.Bench.Distribution.Kind) {
	case "normal", "uniform", "constant":
	default:
		return invalid("bench.distribution.kind", c.Bench.Distribution.Kind)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return invalid("log.level", c.Log.Level)
	}
	return nil
}

// BrokerAddr returns the broker's host:port.
func (c *Config) BrokerAddr() string {
	return net.JoinHostPort(c.Broker.Host, strconv.Itoa(c.Broker.Port))
}

// SessionOptions returns the MQTT session options for the broker settings.
func (c *Config) SessionOptions() []mqtt.SessionClientOption {
	opts := []mqtt.SessionClientOption{
		mqtt.WithKeepAlive(time.Duration(c.Broker.KeepAlive)),
		mqtt.WithSessionExpiry(time.Duration(c.Broker.SessionExpiry)),
		mqtt.WithConnectTimeout(time.Duration(c.Broker.ConnectTimeout)),
		mqtt.WithReconnectAttempts(c.Broker.ReconnectAttempts),
	}
	if c.Broker.ClientID != "" {
		opts = append(opts, mqtt.WithClientID(c.Broker.ClientID))
	}
	return opts
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

func invalid(name string, value any) error {
	return &errors.Error{
		Message:       fmt.Sprintf("invalid %s: %v", name, value),
		Kind:          errors.ConfigurationInvalid,
		PropertyName:  name,
		PropertyValue: value,
	}
}
