// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/z5labs/spanpipe/config"
	"github.com/z5labs/spanpipe/export/otlp"
	"github.com/z5labs/spanpipe/processor"
)

// Config is everything the emit command can be configured with.
type Config struct {
	ServiceName     string        `config:"service_name"`
	MetricsAddr     string        `config:"metrics_addr"`
	ShutdownTimeout time.Duration `config:"shutdown_timeout"`

	Log       LogConfig       `config:"log"`
	Processor ProcessorConfig `config:"processor"`
	Exporter  ExporterConfig  `config:"exporter"`
	Workload  WorkloadConfig  `config:"workload"`
}

// LogConfig configures the command's own logs.
type LogConfig struct {
	Format string `config:"format"`
	Level  string `config:"level"`
}

// ProcessorConfig selects and tunes the processor.
type ProcessorConfig struct {
	// Kind is either "simple" or "batch".
	Kind           string        `config:"kind"`
	MaxQueueSize   int           `config:"max_queue_size"`
	MaxBatchSize   int           `config:"max_batch_size"`
	ScheduledDelay time.Duration `config:"scheduled_delay"`
	ExportTimeout  time.Duration `config:"export_timeout"`
}

// ExporterConfig selects the exporter and its decorators.
type ExporterConfig struct {
	// Kind is one of "otlp-grpc", "otlp-http", "stdout", "memory" or "noop".
	Kind   string          `config:"kind"`
	Pretty bool            `config:"pretty"`
	Grpc   otlp.GrpcConfig `config:"grpc"`
	Http   otlp.HttpConfig `config:"http"`

	Retry   RetryConfig   `config:"retry"`
	Breaker BreakerConfig `config:"circuit_breaker"`
}

// RetryConfig enables export.WithRetry.
type RetryConfig struct {
	Enabled         bool          `config:"enabled"`
	MaxAttempts     uint64        `config:"max_attempts"`
	InitialInterval time.Duration `config:"initial_interval"`
	MaxInterval     time.Duration `config:"max_interval"`
	MaxElapsedTime  time.Duration `config:"max_elapsed_time"`
}

// BreakerConfig enables export.WithCircuitBreaker.
type BreakerConfig struct {
	Enabled     bool          `config:"enabled"`
	TripAfter   uint32        `config:"trip_after"`
	OpenTimeout time.Duration `config:"open_timeout"`
}

func (c ExporterConfig) headers() map[string]string {
	switch c.Kind {
	case "otlp-grpc":
		return c.Grpc.Headers
	case "otlp-http":
		return c.Http.Headers
	default:
		return nil
	}
}

// WorkloadConfig describes the spans produced by emit.
type WorkloadConfig struct {
	Producers    int           `config:"producers"`
	Spans        int           `config:"spans"`
	Attributes   int           `config:"attributes"`
	FlushTimeout time.Duration `config:"flush_timeout"`
}

// DefaultConfig mirrors a single benchmark iteration: 100 spans with
// 10 attributes each, flushed with a one second deadline, against an
// exporter given 50 seconds per export.
func DefaultConfig() Config {
	return Config{
		ServiceName:     "spanpipe",
		ShutdownTimeout: 50 * time.Second,
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Processor: ProcessorConfig{
			Kind:           "batch",
			MaxQueueSize:   processor.DefaultMaxQueueSize,
			MaxBatchSize:   processor.DefaultMaxBatchSize,
			ScheduledDelay: processor.DefaultScheduledDelay,
			ExportTimeout:  50 * time.Second,
		},
		Exporter: ExporterConfig{
			Kind: "otlp-grpc",
			Grpc: otlp.GrpcConfig{
				Target:   "localhost:4317",
				Insecure: true,
			},
			Http: otlp.HttpConfig{
				Endpoint: "localhost:4318",
				Insecure: true,
			},
			Retry: RetryConfig{
				InitialInterval: 5 * time.Second,
				MaxInterval:     30 * time.Second,
				MaxElapsedTime:  time.Minute,
			},
			Breaker: BreakerConfig{
				TripAfter:   5,
				OpenTimeout: 30 * time.Second,
			},
		},
		Workload: WorkloadConfig{
			Producers:    1,
			Spans:        100,
			Attributes:   10,
			FlushTimeout: time.Second,
		},
	}
}

// EnvPrefix is the prefix of environment variables read by [LoadConfig].
const EnvPrefix = "SPANPIPE"

// LoadConfig starts from [DefaultConfig] and applies, in order, the YAML
// file at path (if any, rendered as a text/template first), environment
// variables prefixed with [EnvPrefix] and overrides.
func LoadConfig(path string, overrides config.Map) (Config, error) {
	var srcs []config.Source
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer f.Close()
		srcs = append(srcs, config.FromYaml(config.RenderTemplate(f)))
	}
	srcs = append(srcs, config.FromEnv(EnvPrefix), overrides)

	m, err := config.Read(srcs...)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	err = m.Unmarshal(&cfg)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// InvalidLogLevelError is returned for log levels slog does not understand.
type InvalidLogLevelError struct {
	Level string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q: %s", e.Level, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidLogLevelError) Unwrap() error {
	return e.Cause
}

func (c LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(c.Level))
	if err != nil {
		return lvl, InvalidLogLevelError{Level: c.Level, Cause: err}
	}
	return lvl, nil
}
