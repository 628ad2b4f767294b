// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app implements the spanpipe command line.
package app

import (
	"fmt"

	"github.com/z5labs/spanpipe/config"
	"github.com/z5labs/spanpipe/config/key"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NewCommand returns the root spanpipe command.
func NewCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "spanpipe",
		Short:        "Span export pipeline",
		Long:         "Drive OpenTelemetry spans through a simple or batching processor into an exporter.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file, rendered as a Go template first")

	cmd.AddCommand(newEmitCommand(&configPath))
	return cmd
}

// flagKeys maps emit flags onto config keys.
var flagKeys = map[string]string{
	"processor":      "processor.kind",
	"max-queue-size": "processor.max_queue_size",
	"max-batch-size": "processor.max_batch_size",
	"exporter":       "exporter.kind",
	"target":         "exporter.grpc.target",
	"endpoint":       "exporter.http.endpoint",
	"producers":      "workload.producers",
	"spans":          "workload.spans",
	"metrics-addr":   "metrics_addr",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

func newEmitCommand(configPath *string) *cobra.Command {
	def := DefaultConfig()

	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Emit a synthetic span workload through the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := changedFlags(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := LoadConfig(*configPath, overrides)
			if err != nil {
				return err
			}

			res, err := Run(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res)
			return err
		},
	}

	fs := cmd.Flags()
	fs.String("processor", def.Processor.Kind, "processor kind: simple or batch")
	fs.Int("max-queue-size", def.Processor.MaxQueueSize, "batch processor queue capacity")
	fs.Int("max-batch-size", def.Processor.MaxBatchSize, "batch processor batch size")
	fs.String("exporter", def.Exporter.Kind, "exporter kind: otlp-grpc, otlp-http, stdout, memory or noop")
	fs.String("target", def.Exporter.Grpc.Target, "OTLP gRPC collector target")
	fs.String("endpoint", def.Exporter.Http.Endpoint, "OTLP HTTP collector endpoint")
	fs.Int("producers", def.Workload.Producers, "number of concurrent span producers")
	fs.Int("spans", def.Workload.Spans, "spans emitted per producer")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.String("log-level", def.Log.Level, "log level")
	fs.String("log-format", def.Log.Format, "log format: json or text")
	return cmd
}

func changedFlags(fs *pflag.FlagSet) (config.Map, error) {
	m := make(config.Map)
	var err error
	fs.Visit(func(f *pflag.Flag) {
		path, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = m.Set(key.Parse(path), f.Value.String())
	})
	return m, err
}
