// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otlp adapts OpenTelemetry span exporters to the [export.Exporter]
// interface and builds the OTLP gRPC, OTLP HTTP and stdout exporters.
//
// Retries inside the OTLP exporters are disabled. Use [export.WithRetry] to
// opt into retrying failed exports.
package otlp

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/z5labs/spanpipe/export"
	"github.com/z5labs/spanpipe/internal/try"
	"github.com/z5labs/spanpipe/record"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporter is an [export.Exporter] backed by an [sdktrace.SpanExporter].
type Exporter struct {
	exp    sdktrace.SpanExporter
	closer io.Closer

	shutdownOnce sync.Once
	shutdownErr  error
}

// New wraps exp. The returned [Exporter] owns exp and shuts it down.
func New(exp sdktrace.SpanExporter) *Exporter {
	return &Exporter{exp: exp}
}

// Export implements the [export.Exporter] interface.
func (e *Exporter) Export(ctx context.Context, batch []record.Record) error {
	spans := make([]sdktrace.ReadOnlySpan, len(batch))
	for i, r := range batch {
		spans[i] = r.Snapshot()
	}
	return e.exp.ExportSpans(ctx, spans)
}

// ForceFlush implements the [export.Exporter] interface. OpenTelemetry span
// exporters send synchronously so there is never anything to flush.
func (e *Exporter) ForceFlush(ctx context.Context) error {
	return nil
}

// Shutdown implements the [export.Exporter] interface.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		err := e.exp.Shutdown(ctx)
		try.Close(&err, e.closer)
		e.shutdownErr = err
	})
	return e.shutdownErr
}

// GrpcConfig configures [NewGrpc].
type GrpcConfig struct {
	// Target is passed to [grpc.NewClient], e.g. "localhost:4317".
	Target      string            `config:"target"`
	Insecure    bool              `config:"insecure"`
	Headers     map[string]string `config:"headers"`
	Compression string            `config:"compression"`

	// DialOptions are appended after the transport credentials.
	DialOptions []grpc.DialOption `config:"-"`
}

// ErrMissingTarget is returned by the builders when no collector address is configured.
var ErrMissingTarget = errors.New("otlp: collector target must be set")

// NewGrpc creates an OTLP exporter sending spans over a gRPC connection
// which it owns and closes on Shutdown.
func NewGrpc(ctx context.Context, cfg GrpcConfig) (*Exporter, error) {
	if cfg.Target == "" {
		return nil, ErrMissingTarget
	}

	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	}

	dialOpts := append(
		[]grpc.DialOption{grpc.WithTransportCredentials(creds)},
		cfg.DialOptions...,
	)
	conn, err := grpc.NewClient(cfg.Target, dialOpts...)
	if err != nil {
		return nil, err
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithGRPCConn(conn),
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{Enabled: false}),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	if cfg.Compression == "gzip" {
		opts = append(opts, otlptracegrpc.WithCompressor("gzip"))
	}

	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		try.Close(&err, conn)
		return nil, err
	}
	return &Exporter{
		exp:    exp,
		closer: conn,
	}, nil
}

// HttpConfig configures [NewHttp].
type HttpConfig struct {
	// Endpoint is the collector host and port, e.g. "localhost:4318".
	Endpoint    string            `config:"endpoint"`
	URLPath     string            `config:"url_path"`
	Insecure    bool              `config:"insecure"`
	Headers     map[string]string `config:"headers"`
	Compression string            `config:"compression"`

	// MaxRetries is how many times a failed HTTP request is retried by the
	// transport. Zero disables transport retries.
	MaxRetries   int           `config:"max_retries"`
	RetryWaitMin time.Duration `config:"retry_wait_min"`
	RetryWaitMax time.Duration `config:"retry_wait_max"`

	LogHandler slog.Handler `config:"-"`
}

// NewHttp creates an OTLP exporter sending protobuf encoded spans over HTTP.
// Requests go through a retryable HTTP client configured by cfg.
func NewHttp(ctx context.Context, cfg HttpConfig) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, ErrMissingTarget
	}

	exp, err := otlptracehttp.New(ctx, httpOptions(cfg)...)
	if err != nil {
		return nil, err
	}
	return New(exp), nil
}

func httpOptions(cfg HttpConfig) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithHTTPClient(newRetryableClient(cfg)),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	}
	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if cfg.Compression == "gzip" {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	return opts
}

func newRetryableClient(cfg HttpConfig) *http.Client {
	h := cfg.LogHandler
	if h == nil {
		h = slog.DiscardHandler
	}

	client := retryablehttp.NewClient()
	client.Logger = slog.New(h)
	client.RetryMax = cfg.MaxRetries
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	return client.StandardClient()
}

// NewStdout creates an exporter which writes spans to w as JSON.
func NewStdout(w io.Writer, pretty bool) (*Exporter, error) {
	opts := []stdouttrace.Option{
		stdouttrace.WithWriter(w),
	}
	if pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}

	exp, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, err
	}
	return New(exp), nil
}

var _ export.Exporter = (*Exporter)(nil)
