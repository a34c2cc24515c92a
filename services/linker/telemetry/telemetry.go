// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry installs the OpenTelemetry trace and metric providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/EntityLink/services/linker/config"
)

// stdoutMetricInterval is the export period of the stdout metric reader.
const stdoutMetricInterval = 30 * time.Second

// Options adjusts Setup for tests and embedding.
type Options struct {
	// Registerer receives the Prometheus bridge. Nil uses the default
	// registerer, which /metrics serves.
	Registerer prometheus.Registerer

	// Writer receives stdout exporter output. Nil uses os.Stdout.
	Writer io.Writer

	// Global installs the providers and W3C propagators as otel globals.
	Global bool
}

// Telemetry holds the installed providers.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// Setup creates trace and metric providers from cfg.
//
// # Description
//
// Traces go to the exporter named by cfg.TraceExporter: "none" keeps an SDK
// provider without an exporter so spans still carry trace IDs for log
// correlation, "stdout" pretty-prints spans and "otlp" ships them over gRPC
// to cfg.OTLPEndpoint. Metrics are always bridged into Prometheus and are
// additionally printed periodically when cfg.MetricsStdout is set.
//
// # Outputs
//
//   - *Telemetry: Call Shutdown on exit to flush exporters.
//   - error: An exporter could not be created.
func Setup(ctx context.Context, cfg config.TelemetryConfig, opts Options) (*Telemetry, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	switch cfg.TraceExporter {
	case "", "none":
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	case "otlp":
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.TraceExporter)
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	var promOpts []otelprom.Option
	if opts.Registerer != nil {
		promOpts = append(promOpts, otelprom.WithRegisterer(opts.Registerer))
	}
	promReader, err := otelprom.New(promOpts...)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("prometheus metric bridge: %w", err)
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res), sdkmetric.WithReader(promReader)}
	if cfg.MetricsStdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, fmt.Errorf("stdout metric exporter: %w", err)
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(stdoutMetricInterval)),
		))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)

	if opts.Global {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	return &Telemetry{TracerProvider: tp, MeterProvider: mp}, nil
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.TracerProvider.Shutdown(ctx),
		t.MeterProvider.Shutdown(ctx),
	)
}
