// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EntityLink/services/linker/config"
)

func TestSetup_StdoutTraces(t *testing.T) {
	var buf bytes.Buffer
	tel, err := Setup(context.Background(), config.TelemetryConfig{
		ServiceName:   "entitylink-test",
		TraceExporter: "stdout",
	}, Options{Registerer: prometheus.NewRegistry(), Writer: &buf})
	require.NoError(t, err)

	_, span := tel.TracerProvider.Tracer("test").Start(context.Background(), "resolve")
	span.End()
	require.NoError(t, tel.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "resolve"`)
	assert.Contains(t, buf.String(), "entitylink-test")
}

func TestSetup_PrometheusBridge(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel, err := Setup(context.Background(), config.TelemetryConfig{
		ServiceName:   "entitylink-test",
		TraceExporter: "none",
	}, Options{Registerer: reg})
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	counter, err := tel.MeterProvider.Meter("test").Int64Counter("linker.test.events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.True(t, containsPrefix(names, "linker_test_events"), names)
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), config.TelemetryConfig{TraceExporter: "zipkin"}, Options{Registerer: prometheus.NewRegistry()})
	assert.Error(t, err)
}

func containsPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
