//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry wires the evaluation engines to OpenTelemetry. Until a
// provider is installed the global no-op providers are used, so the engines
// can instrument unconditionally.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies this module's instrumentation scope.
const InstrumentationName = "trpc.group/trpc-go/trpc-tracker-go"

var (
	// Tracer is the tracer used across the module.
	Tracer trace.Tracer = otel.Tracer(InstrumentationName)
	// Meter is the meter used across the module.
	Meter metric.Meter = otel.Meter(InstrumentationName)

	// CalcBatchRows counts rows processed by batch recomputation.
	CalcBatchRows metric.Int64Counter
	// OptionResolutions counts dynamic-option resolution calls, labeled by
	// outcome source.
	OptionResolutions metric.Int64Counter
	// OptionResolveDuration records dynamic-option resolution latency.
	OptionResolveDuration metric.Float64Histogram
)

func init() {
	// The default global meter is a no-op; instrument creation on it cannot
	// fail in a way that matters.
	_ = initInstruments()
}

// InitTracerProvider installs tp as the source of the module tracer.
func InitTracerProvider(tp trace.TracerProvider) {
	Tracer = tp.Tracer(InstrumentationName)
}

// InitMeterProvider installs mp as the source of the module meter and
// recreates the instruments on it.
func InitMeterProvider(mp metric.MeterProvider) error {
	Meter = mp.Meter(InstrumentationName)
	return initInstruments()
}

func initInstruments() error {
	var err error
	if CalcBatchRows, err = Meter.Int64Counter(
		"tracker.calc.batch.rows",
		metric.WithDescription("Rows processed by batch calculation"),
		metric.WithUnit("{row}"),
	); err != nil {
		return fmt.Errorf("create calc batch rows counter: %w", err)
	}
	if OptionResolutions, err = Meter.Int64Counter(
		"tracker.options.resolutions",
		metric.WithDescription("Dynamic option resolution calls"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("create option resolutions counter: %w", err)
	}
	if OptionResolveDuration, err = Meter.Float64Histogram(
		"tracker.options.resolve.duration",
		metric.WithDescription("Dynamic option resolution duration"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("create option resolve duration histogram: %w", err)
	}
	return nil
}
