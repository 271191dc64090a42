/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const InstrumentationName = "github.com/microsoft/cdpsession"

type TelemetrySystem struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	spanExporter   sdktrace.SpanExporter
	metricExporter sdkmetric.Exporter
}

// Creates the tracer and meter providers and installs them as the global otel providers.
// Telemetry is written to the diagnostics log folder when debug diagnostics are enabled,
// and discarded otherwise.
func NewTelemetrySystem(logName string) TelemetrySystem {
	spanExp, err := newTraceExporter(logName)
	if err != nil {
		panic(err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExp),
	)

	metricExp, err := newMetricExporter(logName)
	if err != nil {
		panic(err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(1*time.Minute)),
		),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return TelemetrySystem{
		TracerProvider: tp,
		MeterProvider:  mp,
		spanExporter:   spanExp,
		metricExporter: metricExp,
	}
}

func (ts TelemetrySystem) Shutdown(ctx context.Context) error {
	return errors.Join(
		ts.TracerProvider.Shutdown(ctx),
		ts.MeterProvider.Shutdown(ctx),
		ts.spanExporter.Shutdown(ctx),
		ts.metricExporter.Shutdown(ctx),
	)
}

func CallWithTelemetryNoResult(tracer trace.Tracer, spanName string, parentCtx context.Context, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	spanCtx, span := tracer.Start(parentCtx, spanName, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(spanCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
