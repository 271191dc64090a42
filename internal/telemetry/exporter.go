/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zapcore"

	"github.com/microsoft/cdpsession/pkg/logger"
	"github.com/microsoft/cdpsession/pkg/osutil"
)

func newTraceExporter(logName string) (sdktrace.SpanExporter, error) {
	telemetryFile, err := openTelemetryFile("traces", logName)
	if errors.Is(err, errTelemetryNotEnabled) {
		return discardExporter{}, nil
	} else if err != nil {
		return nil, err
	}

	return stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(telemetryFile))
}

func newMetricExporter(logName string) (sdkmetric.Exporter, error) {
	telemetryFile, err := openTelemetryFile("metrics", logName)
	if errors.Is(err, errTelemetryNotEnabled) {
		return discardExporter{}, nil
	} else if err != nil {
		return nil, err
	}

	return stdoutmetric.New(stdoutmetric.WithWriter(telemetryFile))
}

var errTelemetryNotEnabled = errors.New("telemetry output not enabled")

// Telemetry goes next to the diagnostics logs, and only when those are collected at debug level.
func openTelemetryFile(kind string, logName string) (*os.File, error) {
	logLevel, err := logger.GetDiagnosticsLogLevel()
	if err != nil || logLevel > zapcore.DebugLevel {
		return nil, errTelemetryNotEnabled
	}

	logFolder, err := logger.EnsureDiagnosticsLogsFolder()
	if err != nil {
		return nil, err
	}

	telemetryFileName := fmt.Sprintf("%s-%s-%d-%d.json", kind, logName, time.Now().Unix(), os.Getpid())
	return os.OpenFile(filepath.Join(logFolder, telemetryFileName), os.O_RDWR|os.O_CREATE|os.O_EXCL|os.O_TRUNC, osutil.PermissionOnlyOwnerReadWrite)
}

type discardExporter struct{}

var _ sdkmetric.Exporter = discardExporter{}
var _ sdktrace.SpanExporter = discardExporter{}

func (discardExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return nil
}

func (discardExporter) Export(context.Context, *metricdata.ResourceMetrics) error {
	return nil
}

func (discardExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (discardExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (discardExporter) ForceFlush(context.Context) error {
	return nil
}

func (discardExporter) Shutdown(ctx context.Context) error {
	return nil
}
