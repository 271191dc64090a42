/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/microsoft/cdpsession/pkg/logger"
)

func TestMetricsAreDiscardedWithoutDiagnosticsLog(t *testing.T) {
	t.Setenv(logger.CDPSESSION_DIAGNOSTICS_LOG_LEVEL, "error")
	t.Setenv(logger.CDPSESSION_DIAGNOSTICS_LOG_FOLDER, t.TempDir())

	exporter, err := newMetricExporter("exporter-test")
	require.NoError(t, err)
	require.IsType(t, discardExporter{}, exporter)

	// The exporter must work with a periodic reader the same way the stdout exporter does.
	reader := sdkmetric.NewPeriodicReader(exporter)
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewSessionMetrics(mp.Meter(InstrumentationName))
	ctx := context.Background()
	m.CommandSent(ctx, "Page.navigate")

	require.NoError(t, exporter.Export(ctx, &metricdata.ResourceMetrics{}))
	require.NoError(t, mp.ForceFlush(ctx))
	require.NoError(t, mp.Shutdown(ctx))
}
