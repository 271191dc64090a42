// Copyright (c) Microsoft Corporation. All rights reserved.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestSessionMetricsAreRecorded(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewSessionMetrics(mp.Meter(InstrumentationName))
	ctx := context.Background()

	m.CommandSent(ctx, "Network.enable")
	m.CommandSent(ctx, "Network.enable")
	m.CommandSettled(ctx)
	m.CommandTimedOut(ctx, "Network.enable")
	m.EventReceived(ctx, "Network.requestWillBeSent")
	m.MessageDiscarded(ctx, "unknown-id")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		sum, isSum := md.Data.(metricdata.Sum[int64])
		require.True(t, isSum, md.Name)
		for _, dp := range sum.DataPoints {
			sums[md.Name] += dp.Value
		}
	}

	require.Equal(t, int64(2), sums["cdpsession.commands.sent"])
	require.Equal(t, int64(1), sums["cdpsession.commands.pending"])
	require.Equal(t, int64(1), sums["cdpsession.commands.timeouts"])
	require.Equal(t, int64(1), sums["cdpsession.events.received"])
	require.Equal(t, int64(1), sums["cdpsession.messages.discarded"])
	require.NotContains(t, sums, "cdpsession.commands.failed")
}
