// Copyright (c) Microsoft Corporation. All rights reserved.

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func NewInt64Counter(meter metric.Meter, name string, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(
		name,
		metric.WithDescription(description),
		metric.WithUnit("1"), // dimensionless
	)
	if err != nil {
		panic(err)
	}
	return counter
}

func NewInt64UpDownCounter(meter metric.Meter, name string, description string) metric.Int64UpDownCounter {
	counter, err := meter.Int64UpDownCounter(
		name,
		metric.WithDescription(description),
		metric.WithUnit("1"), // dimensionless
	)
	if err != nil {
		panic(err)
	}
	return counter
}

// SessionMetrics are the counters recorded by a DevTools session.
type SessionMetrics struct {
	commandsSent      metric.Int64Counter
	commandsFailed    metric.Int64Counter
	commandTimeouts   metric.Int64Counter
	pendingCommands   metric.Int64UpDownCounter
	eventsReceived    metric.Int64Counter
	messagesDiscarded metric.Int64Counter
}

func NewSessionMetrics(meter metric.Meter) *SessionMetrics {
	return &SessionMetrics{
		commandsSent:      NewInt64Counter(meter, "cdpsession.commands.sent", "Number of DevTools commands written to the connection"),
		commandsFailed:    NewInt64Counter(meter, "cdpsession.commands.failed", "Number of DevTools commands that received an error response"),
		commandTimeouts:   NewInt64Counter(meter, "cdpsession.commands.timeouts", "Number of DevTools commands that did not receive a response in time"),
		pendingCommands:   NewInt64UpDownCounter(meter, "cdpsession.commands.pending", "Number of DevTools commands awaiting a response"),
		eventsReceived:    NewInt64Counter(meter, "cdpsession.events.received", "Number of DevTools events received"),
		messagesDiscarded: NewInt64Counter(meter, "cdpsession.messages.discarded", "Number of inbound messages that could not be routed"),
	}
}

func methodAttr(method string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("method", method))
}

func (m *SessionMetrics) CommandSent(ctx context.Context, method string) {
	m.commandsSent.Add(ctx, 1, methodAttr(method))
	m.pendingCommands.Add(ctx, 1)
}

// Records that a sent command is no longer awaited, for whatever reason.
func (m *SessionMetrics) CommandSettled(ctx context.Context) {
	m.pendingCommands.Add(ctx, -1)
}

func (m *SessionMetrics) CommandFailed(ctx context.Context, method string) {
	m.commandsFailed.Add(ctx, 1, methodAttr(method))
}

func (m *SessionMetrics) CommandTimedOut(ctx context.Context, method string) {
	m.commandTimeouts.Add(ctx, 1, methodAttr(method))
}

func (m *SessionMetrics) EventReceived(ctx context.Context, method string) {
	m.eventsReceived.Add(ctx, 1, methodAttr(method))
}

func (m *SessionMetrics) MessageDiscarded(ctx context.Context, reason string) {
	m.messagesDiscarded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
