/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package devtools

import (
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/microsoft/cdpsession/internal/devtools/domains"
	"github.com/microsoft/cdpsession/internal/telemetry"
	"github.com/microsoft/cdpsession/pkg/osutil"
)

const (
	CDPSESSION_COMMAND_TIMEOUT_SECONDS = "CDPSESSION_COMMAND_TIMEOUT_SECONDS"
	CDPSESSION_CONNECT_TIMEOUT_SECONDS = "CDPSESSION_CONNECT_TIMEOUT_SECONDS"
	CDPSESSION_VERSION_TOLERANCE       = "CDPSESSION_VERSION_TOLERANCE"
	CDPSESSION_WAIT_FOR_DEBUGGER       = "CDPSESSION_WAIT_FOR_DEBUGGER"
)

var (
	defaultCommandTimeout   = 30 * time.Second
	defaultConnectTimeout   = 30 * time.Second
	defaultVersionTolerance = domains.DefaultVersionTolerance
	defaultWaitForDebugger  = false
)

const (
	defaultCloseTimeout = 2 * time.Second

	// Upper bound for the detach command sent during a graceful stop.
	detachTimeout = 2 * time.Second
)

type SessionConfig struct {
	// The DevTools endpoint: "host:port", "http://host:port", or the browser WebSocket URL.
	Endpoint string

	// Browser major version to select the domain set for. Zero means query the browser.
	ProtocolVersion int

	// How many major versions the browser may be ahead of the newest matching domain set.
	// Negative means the default.
	VersionTolerance int

	CommandTimeout time.Duration
	ConnectTimeout time.Duration
	CloseTimeout   time.Duration

	// Passed to Target.setAutoAttach. Related targets (workers, iframes) start paused until resumed.
	WaitForDebuggerOnStart bool

	Registry          *domains.Registry
	HTTPClient        *http.Client
	ConnectionFactory ConnectionFactory
	Logger            logr.Logger
	Meter             metric.Meter
	Tracer            trace.Tracer
}

// Returns a configuration for the given endpoint with all defaults (including environment overrides) applied.
func NewSessionConfig(endpoint string) SessionConfig {
	return SessionConfig{
		Endpoint:               endpoint,
		VersionTolerance:       defaultVersionTolerance,
		CommandTimeout:         defaultCommandTimeout,
		ConnectTimeout:         defaultConnectTimeout,
		CloseTimeout:           defaultCloseTimeout,
		WaitForDebuggerOnStart: defaultWaitForDebugger,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.VersionTolerance < 0 {
		c.VersionTolerance = defaultVersionTolerance
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = defaultCommandTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = defaultCloseTimeout
	}
	if c.Registry == nil {
		c.Registry = domains.DefaultRegistry()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.ConnectionFactory == nil {
		c.ConnectionFactory = NewWebSocketConnection
	}
	if c.Logger.GetSink() == nil {
		c.Logger = logr.Discard()
	}
	if c.Meter == nil {
		c.Meter = otel.Meter(telemetry.InstrumentationName)
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer(telemetry.InstrumentationName)
	}
	return c
}

func init() {
	defaultCommandTimeout = osutil.EnvVarSecondsWithDefault(CDPSESSION_COMMAND_TIMEOUT_SECONDS, defaultCommandTimeout)
	defaultConnectTimeout = osutil.EnvVarSecondsWithDefault(CDPSESSION_CONNECT_TIMEOUT_SECONDS, defaultConnectTimeout)
	if tolerance, found := osutil.EnvVarIntVal(CDPSESSION_VERSION_TOLERANCE); found && tolerance >= 0 {
		defaultVersionTolerance = tolerance
	}
	defaultWaitForDebugger = osutil.EnvVarSwitchEnabled(CDPSESSION_WAIT_FOR_DEBUGGER)
}
