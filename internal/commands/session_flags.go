/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"github.com/microsoft/cdpsession/internal/devtools"
)

const (
	defaultEndpoint = "localhost:9222"

	// How long a graceful stop may take once the command is done (or interrupted).
	gracefulShutdownTimeout = 5 * time.Second
)

var (
	sessionConfig = devtools.SessionConfig{}
)

func addSessionFlags(fs *pflag.FlagSet) {
	defaults := devtools.NewSessionConfig(defaultEndpoint)

	fs.StringVarP(&sessionConfig.Endpoint, "endpoint", "e", defaults.Endpoint, "The browser DevTools endpoint: host:port, http://host:port, or the browser WebSocket URL (ws://host:port/devtools/browser/<id>).")
	fs.IntVar(&sessionConfig.ProtocolVersion, "protocol-version", 0, "Browser major version to use the DevTools domains for. If not set, the browser is asked for its version.")
	fs.IntVar(&sessionConfig.VersionTolerance, "version-tolerance", defaults.VersionTolerance, "How many major versions the browser may be ahead of the newest supported domain set.")
	fs.DurationVar(&sessionConfig.CommandTimeout, "command-timeout", defaults.CommandTimeout, "How long to wait for the response to a command.")
	fs.DurationVar(&sessionConfig.ConnectTimeout, "connect-timeout", defaults.ConnectTimeout, "How long to keep trying to reach the browser.")
	fs.BoolVar(&sessionConfig.WaitForDebuggerOnStart, "wait-for-debugger", defaults.WaitForDebuggerOnStart, "Pause related targets (workers, iframes) when they are auto-attached.")
}

// Starts a session with the configuration taken from the command line, runs fn, and stops the session.
func withSession(ctx context.Context, log logr.Logger, fn func(ctx context.Context, s *devtools.Session) error) error {
	config := sessionConfig
	config.Logger = log

	s, err := devtools.NewSession(config)
	if err != nil {
		return err
	}

	defer func() {
		// The command context may already be cancelled (Ctrl-C), but we still want to detach from the target.
		stopCtx, cancelStop := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancelStop()
		s.Stop(stopCtx)
	}()

	if err = s.Start(ctx); err != nil {
		return fmt.Errorf("could not connect to the browser at '%s': %w", config.Endpoint, err)
	}

	return fn(ctx, s)
}
