/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package protocol

import "time"

// CommandSettings control how a single command is sent and awaited.
type CommandSettings struct {
	// How long to wait for the response. Zero means the session default.
	Timeout time.Duration

	// If true, a missing response is reported as an error, otherwise the command returns no result.
	ThrowIfNoResponse bool

	// Send the command to the browser itself: no sessionId is attached and the command
	// never triggers a lazy attach.
	BrowserScope bool

	// Send the command to the active target session, but do not wait for (or trigger) attachment.
	// Used by commands issued while the attachment is still being set up.
	SkipAttach bool
}

type CommandOption func(*CommandSettings)

func WithTimeout(timeout time.Duration) CommandOption {
	return func(s *CommandSettings) {
		s.Timeout = timeout
	}
}

func WithThrowIfNoResponse(throw bool) CommandOption {
	return func(s *CommandSettings) {
		s.ThrowIfNoResponse = throw
	}
}

func WithBrowserScope() CommandOption {
	return func(s *CommandSettings) {
		s.BrowserScope = true
	}
}

func WithoutAttach() CommandOption {
	return func(s *CommandSettings) {
		s.SkipAttach = true
	}
}

// Applies options on top of the defaults. A non-positive timeout falls back to defaultTimeout.
func NewCommandSettings(defaultTimeout time.Duration, opts ...CommandOption) CommandSettings {
	settings := CommandSettings{
		Timeout:           defaultTimeout,
		ThrowIfNoResponse: true,
	}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultTimeout
	}
	return settings
}
