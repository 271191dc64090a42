/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package domains

import (
	"context"

	"github.com/microsoft/cdpsession/internal/devtools/protocol"
)

type logDomain struct {
	cmd protocol.Commander
}

func (l *logDomain) Enable(ctx context.Context) error {
	return run(ctx, l.cmd, "Log.enable", nil)
}

func (l *logDomain) Disable(ctx context.Context) error {
	return run(ctx, l.cmd, "Log.disable", nil)
}

func (l *logDomain) Clear(ctx context.Context) error {
	return run(ctx, l.cmd, "Log.clear", nil)
}

func (l *logDomain) OnEntryAdded(handler func(LogEntry)) protocol.Subscription {
	type entryAdded struct {
		Entry LogEntry `json:"entry"`
	}
	return protocol.OnEvent(l.cmd, "Log", "entryAdded", func(ev entryAdded) {
		handler(ev.Entry)
	})
}
