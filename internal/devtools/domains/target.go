/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package domains

import (
	"context"

	"github.com/microsoft/cdpsession/internal/devtools/protocol"
)

const targetDomainName = "Target"

// Target commands drive the attachment itself, so they are either browser-scoped
// or explicitly exempt from the lazy attach.
type targetDomain struct {
	cmd protocol.Commander
}

func (t *targetDomain) GetTargets(ctx context.Context) ([]TargetInfo, error) {
	res, err := protocol.Execute[struct {
		TargetInfos []TargetInfo `json:"targetInfos"`
	}](ctx, t.cmd, "Target.getTargets", nil, protocol.WithBrowserScope())
	if err != nil {
		return nil, err
	}
	return res.TargetInfos, nil
}

func (t *targetDomain) AttachToTarget(ctx context.Context, targetID string) (string, error) {
	params := struct {
		TargetID string `json:"targetId"`
		Flatten  bool   `json:"flatten"`
	}{
		TargetID: targetID,
		Flatten:  true,
	}

	res, err := protocol.Execute[struct {
		SessionID string `json:"sessionId"`
	}](ctx, t.cmd, "Target.attachToTarget", params, protocol.WithBrowserScope())
	if err != nil {
		return "", err
	}
	return res.SessionID, nil
}

func (t *targetDomain) DetachFromTarget(ctx context.Context, sessionID, targetID string) error {
	params := struct {
		SessionID string `json:"sessionId,omitempty"`
		TargetID  string `json:"targetId,omitempty"`
	}{
		SessionID: sessionID,
		TargetID:  targetID,
	}
	return run(ctx, t.cmd, "Target.detachFromTarget", params, protocol.WithBrowserScope(), protocol.WithThrowIfNoResponse(false))
}

func (t *targetDomain) SetAutoAttach(ctx context.Context, waitForDebuggerOnStart bool) error {
	params := struct {
		AutoAttach             bool `json:"autoAttach"`
		WaitForDebuggerOnStart bool `json:"waitForDebuggerOnStart"`
		Flatten                bool `json:"flatten"`
	}{
		AutoAttach:             true,
		WaitForDebuggerOnStart: waitForDebuggerOnStart,
		Flatten:                true,
	}
	return run(ctx, t.cmd, "Target.setAutoAttach", params, protocol.WithoutAttach())
}

func (t *targetDomain) OnAttachedToTarget(handler func(AttachedToTarget)) protocol.Subscription {
	return protocol.OnEvent(t.cmd, targetDomainName, "attachedToTarget", handler)
}

func (t *targetDomain) OnDetachedFromTarget(handler func(DetachedFromTarget)) protocol.Subscription {
	return protocol.OnEvent(t.cmd, targetDomainName, "detachedFromTarget", handler)
}
