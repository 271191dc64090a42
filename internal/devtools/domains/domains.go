/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package domains provides thin, protocol-version-specific facades over the DevTools
// domains a session needs: Target (attachment), Network, Log and JavaScript (Runtime + Page).
package domains

import (
	"context"

	"github.com/microsoft/cdpsession/internal/devtools/protocol"
)

// Domains is the set of domain facades for one protocol version.
type Domains interface {
	Version() int
	Target() Target
	Network() Network
	Log() Log
	JavaScript() JavaScript
}

type Target interface {
	GetTargets(ctx context.Context) ([]TargetInfo, error)
	AttachToTarget(ctx context.Context, targetID string) (string, error)
	DetachFromTarget(ctx context.Context, sessionID, targetID string) error
	SetAutoAttach(ctx context.Context, waitForDebuggerOnStart bool) error
	OnAttachedToTarget(handler func(AttachedToTarget)) protocol.Subscription
	OnDetachedFromTarget(handler func(DetachedFromTarget)) protocol.Subscription
}

type Network interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	SetUserAgentOverride(ctx context.Context, userAgent UserAgent) error
	SetExtraHTTPHeaders(ctx context.Context, headers map[string]string) error
	SetCacheDisabled(ctx context.Context, disabled bool) error
	OnRequestWillBeSent(handler func(RequestWillBeSent)) protocol.Subscription
	OnResponseReceived(handler func(ResponseReceived)) protocol.Subscription
}

type Log interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Clear(ctx context.Context) error
	OnEntryAdded(handler func(LogEntry)) protocol.Subscription
}

type JavaScript interface {
	EnableRuntime(ctx context.Context) error
	DisableRuntime(ctx context.Context) error
	EnablePage(ctx context.Context) error
	DisablePage(ctx context.Context) error
	AddBinding(ctx context.Context, name string) error
	RemoveBinding(ctx context.Context, name string) error
	AddScriptToEvaluateOnNewDocument(ctx context.Context, script string) (string, error)
	RemoveScriptToEvaluateOnNewDocument(ctx context.Context, identifier string) error
	Evaluate(ctx context.Context, expression string) (RemoteObject, error)
	OnBindingCalled(handler func(BindingCalled)) protocol.Subscription
	OnConsoleAPICalled(handler func(ConsoleAPICalled)) protocol.Subscription
	OnExceptionThrown(handler func(ExceptionThrown)) protocol.Subscription
}

// Protocol capabilities that changed between the supported browser versions.
type protocolFeatures struct {
	// Network.setUserAgentOverride accepts userAgentMetadata.
	userAgentMetadata bool
}

type domainSet struct {
	version    int
	target     *targetDomain
	network    *networkDomain
	log        *logDomain
	javaScript *javaScriptDomain
}

func newDomainSet(version int, cmd protocol.Commander, features protocolFeatures) *domainSet {
	return &domainSet{
		version:    version,
		target:     &targetDomain{cmd: cmd},
		network:    &networkDomain{cmd: cmd, features: features},
		log:        &logDomain{cmd: cmd},
		javaScript: &javaScriptDomain{cmd: cmd},
	}
}

func (d *domainSet) Version() int           { return d.version }
func (d *domainSet) Target() Target         { return d.target }
func (d *domainSet) Network() Network       { return d.network }
func (d *domainSet) Log() Log               { return d.log }
func (d *domainSet) JavaScript() JavaScript { return d.javaScript }

var _ Domains = (*domainSet)(nil)

// emptyResult is used for commands whose result carries nothing of interest.
type emptyResult struct{}

func run(ctx context.Context, cmd protocol.Commander, method string, params any, opts ...protocol.CommandOption) error {
	_, err := protocol.Execute[emptyResult](ctx, cmd, method, params, opts...)
	return err
}
