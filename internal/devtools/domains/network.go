/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package domains

import (
	"context"

	"github.com/microsoft/cdpsession/internal/devtools/protocol"
)

const networkDomainName = "Network"

type networkDomain struct {
	cmd      protocol.Commander
	features protocolFeatures
}

func (n *networkDomain) Enable(ctx context.Context) error {
	return run(ctx, n.cmd, "Network.enable", nil)
}

func (n *networkDomain) Disable(ctx context.Context) error {
	return run(ctx, n.cmd, "Network.disable", nil)
}

type setUserAgentOverrideParams struct {
	UserAgent         string             `json:"userAgent"`
	AcceptLanguage    string             `json:"acceptLanguage,omitempty"`
	Platform          string             `json:"platform,omitempty"`
	UserAgentMetadata *UserAgentMetadata `json:"userAgentMetadata,omitempty"`
}

func (n *networkDomain) SetUserAgentOverride(ctx context.Context, userAgent UserAgent) error {
	params := setUserAgentOverrideParams{
		UserAgent:      userAgent.UserAgent,
		AcceptLanguage: userAgent.AcceptLanguage,
		Platform:       userAgent.Platform,
	}
	if n.features.userAgentMetadata {
		params.UserAgentMetadata = userAgent.Metadata
	}
	return run(ctx, n.cmd, "Network.setUserAgentOverride", params)
}

func (n *networkDomain) SetExtraHTTPHeaders(ctx context.Context, headers map[string]string) error {
	if headers == nil {
		headers = map[string]string{}
	}
	params := struct {
		Headers map[string]string `json:"headers"`
	}{headers}
	return run(ctx, n.cmd, "Network.setExtraHTTPHeaders", params)
}

func (n *networkDomain) SetCacheDisabled(ctx context.Context, disabled bool) error {
	params := struct {
		CacheDisabled bool `json:"cacheDisabled"`
	}{disabled}
	return run(ctx, n.cmd, "Network.setCacheDisabled", params)
}

func (n *networkDomain) OnRequestWillBeSent(handler func(RequestWillBeSent)) protocol.Subscription {
	return protocol.OnEvent(n.cmd, networkDomainName, "requestWillBeSent", handler)
}

func (n *networkDomain) OnResponseReceived(handler func(ResponseReceived)) protocol.Subscription {
	return protocol.OnEvent(n.cmd, networkDomainName, "responseReceived", handler)
}
