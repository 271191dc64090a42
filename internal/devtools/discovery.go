/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/microsoft/cdpsession/pkg/resiliency"
)

const versionPath = "/json/version"

// Matches "Chrome/86.0.4240.75", "HeadlessChrome/88.0.4324.96", "Edg/90.0.818.39" and similar.
var browserVersionRegex = regexp.MustCompile(`.*/(\d+)\..*`)

// VersionInfo is the browser description served by the /json/version endpoint.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	V8Version            string `json:"V8-Version,omitempty"`
	WebKitVersion        string `json:"WebKit-Version,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Returns the browser major version, for example 86 for "Chrome/86.0.4240.75".
func (vi VersionInfo) MajorVersion() (int, error) {
	return ParseMajorVersion(vi.Browser)
}

func ParseMajorVersion(browser string) (int, error) {
	matches := browserVersionRegex.FindStringSubmatch(browser)
	if len(matches) != 2 {
		return 0, fmt.Errorf("%w: '%s'", ErrVersionParse, browser)
	}
	major, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("%w: '%s': %w", ErrVersionParse, browser, err)
	}
	return major, nil
}

// Converts a DevTools endpoint into the base URL of its HTTP discovery interface.
// Accepts "host:port", "http(s)://host:port[/...]" and "ws(s)://host:port/devtools/...".
func DiscoveryURL(endpoint string) (*url.URL, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("the DevTools endpoint is empty")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid DevTools endpoint '%s': %w", endpoint, err)
	}

	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("unsupported DevTools endpoint scheme '%s'", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("DevTools endpoint '%s' has no host", endpoint)
	}

	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

func isWebSocketURL(endpoint string) bool {
	return strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://")
}

// Queries the browser's /json/version endpoint.
// The query is retried until it succeeds or ctx is done, because the browser may still be starting up.
func FetchVersionInfo(ctx context.Context, client *http.Client, endpoint string) (VersionInfo, error) {
	base, err := DiscoveryURL(endpoint)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	versionURL := base.JoinPath(versionPath).String()

	info, err := resiliency.RetryGet(ctx, resiliency.EndpointBackoff(), func() (VersionInfo, error) {
		return getVersionInfo(ctx, client, versionURL)
	})
	if err != nil {
		return VersionInfo{}, fmt.Errorf("%w: could not query '%s': %w", ErrTransport, versionURL, err)
	}
	return info, nil
}

func getVersionInfo(ctx context.Context, client *http.Client, versionURL string) (VersionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, versionURL, nil)
	if err != nil {
		return VersionInfo{}, resiliency.Permanent(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return VersionInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Anything but "not there yet" means we are talking to something that is not a DevTools endpoint.
		statusErr := fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
		if resp.StatusCode >= 500 {
			return VersionInfo{}, statusErr
		}
		return VersionInfo{}, resiliency.Permanent(statusErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return VersionInfo{}, err
	}

	var info VersionInfo
	if err = json.Unmarshal(body, &info); err != nil {
		return VersionInfo{}, resiliency.Permanent(fmt.Errorf("invalid version information: %w", err))
	}
	return info, nil
}
