/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package devtools

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/cdpsession/internal/testutil/fakebrowser"
	"github.com/microsoft/cdpsession/pkg/testutil"
)

func TestParseMajorVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		browser  string
		expected int
		valid    bool
	}{
		{"Chrome/86.0.4240.75", 86, true},
		{"HeadlessChrome/88.0.4324.96", 88, true},
		{"Microsoft Edge/90.0.818.39", 90, true},
		{"Chrome/101.0", 101, true},
		{"Chrome", 0, false},
		{"Chrome/beta", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		major, err := ParseMajorVersion(tt.browser)
		if tt.valid {
			require.NoError(t, err, tt.browser)
			assert.Equal(t, tt.expected, major, tt.browser)
		} else {
			require.ErrorIs(t, err, ErrVersionParse, tt.browser)
		}
	}
}

func TestDiscoveryURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint string
		expected string
		valid    bool
	}{
		{"localhost:9222", "http://localhost:9222", true},
		{"http://127.0.0.1:9222", "http://127.0.0.1:9222", true},
		{"https://devtools.example:443/json/version", "https://devtools.example:443", true},
		{"ws://localhost:9222/devtools/browser/abc", "http://localhost:9222", true},
		{"wss://localhost:9222/devtools/browser/abc", "https://localhost:9222", true},
		{"ftp://localhost:21", "", false},
		{"", "", false},
		{"http://", "", false},
	}

	for _, tt := range tests {
		u, err := DiscoveryURL(tt.endpoint)
		if tt.valid {
			require.NoError(t, err, tt.endpoint)
			assert.Equal(t, tt.expected, u.String(), tt.endpoint)
		} else {
			require.Error(t, err, tt.endpoint)
		}
	}
}

func TestFetchVersionInfoRetriesUntilAvailable(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	fb := fakebrowser.New(t, fakebrowser.WithVersionUnavailable(2), fakebrowser.WithBrowserVersion("Chrome/88.0.4324.96"))

	info, err := FetchVersionInfo(ctx, nil, fb.Endpoint())
	require.NoError(t, err)
	require.Equal(t, "Chrome/88.0.4324.96", info.Browser)
	require.Equal(t, "1.3", info.ProtocolVersion)
	require.Equal(t, fb.WebSocketURL(), info.WebSocketDebuggerURL)

	major, err := info.MajorVersion()
	require.NoError(t, err)
	require.Equal(t, 88, major)
}

func TestFetchVersionInfoDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := FetchVersionInfo(ctx, server.Client(), server.URL)
	require.ErrorIs(t, err, ErrTransport)
	require.Equal(t, int32(1), requests.Load())
}

func TestFetchVersionInfoGivesUpWhenContextExpires(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 300*time.Millisecond)
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	start := time.Now()
	_, err := FetchVersionInfo(ctx, server.Client(), server.URL)
	require.ErrorIs(t, err, ErrTransport)
	require.Less(t, time.Since(start), 5*time.Second)
}
