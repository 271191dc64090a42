/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package version

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionOutput(t *testing.T) {
	ProductVersion = "1.2.3"
	CommitHash = "abc123"
	BuildTimestamp = "1700000000"
	defer func() {
		ProductVersion = DevelopmentVersion
		CommitHash = ""
		BuildTimestamp = ""
	}()

	v := Version()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"version":"1.2.3",
		"commitHash":"abc123",
		"buildTimestamp":"2023-11-14T22:13:20Z",
		"supportedBrowserVersions":[86,85,84]
	}`, string(b))

	var roundTripped VersionOutput
	require.NoError(t, json.Unmarshal(b, &roundTripped))
	require.True(t, roundTripped.BuildTime.Time.Equal(*v.BuildTime.Time))
}

func TestVersionWithoutBuildInformation(t *testing.T) {
	v := Version()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.JSONEq(t, `{"version":"dev","buildTimestamp":null,"supportedBrowserVersions":[86,85,84]}`, string(b))
}
