/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package version

import (
	"bytes"
	"strconv"
	"time"

	"github.com/microsoft/cdpsession/internal/devtools/domains"
)

const (
	DevelopmentVersion = "dev"
)

// Set at build time with -ldflags "-X".
var (
	ProductVersion = DevelopmentVersion
	CommitHash     = ""
	BuildTimestamp = ""
)

type BuildTime struct {
	*time.Time
}

func (t *BuildTime) MarshalJSON() ([]byte, error) {
	if t.Time == nil || t.Time.IsZero() {
		return []byte("null"), nil
	}

	return []byte("\"" + t.Time.Format(time.RFC3339) + "\""), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
// The time is expected to be a quoted string in RFC 3339 format.
func (t *BuildTime) UnmarshalJSON(data []byte) (err error) {
	// by convention, unmarshalers implement UnmarshalJSON([]byte("null")) as a no-op.
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	tt, err := time.Parse("\""+time.RFC3339+"\"", string(data))
	*t = BuildTime{&tt}
	return
}

type VersionOutput struct {
	Version    string     `json:"version"`
	CommitHash string     `json:"commitHash,omitempty"`
	BuildTime  *BuildTime `json:"buildTimestamp,omitempty"`

	// Browser major versions with a dedicated domain set.
	SupportedBrowserVersions []int `json:"supportedBrowserVersions"`
}

func Version() VersionOutput {
	var buildTime time.Time
	if BuildTimestamp != "" {
		if parsedTimestamp, err := strconv.ParseInt(BuildTimestamp, 10, 64); err == nil {
			buildTime = time.Unix(parsedTimestamp, 0).UTC()
		} else if maybeTime, timeErr := time.Parse(time.RFC3339, BuildTimestamp); timeErr == nil {
			buildTime = maybeTime
		}
	}

	productVersion := ProductVersion
	if productVersion == "" {
		productVersion = DevelopmentVersion
	}

	return VersionOutput{
		Version:                  productVersion,
		CommitHash:               CommitHash,
		BuildTime:                &BuildTime{&buildTime},
		SupportedBrowserVersions: domains.DefaultRegistry().Versions(),
	}
}
