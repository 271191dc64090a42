/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package osutil

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Returns true if the environment variable "switch" is enabled.
// The environment variable is considered enabled if it is set to one of the "truthy" values:
// "1", "true", "on", or "yes".
func EnvVarSwitchEnabled(varName string) bool {
	value, found := os.LookupEnv(varName)
	if !found || strings.TrimSpace(value) == "" {
		return false
	}

	value = strings.TrimSpace(value)
	enabled := strings.EqualFold(value, "1") ||
		strings.EqualFold(value, "true") ||
		strings.EqualFold(value, "on") ||
		strings.EqualFold(value, "yes")
	return enabled
}

func EnvVarIntVal(varName string) (int, bool) {
	value, found := os.LookupEnv(varName)
	if !found || strings.TrimSpace(value) == "" {
		return 0, false
	}

	value = strings.TrimSpace(value)
	val, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, false
	}

	return int(val), true
}

// Reads a positive number of seconds from an environment variable.
// Returns defaultVal if the variable is not set, is not a number, or is not positive.
func EnvVarSecondsWithDefault(varName string, defaultVal time.Duration) time.Duration {
	seconds, found := EnvVarIntVal(varName)
	if !found || seconds <= 0 {
		return defaultVal
	}
	return time.Duration(seconds) * time.Second
}
