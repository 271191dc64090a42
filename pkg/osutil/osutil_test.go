/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package osutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvVarIntVal(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
		found    bool
	}{
		{"number", "42", 42, true},
		{"padded number", "  7 ", 7, true},
		{"negative number", "-3", -3, true},
		{"empty", "", 0, false},
		{"blank", "   ", 0, false},
		{"not a number", "abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CDPSESSION_TEST_INT", tt.value)
			val, found := EnvVarIntVal("CDPSESSION_TEST_INT")
			assert.Equal(t, tt.expected, val)
			assert.Equal(t, tt.found, found)
		})
	}
}

func TestEnvVarSecondsWithDefault(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{"valid", "3", 3 * time.Second},
		{"zero falls back", "0", time.Minute},
		{"negative falls back", "-1", time.Minute},
		{"garbage falls back", "soon", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CDPSESSION_TEST_SECONDS", tt.value)
			assert.Equal(t, tt.expected, EnvVarSecondsWithDefault("CDPSESSION_TEST_SECONDS", time.Minute))
		})
	}
}

func TestEnvVarSwitchEnabled(t *testing.T) {
	t.Setenv("CDPSESSION_TEST_SWITCH", "Yes")
	assert.True(t, EnvVarSwitchEnabled("CDPSESSION_TEST_SWITCH"))

	t.Setenv("CDPSESSION_TEST_SWITCH", "0")
	assert.False(t, EnvVarSwitchEnabled("CDPSESSION_TEST_SWITCH"))
}
