/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package logger

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestStringToLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zapcore.Level
		isValid  bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{"INFO", zapcore.InfoLevel, true},
		{"error", zapcore.ErrorLevel, true},
		{"1", zapcore.Level(-1), true},
		{"4", zapcore.Level(-4), true},
		{"0", zapcore.WarnLevel, false},
		{"loud", zapcore.WarnLevel, false},
	}

	for _, tt := range tests {
		level, err := StringToLevel(tt.input, zapcore.WarnLevel)
		if tt.isValid {
			require.NoError(t, err, tt.input)
		} else {
			require.Error(t, err, tt.input)
		}
		require.Equal(t, tt.expected, level, tt.input)
	}
}

func TestLevelFlagSetsLoggerLevel(t *testing.T) {
	t.Parallel()

	log := New("level-flag-test")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	log.AddLevelFlag(fs)

	require.NoError(t, fs.Parse([]string{"-v=debug"}))
	require.Equal(t, zapcore.DebugLevel, log.atomicLevel.Level())

	require.Error(t, fs.Parse([]string{"--verbosity=chatty"}))
	require.Equal(t, zapcore.DebugLevel, log.atomicLevel.Level())
}
