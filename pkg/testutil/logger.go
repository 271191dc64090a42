/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package testutil

import (
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"

	"github.com/microsoft/cdpsession/pkg/logger"
)

// Returns a console logger for the test. Only errors are written, unless the tests run with -v.
// The log is flushed when the test ends.
func NewLogForTesting(t testing.TB) logr.Logger {
	log := logger.New(strings.ReplaceAll(t.Name(), "/", "_"))
	if testing.Verbose() {
		log.SetLevel(zapcore.DebugLevel)
	} else {
		log.SetLevel(zapcore.ErrorLevel)
	}
	t.Cleanup(log.Flush)
	return log.Logger.WithValues("Test", t.Name())
}
