/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/wait"
)

const waitPollInterval = 20 * time.Millisecond

// Polls cond until it returns true, failing the test if the context expires first.
func WaitFor(t *testing.T, ctx context.Context, description string, cond func() bool) {
	t.Helper()

	err := wait.PollUntilContextCancel(ctx, waitPollInterval, true, func(_ context.Context) (bool, error) {
		return cond(), nil
	})
	require.NoError(t, err, "timed out waiting for %s", description)
}
