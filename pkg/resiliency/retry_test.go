/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func TestRetryGetSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	val, err := RetryGet(context.Background(), backoff.NewConstantBackOff(time.Millisecond), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("not yet")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", val)
	require.Equal(t, 3, attempts)
}

func TestRetryGetStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	permanentErr := errors.New("bad address")
	attempts := 0
	_, err := RetryGet(context.Background(), backoff.NewConstantBackOff(time.Millisecond), func() (int, error) {
		attempts++
		return 0, Permanent(permanentErr)
	})

	require.ErrorIs(t, err, permanentErr)
	require.Equal(t, 1, attempts)
}

func TestRetryGetReportsLastAttemptErrorOnTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attemptErr := errors.New("connection refused")
	_, err := RetryGet(ctx, EndpointBackoff(), func() (int, error) {
		return 0, attemptErr
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, attemptErr)
}
