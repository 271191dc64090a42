/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
)

func recoverFrom(origin string, fn func()) (err error) {
	defer func() {
		err = RecoverPanic(recover(), origin, logr.Discard())
	}()
	fn()
	return nil
}

func TestRecoverPanicWithoutPanic(t *testing.T) {
	t.Parallel()

	require.NoError(t, recoverFrom("event handler", func() {}))
	require.NoError(t, RecoverPanic(nil, "event handler", logr.Discard()))
}

func TestRecoverPanicKeepsOriginAndValue(t *testing.T) {
	t.Parallel()

	err := recoverFrom("event handler", func() { panic("handler exploded") })
	require.EqualError(t, err, "panic in event handler: handler exploded")

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "event handler", pe.Origin)
	require.Equal(t, "handler exploded", pe.Value)
	require.Contains(t, string(pe.Stack), "panic_test.go")

	var permanent *backoff.PermanentError
	require.ErrorAs(t, err, &permanent)
}

func TestRecoverPanicUnwrapsErrorValues(t *testing.T) {
	t.Parallel()

	err := recoverFrom("receive loop", func() { panic(io.ErrUnexpectedEOF) })
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRecoveredPanicStopsRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	_, err := RetryGet(context.Background(), backoff.NewConstantBackOff(time.Millisecond), func() (int, error) {
		attempts++
		return 0, recoverFrom("retry attempt", func() { panic(errors.New("boom")) })
	})

	require.Error(t, err)
	require.Equal(t, 1, attempts)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
}
