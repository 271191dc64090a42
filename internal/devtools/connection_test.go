/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package devtools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/cdpsession/internal/testutil/fakebrowser"
	"github.com/microsoft/cdpsession/pkg/testutil"
)

type messageCollector struct {
	messages chan []byte
}

func newMessageCollector() *messageCollector {
	return &messageCollector{messages: make(chan []byte, 100)}
}

func (mc *messageCollector) handle(msg []byte) {
	mc.messages <- msg
}

func (mc *messageCollector) receive(t *testing.T, timeout time.Duration) []byte {
	t.Helper()
	select {
	case msg := <-mc.messages:
		return msg
	case <-time.After(timeout):
		require.Fail(t, "no message received")
		return nil
	}
}

func requireClosed(t *testing.T, done <-chan struct{}, timeout time.Duration) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(timeout):
		require.Fail(t, "the receive loop did not end")
	}
}

func TestConnectionSendAndReceive(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	fb := fakebrowser.New(t)
	mc := newMessageCollector()
	conn := NewWebSocketConnection(mc.handle, testutil.NewLogForTesting(t))

	require.NoError(t, conn.Connect(ctx, fb.WebSocketURL(), 5*time.Second))
	defer conn.Close(time.Second)
	require.True(t, conn.IsActive())

	require.NoError(t, conn.Send([]byte(`{"id":1,"method":"Browser.getVersion","params":{}}`)))

	var resp inboundMessage
	require.NoError(t, json.Unmarshal(mc.receive(t, 5*time.Second), &resp))
	require.NotNil(t, resp.ID)
	require.Equal(t, int64(1), *resp.ID)

	cmd, err := fb.WaitForCommand(ctx, "Browser.getVersion", 1)
	require.NoError(t, err)
	require.Equal(t, `{"id":1,"method":"Browser.getVersion","params":{}}`, cmd.Raw)
}

func TestConnectionReassemblesLargeMessages(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	fb := fakebrowser.New(t)
	mc := newMessageCollector()
	conn := NewWebSocketConnection(mc.handle, testutil.NewLogForTesting(t))
	require.NoError(t, conn.Connect(ctx, fb.WebSocketURL(), 5*time.Second))
	defer conn.Close(time.Second)

	testutil.WaitFor(t, ctx, "the browser to accept the connection", func() bool { return fb.ConnectionCount() == 1 })

	// Far bigger than the write buffer of the sender, so it goes out as several frames.
	payload := strings.Repeat("x", 1024*1024)
	msg := `{"method":"Page.screencastFrame","params":{"data":"` + payload + `"}}`
	require.NoError(t, fb.SendRaw(msg))

	require.Equal(t, msg, string(mc.receive(t, 5*time.Second)))
}

func TestConnectionNotOpen(t *testing.T) {
	t.Parallel()

	conn := NewWebSocketConnection(func([]byte) {}, testutil.NewLogForTesting(t))
	require.False(t, conn.IsActive())
	require.ErrorIs(t, conn.Send([]byte(`{}`)), ErrConnectionNotOpen)
	require.ErrorIs(t, conn.Send([]byte(`{}`)), ErrTransport)

	// Closing a connection that was never opened is fine, and it cannot be opened afterwards.
	conn.Close(time.Second)
	conn.Close(time.Second)
	err := conn.Connect(context.Background(), "ws://127.0.0.1:1/devtools", time.Second)
	require.ErrorIs(t, err, ErrTransport)
}

func TestConnectionConnectTimeout(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	conn := NewWebSocketConnection(func([]byte) {}, testutil.NewLogForTesting(t))

	start := time.Now()
	// Nothing listens on port 1; every attempt is refused until the timeout elapses.
	err := conn.Connect(ctx, "ws://127.0.0.1:1/devtools/browser/none", 300*time.Millisecond)
	require.ErrorIs(t, err, ErrConnectTimeout)
	require.True(t, IsConnectionError(err))
	require.Less(t, time.Since(start), 5*time.Second)
	require.False(t, conn.IsActive())
}

func TestConnectionRejectsInvalidAddress(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	for _, address := range []string{"http://localhost:9222/devtools", "ws://", "::not a url"} {
		conn := NewWebSocketConnection(func([]byte) {}, testutil.NewLogForTesting(t))
		err := conn.Connect(ctx, address, 5*time.Second)
		require.ErrorIs(t, err, ErrTransport, address)
		require.NotErrorIs(t, err, ErrConnectTimeout, address)
	}
}

func TestConnectionRemoteClose(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	fb := fakebrowser.New(t)
	conn := NewWebSocketConnection(func([]byte) {}, testutil.NewLogForTesting(t))
	require.NoError(t, conn.Connect(ctx, fb.WebSocketURL(), 5*time.Second))
	testutil.WaitFor(t, ctx, "the browser to accept the connection", func() bool { return fb.ConnectionCount() == 1 })

	fb.CloseConnections()

	requireClosed(t, conn.Done(), 5*time.Second)
	require.False(t, conn.IsActive())
	require.ErrorIs(t, conn.Send([]byte(`{}`)), ErrConnectionNotOpen)

	// Closing after the remote side went away is a no-op.
	conn.Close(time.Second)
}

func TestConnectionAbruptTermination(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	fb := fakebrowser.New(t)
	conn := NewWebSocketConnection(func([]byte) {}, testutil.NewLogForTesting(t))
	require.NoError(t, conn.Connect(ctx, fb.WebSocketURL(), 5*time.Second))
	testutil.WaitFor(t, ctx, "the browser to accept the connection", func() bool { return fb.ConnectionCount() == 1 })

	fb.DropConnections()

	requireClosed(t, conn.Done(), 5*time.Second)
	require.False(t, conn.IsActive())
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	fb := fakebrowser.New(t)
	conn := NewWebSocketConnection(func([]byte) {}, testutil.NewLogForTesting(t))
	require.NoError(t, conn.Connect(ctx, fb.WebSocketURL(), 5*time.Second))

	start := time.Now()
	conn.Close(2 * time.Second)
	// The fake browser acknowledges the close frame right away.
	require.Less(t, time.Since(start), 2*time.Second)
	requireClosed(t, conn.Done(), time.Second)

	conn.Close(2 * time.Second)
	require.False(t, conn.IsActive())
	require.ErrorIs(t, conn.Send([]byte(`{}`)), ErrConnectionNotOpen)
}
