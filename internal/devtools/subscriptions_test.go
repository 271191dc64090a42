/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package devtools

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/cdpsession/internal/devtools/protocol"
)

func nopHandler(protocol.Event) error { return nil }

func handles(subs []*Subscription) []subscriptionHandle {
	retval := make([]subscriptionHandle, len(subs))
	for i, s := range subs {
		retval[i] = s.handle
	}
	return retval
}

func TestSubscriptionRegistryOrder(t *testing.T) {
	t.Parallel()

	r := newSubscriptionRegistry()
	requestKey := subscriptionKey{domain: "Network", event: "requestWillBeSent"}

	first := r.Add(requestKey, nopHandler)
	catchAll := r.Add(anyEvent, nopHandler)
	second := r.Add(requestKey, nopHandler)
	r.Add(subscriptionKey{domain: "Network", event: "responseReceived"}, nopHandler)
	require.Equal(t, 4, r.Len())

	ev := protocol.Event{Domain: "Network", Name: "requestWillBeSent"}
	require.Equal(t, []subscriptionHandle{catchAll.handle, first.handle, second.handle}, handles(r.Matching(ev)))

	other := protocol.Event{Domain: "Log", Name: "entryAdded"}
	require.Equal(t, []subscriptionHandle{catchAll.handle}, handles(r.Matching(other)))
}

func TestSubscriptionCancel(t *testing.T) {
	t.Parallel()

	r := newSubscriptionRegistry()
	key := subscriptionKey{domain: "Runtime", event: "bindingCalled"}
	first := r.Add(key, nopHandler)
	second := r.Add(key, nopHandler)

	ev := protocol.Event{Domain: "Runtime", Name: "bindingCalled"}
	snapshot := r.Matching(ev)

	first.Cancel()
	first.Cancel()
	require.True(t, first.Cancelled())
	require.False(t, first.valid())
	require.Equal(t, []subscriptionHandle{second.handle}, handles(r.Matching(ev)))

	// Snapshots taken before the cancellation are not affected.
	require.Equal(t, []subscriptionHandle{first.handle, second.handle}, handles(snapshot))

	second.Cancel()
	require.Empty(t, r.Matching(ev))
	require.Equal(t, 0, r.Len())
}

func TestSubscriptionRegistryClear(t *testing.T) {
	t.Parallel()

	r := newSubscriptionRegistry()
	sub := r.Add(subscriptionKey{domain: "Log", event: "entryAdded"}, nopHandler)
	r.Clear()

	require.True(t, sub.Cancelled())
	require.Equal(t, 0, r.Len())

	// Cancelling after Clear() is harmless.
	sub.Cancel()
}
