/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package devtools

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/microsoft/cdpsession/internal/devtools/protocol"
)

type subscriptionHandle uint64

const invalidHandle subscriptionHandle = 0

// Subscriptions are keyed by domain and event name. The zero key matches every event.
type subscriptionKey struct {
	domain string
	event  string
}

var anyEvent = subscriptionKey{}

type Subscription struct {
	handle    subscriptionHandle
	key       subscriptionKey
	handler   protocol.EventHandler
	owner     *subscriptionRegistry
	cancelled atomic.Bool
}

// Stops delivery of further events to the handler. Events already being delivered may still arrive.
func (s *Subscription) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) {
		s.owner.remove(s)
	}
}

func (s *Subscription) Cancelled() bool {
	return s.cancelled.Load()
}

var _ protocol.Subscription = (*Subscription)(nil)

type subscriptionRegistry struct {
	lock       *sync.RWMutex
	nextHandle atomic.Uint64
	subs       map[subscriptionKey][]*Subscription
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{
		lock: &sync.RWMutex{},
		subs: make(map[subscriptionKey][]*Subscription),
	}
}

func (r *subscriptionRegistry) Add(key subscriptionKey, handler protocol.EventHandler) *Subscription {
	sub := &Subscription{
		handle:  subscriptionHandle(r.nextHandle.Add(1)),
		key:     key,
		handler: handler,
		owner:   r,
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.subs[key] = append(r.subs[key], sub)
	return sub
}

func (r *subscriptionRegistry) remove(sub *Subscription) {
	r.lock.Lock()
	defer r.lock.Unlock()

	subs := r.subs[sub.key]
	i := slices.IndexFunc(subs, func(s *Subscription) bool { return s.handle == sub.handle })
	if i < 0 {
		return
	}
	// Never modify the slice in place: notification snapshots may still be iterating over it.
	remaining := slices.Delete(slices.Clone(subs), i, i+1)
	if len(remaining) == 0 {
		delete(r.subs, sub.key)
	} else {
		r.subs[sub.key] = remaining
	}
}

// Returns the subscriptions that should receive the event, in subscription order:
// the catch-all subscriptions first, then the ones for the specific event.
func (r *subscriptionRegistry) Matching(ev protocol.Event) []*Subscription {
	r.lock.RLock()
	defer r.lock.RUnlock()

	catchAll := r.subs[anyEvent]
	specific := r.subs[subscriptionKey{domain: ev.Domain, event: ev.Name}]
	if len(catchAll) == 0 {
		return specific
	}
	return append(slices.Clone(catchAll), specific...)
}

func (r *subscriptionRegistry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	n := 0
	for _, subs := range r.subs {
		n += len(subs)
	}
	return n
}

// Cancels all subscriptions.
func (r *subscriptionRegistry) Clear() {
	r.lock.Lock()
	subs := r.subs
	r.subs = make(map[subscriptionKey][]*Subscription)
	r.lock.Unlock()

	for _, list := range subs {
		for _, sub := range list {
			sub.cancelled.Store(true)
		}
	}
}

func (s *Subscription) valid() bool {
	return s != nil && s.handle != invalidHandle && !s.Cancelled()
}
