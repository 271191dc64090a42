/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package protocol holds the types shared by the DevTools session and the domain facades
// built on top of it.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Event is a DevTools notification: a message with a "Domain.event" method and no id.
type Event struct {
	Domain    string
	Name      string
	SessionID string
	Params    json.RawMessage
}

func (e Event) Method() string {
	return e.Domain + "." + e.Name
}

// EventHandler processes a single event. Returned errors are logged by the session
// and do not affect other subscribers.
type EventHandler func(Event) error

type Subscription interface {
	// Stops delivery of further events to the subscriber. Safe to call more than once.
	Cancel()
}

// Commander is the part of a DevTools session that domain facades need.
type Commander interface {
	SendCommand(ctx context.Context, method string, params any, opts ...CommandOption) (json.RawMessage, error)
	Subscribe(domain, event string, handler EventHandler) Subscription
}

// Splits "Domain.name" into its parts. Method names with no dot, or with an empty part, are rejected.
func SplitMethod(method string) (string, string, bool) {
	domain, name, found := strings.Cut(method, ".")
	if !found || domain == "" || name == "" {
		return "", "", false
	}
	return domain, name, true
}

// Sends a command and decodes its result into T.
// If the session returned no result (the command was not sent, or the response was not required),
// the zero value of T is returned with no error.
func Execute[T any](ctx context.Context, cmd Commander, method string, params any, opts ...CommandOption) (T, error) {
	var result T

	raw, err := cmd.SendCommand(ctx, method, params, opts...)
	if err != nil {
		return result, err
	}
	if len(raw) == 0 {
		return result, nil
	}

	if err = json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("could not decode the result of %s: %w", method, err)
	}
	return result, nil
}

// Subscribes to an event and decodes its parameters into T before invoking the handler.
// Events whose parameters cannot be decoded are reported to the session and skipped.
func OnEvent[T any](cmd Commander, domain, event string, handler func(T)) Subscription {
	return cmd.Subscribe(domain, event, func(ev Event) error {
		var payload T
		if len(ev.Params) > 0 {
			if err := json.Unmarshal(ev.Params, &payload); err != nil {
				return fmt.Errorf("could not decode the parameters of %s: %w", ev.Method(), err)
			}
		}
		handler(payload)
		return nil
	})
}
