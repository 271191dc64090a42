/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package devtools

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"
)

// Outbound command. Field order is the order of the members on the wire.
type commandMessage struct {
	ID        int64  `json:"id"`
	SessionID string `json:"sessionId,omitempty"`
	Method    string `json:"method"`
	Params    any    `json:"params"`
}

// Any inbound message: a response (has an id) or an event (has a method and no id).
type inboundMessage struct {
	ID        *int64          `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *responseError  `json:"error,omitempty"`
}

var emptyParams = json.RawMessage(`{}`)

// Serializes a command. Missing parameters are sent as an empty object.
func encodeCommand(id int64, sessionID string, method string, params any) ([]byte, error) {
	msg := commandMessage{
		ID:        id,
		SessionID: sessionID,
		Method:    method,
		Params:    params,
	}
	switch p := params.(type) {
	case nil:
		msg.Params = emptyParams
	case json.RawMessage:
		if len(p) == 0 {
			msg.Params = emptyParams
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// Scripts sent for evaluation must reach the browser unchanged.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Issues command ids: positive, strictly increasing, never reused within a session.
type commandIDCounter struct {
	last atomic.Int64
}

func (c *commandIDCounter) Next() int64 {
	return c.last.Add(1)
}

type commandResult struct {
	result json.RawMessage
	err    error
}

// A command that has been issued and is awaiting its response.
type pendingCommand struct {
	id     int64
	method string
	done   chan commandResult
}

func newPendingCommand(id int64, method string) *pendingCommand {
	return &pendingCommand{
		id:     id,
		method: method,
		// Buffered, so the receive loop never blocks on a waiter that has already given up.
		done: make(chan commandResult, 1),
	}
}

// Completes the command. Only the first completion is delivered.
func (pc *pendingCommand) complete(res commandResult) {
	select {
	case pc.done <- res:
	default:
	}
}

type pendingCommandMap struct {
	mu       sync.Mutex
	commands map[int64]*pendingCommand
}

func newPendingCommandMap() *pendingCommandMap {
	return &pendingCommandMap{
		commands: make(map[int64]*pendingCommand),
	}
}

func (m *pendingCommandMap) Add(pc *pendingCommand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pc.id] = pc
}

// Removes and returns the command with the given id, or nil if there is none.
func (m *pendingCommandMap) Remove(id int64) *pendingCommand {
	m.mu.Lock()
	defer m.mu.Unlock()

	pc, found := m.commands[id]
	if !found {
		return nil
	}
	delete(m.commands, id)
	return pc
}

func (m *pendingCommandMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commands)
}

// Completes every pending command with the given error and empties the map.
func (m *pendingCommandMap) DrainWithError(err error) int {
	m.mu.Lock()
	commands := m.commands
	m.commands = make(map[int64]*pendingCommand)
	m.mu.Unlock()

	for _, pc := range commands {
		pc.complete(commandResult{err: err})
	}
	return len(commands)
}
