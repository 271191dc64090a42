/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package fakebrowser provides an in-process DevTools endpoint for tests.
// It serves /json/version and a WebSocket endpoint that answers commands through
// per-method handlers and records every inbound frame verbatim.
package fakebrowser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	DefaultBrowserVersion = "HeadlessChrome/86.0.4240.75"
	DefaultTargetID       = "T1"
	DefaultSessionID      = "S1"

	browserWebSocketPath = "/devtools/browser/fake"
	versionPath          = "/json/version"
)

// Command is a command received by the fake browser.
type Command struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`

	// The frame exactly as it was received.
	Raw string `json:"-"`
}

type ReplyError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Reply tells the fake browser how to answer a command.
type Reply struct {
	// Sent as the "result" member. Nil means an empty object.
	Result any

	// If set, an error response is sent instead of a result.
	Error *ReplyError

	// Do not answer now. The test can answer later with Respond() or never answer at all.
	Defer bool
}

type CommandHandler func(cmd Command) Reply

type Target struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Attached bool   `json:"attached"`
}

type Option func(*Browser)

func WithBrowserVersion(version string) Option {
	return func(b *Browser) {
		b.browserVersion = version
	}
}

func WithTargets(targets ...Target) Option {
	return func(b *Browser) {
		b.targets = targets
	}
}

// The /json/version endpoint answers with 503 for the first n requests.
func WithVersionUnavailable(n int) Option {
	return func(b *Browser) {
		b.versionUnavailable = n
	}
}

type fakeConn struct {
	ws        *websocket.Conn
	writeLock *sync.Mutex
}

func (fc *fakeConn) write(msg []byte) error {
	fc.writeLock.Lock()
	defer fc.writeLock.Unlock()
	return fc.ws.WriteMessage(websocket.TextMessage, msg)
}

type Browser struct {
	server             *httptest.Server
	upgrader           websocket.Upgrader
	browserVersion     string
	versionUnavailable int

	lock     *sync.Mutex
	targets  []Target
	handlers map[string]CommandHandler
	commands []Command
	conns    []*fakeConn
	accepted int

	versionRequests int
}

func New(t testing.TB, opts ...Option) *Browser {
	b := &Browser{
		browserVersion: DefaultBrowserVersion,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		lock: &sync.Mutex{},
		targets: []Target{
			{TargetID: DefaultTargetID, Type: "page", Title: "about:blank", URL: "about:blank"},
		},
		handlers: map[string]CommandHandler{},
	}
	for _, opt := range opts {
		opt(b)
	}

	b.handlers["Target.getTargets"] = func(Command) Reply {
		b.lock.Lock()
		defer b.lock.Unlock()
		return Reply{Result: map[string]any{"targetInfos": b.targets}}
	}
	b.handlers["Target.attachToTarget"] = func(Command) Reply {
		return Reply{Result: map[string]any{"sessionId": DefaultSessionID}}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(versionPath, b.serveVersion)
	mux.HandleFunc(browserWebSocketPath, b.serveWebSocket)
	b.server = httptest.NewServer(mux)

	t.Cleanup(b.Close)
	return b
}

// Returns "host:port" of the fake browser.
func (b *Browser) Endpoint() string {
	return strings.TrimPrefix(b.server.URL, "http://")
}

func (b *Browser) WebSocketURL() string {
	return "ws://" + b.Endpoint() + browserWebSocketPath
}

// Sets the handler for a method, replacing the default one.
func (b *Browser) Handle(method string, handler CommandHandler) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.handlers[method] = handler
}

// Returns all commands received so far, in arrival order.
func (b *Browser) Commands() []Command {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Command(nil), b.commands...)
}

func (b *Browser) CommandsFor(method string) []Command {
	var matching []Command
	for _, cmd := range b.Commands() {
		if cmd.Method == method {
			matching = append(matching, cmd)
		}
	}
	return matching
}

// Waits until the n-th (1-based) command with the given method has been received, and returns it.
func (b *Browser) WaitForCommand(ctx context.Context, method string, n int) (Command, error) {
	var found Command
	err := wait.PollUntilContextCancel(ctx, 10*time.Millisecond, true, func(_ context.Context) (bool, error) {
		matching := b.CommandsFor(method)
		if len(matching) >= n {
			found = matching[n-1]
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return Command{}, fmt.Errorf("command %s #%d was not received: %w", method, n, err)
	}
	return found, nil
}

// Number of WebSocket connections accepted so far.
func (b *Browser) ConnectionCount() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.accepted
}

// Number of WebSocket connections that are still open.
func (b *Browser) OpenConnectionCount() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.conns)
}

// Number of /json/version requests received so far, including the ones answered with an error.
func (b *Browser) VersionRequestCount() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.versionRequests
}

func (b *Browser) Respond(id int64, result any) error {
	return b.send(response(id, Reply{Result: result}))
}

func (b *Browser) RespondError(id int64, replyErr ReplyError) error {
	return b.send(response(id, Reply{Error: &replyErr}))
}

func (b *Browser) SendEvent(method string, sessionID string, params any) error {
	ev := map[string]any{"method": method}
	if sessionID != "" {
		ev["sessionId"] = sessionID
	}
	if params != nil {
		ev["params"] = params
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.send(msg)
}

// Sends a message verbatim to every connected client.
func (b *Browser) SendRaw(msg string) error {
	return b.send([]byte(msg))
}

// Sends a close frame to every connected client. The clients are expected to acknowledge it.
func (b *Browser) CloseConnections() {
	for _, fc := range b.connections() {
		fc.writeLock.Lock()
		_ = fc.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "browser closing"),
			time.Now().Add(time.Second),
		)
		fc.writeLock.Unlock()
	}
}

// Drops every connection without a close handshake, as a crashing browser would.
func (b *Browser) DropConnections() {
	for _, fc := range b.connections() {
		_ = fc.ws.UnderlyingConn().Close()
	}
}

func (b *Browser) Close() {
	b.DropConnections()
	b.server.Close()
}

func (b *Browser) connections() []*fakeConn {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]*fakeConn(nil), b.conns...)
}

func (b *Browser) send(msg []byte) error {
	conns := b.connections()
	if len(conns) == 0 {
		return fmt.Errorf("no client is connected")
	}
	for _, fc := range conns {
		if err := fc.write(msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *Browser) serveVersion(w http.ResponseWriter, r *http.Request) {
	b.lock.Lock()
	b.versionRequests++
	unavailable := b.versionUnavailable > 0
	if unavailable {
		b.versionUnavailable--
	}
	b.lock.Unlock()

	if unavailable {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	info := map[string]string{
		"Browser":              b.browserVersion,
		"Protocol-Version":     "1.3",
		"User-Agent":           "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) " + b.browserVersion + " Safari/537.36",
		"V8-Version":           "8.6.395.17",
		"WebKit-Version":       "537.36",
		"webSocketDebuggerUrl": b.WebSocketURL(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}

func (b *Browser) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	fc := &fakeConn{ws: ws, writeLock: &sync.Mutex{}}
	b.lock.Lock()
	b.conns = append(b.conns, fc)
	b.accepted++
	b.lock.Unlock()

	defer func() {
		b.lock.Lock()
		for i, c := range b.conns {
			if c == fc {
				b.conns = append(b.conns[:i], b.conns[i+1:]...)
				break
			}
		}
		b.lock.Unlock()
		_ = ws.Close()
	}()

	for {
		msgType, msg, readErr := ws.ReadMessage()
		if readErr != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var cmd Command
		if err = json.Unmarshal(msg, &cmd); err != nil {
			continue
		}
		cmd.Raw = string(msg)

		b.lock.Lock()
		b.commands = append(b.commands, cmd)
		handler, found := b.handlers[cmd.Method]
		b.lock.Unlock()

		reply := Reply{}
		if found {
			reply = handler(cmd)
		}
		if reply.Defer {
			continue
		}
		if err = fc.write(response(cmd.ID, reply)); err != nil {
			return
		}
	}
}

func response(id int64, reply Reply) []byte {
	resp := map[string]any{"id": id}
	if reply.Error != nil {
		resp["error"] = reply.Error
	} else if reply.Result != nil {
		resp["result"] = reply.Result
	} else {
		resp["result"] = struct{}{}
	}
	msg, _ := json.Marshal(resp)
	return msg
}
