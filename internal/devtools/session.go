/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package devtools implements a Chrome DevTools Protocol session: a single WebSocket connection
// to a browser, attached to one page target, over which commands are correlated with their
// responses and events are fanned out to subscribers.
package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/smallnest/chanx"
	"go.opentelemetry.io/otel/attribute"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/microsoft/cdpsession/internal/devtools/domains"
	"github.com/microsoft/cdpsession/internal/devtools/protocol"
	"github.com/microsoft/cdpsession/internal/telemetry"
	"github.com/microsoft/cdpsession/pkg/resiliency"
)

type SessionState uint32

const (
	StateUnstarted  SessionState = 0x1
	StateConnecting SessionState = 0x2
	StateAttaching  SessionState = 0x4
	StateReady      SessionState = 0x8
	StateDetaching  SessionState = 0x10
	StateClosed     SessionState = 0x20
	stateAny        SessionState = 0xFFFFFFFF
)

func (s SessionState) String() string {
	switch s {
	case StateUnstarted:
		return "Unstarted"
	case StateConnecting:
		return "Connecting"
	case StateAttaching:
		return "Attaching"
	case StateReady:
		return "Ready"
	case StateDetaching:
		return "Detaching"
	case StateClosed:
		return "Closed"
	case stateAny:
		return "Any"
	default:
		return "Unknown"
	}
}

const (
	eventQueueInitialCapacity = 64
	waitReadyPollInterval     = 50 * time.Millisecond
	pageTargetType            = "page"
)

type Session struct {
	config     SessionConfig
	log        logr.Logger
	instanceID string
	metrics    *telemetry.SessionMetrics

	lock            *sync.Mutex
	state           SessionState
	conn            Connection
	domains         domains.Domains
	activeSessionID string
	targetID        string
	detachSub       protocol.Subscription

	// Serializes the attach sequence.
	attachLock *sync.Mutex

	commandIDs    commandIDCounter
	pending       *pendingCommandMap
	subscriptions *subscriptionRegistry

	// Lifetime of the background goroutines (event pump, connection watcher).
	lifetimeCtx    context.Context
	cancelLifetime context.CancelFunc
	eventQueue     *chanx.UnboundedChan[protocol.Event]
	pumpDone       chan struct{}

	teardownOnce *sync.Once
	closed       chan struct{}
}

// Creates a session for the configured endpoint. No connection is made until Start()
// (or the first command) is called.
func NewSession(config SessionConfig) (*Session, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("the DevTools endpoint must be specified")
	}

	config = config.withDefaults()
	instanceID := uuid.New().String()
	lifetimeCtx, cancelLifetime := context.WithCancel(context.Background())

	s := &Session{
		config:         config,
		log:            config.Logger.WithName("DevToolsSession").WithValues("SessionInstance", instanceID),
		instanceID:     instanceID,
		metrics:        telemetry.NewSessionMetrics(config.Meter),
		lock:           &sync.Mutex{},
		state:          StateUnstarted,
		attachLock:     &sync.Mutex{},
		pending:        newPendingCommandMap(),
		subscriptions:  newSubscriptionRegistry(),
		lifetimeCtx:    lifetimeCtx,
		cancelLifetime: cancelLifetime,
		eventQueue:     chanx.NewUnboundedChan[protocol.Event](lifetimeCtx, eventQueueInitialCapacity),
		pumpDone:       make(chan struct{}),
		teardownOnce:   &sync.Once{},
		closed:         make(chan struct{}),
	}

	// The pump (and the queue) stop when the lifetime context is cancelled during teardown.
	go s.pumpEvents(s.eventQueue.Out)

	return s, nil
}

// Resolves the protocol version, connects to the browser and attaches to the first page target.
func (s *Session) Start(ctx context.Context) error {
	if !s.setState(StateUnstarted, StateConnecting) {
		return fmt.Errorf("the session cannot be started in state %s", s.State())
	}

	// Stop() or Close() while starting abandons discovery and connecting.
	startCtx, cancelStart := context.WithCancel(ctx)
	defer cancelStart()
	stopCancelOnClose := context.AfterFunc(s.lifetimeCtx, cancelStart)
	defer stopCancelOnClose()

	startErr := telemetry.CallWithTelemetryNoResult(s.config.Tracer, "devtools.Session.Start", startCtx, s.start,
		attribute.String("endpoint", s.config.Endpoint),
		attribute.String("session.instance", s.instanceID),
	)
	if startErr != nil && s.lifetimeCtx.Err() != nil && !errors.Is(startErr, ErrSessionClosed) {
		startErr = fmt.Errorf("%w: %w", ErrSessionClosed, startErr)
	}
	if startErr != nil {
		s.log.Error(startErr, "Could not start the DevTools session")
		s.teardown(context.Background(), false)
		return startErr
	}

	return nil
}

func (s *Session) start(ctx context.Context) error {
	wsURL, version, err := s.resolveEndpoint(ctx)
	if err != nil {
		return err
	}

	entry, err := s.config.Registry.Resolve(version, s.config.VersionTolerance)
	if err != nil {
		return err
	}
	s.log.V(1).Info("Selected DevTools domain set", "BrowserVersion", version, "DomainVersion", entry.Version)

	conn := s.config.ConnectionFactory(s.handleMessage, s.log.WithName("Connection"))
	s.lock.Lock()
	if s.state != StateConnecting {
		// Stopped during discovery. Teardown has already looked for a connection to close.
		s.lock.Unlock()
		return ErrSessionClosed
	}
	s.conn = conn
	s.domains = entry.New(s)
	s.lock.Unlock()

	if err = conn.Connect(ctx, wsURL, s.config.ConnectTimeout); err != nil {
		return err
	}
	go s.watchConnection(conn)

	if !s.setState(StateConnecting, StateAttaching) {
		conn.Close(s.config.CloseTimeout)
		return ErrSessionClosed
	}
	return s.attach(ctx)
}

// Returns the DevTools WebSocket URL and the browser major version.
func (s *Session) resolveEndpoint(ctx context.Context) (string, int, error) {
	endpoint := s.config.Endpoint

	if isWebSocketURL(endpoint) && s.config.ProtocolVersion > 0 {
		return endpoint, s.config.ProtocolVersion, nil
	}

	discoveryCtx, cancelDiscovery := context.WithTimeout(ctx, s.config.ConnectTimeout)
	defer cancelDiscovery()

	info, err := FetchVersionInfo(discoveryCtx, s.config.HTTPClient, endpoint)
	if err != nil {
		return "", 0, err
	}
	s.log.V(1).Info("Browser version information received", "Browser", info.Browser, "ProtocolVersion", info.ProtocolVersion)

	wsURL := endpoint
	if !isWebSocketURL(endpoint) {
		wsURL = info.WebSocketDebuggerURL
		if wsURL == "" {
			return "", 0, fmt.Errorf("%w: the browser did not report a DevTools WebSocket URL", ErrTransport)
		}
	}

	version := s.config.ProtocolVersion
	if version <= 0 {
		if version, err = info.MajorVersion(); err != nil {
			return "", 0, err
		}
	}
	return wsURL, version, nil
}

// Attaches to the first page target and turns on auto-attach for its related targets.
// Taking the first page is a known limitation when the browser has more than one open.
func (s *Session) attach(ctx context.Context) error {
	s.attachLock.Lock()
	defer s.attachLock.Unlock()

	target := s.Domains().Target()

	targets, err := target.GetTargets(ctx)
	if err != nil {
		return fmt.Errorf("could not list browser targets: %w", err)
	}

	var page *domains.TargetInfo
	for i := range targets {
		if targets[i].Type == pageTargetType {
			page = &targets[i]
			break
		}
	}
	if page == nil {
		return fmt.Errorf("%w (found %d targets)", ErrNoAttachableTarget, len(targets))
	}

	sessionID, err := target.AttachToTarget(ctx, page.TargetID)
	if err != nil {
		return fmt.Errorf("could not attach to target '%s': %w", page.TargetID, err)
	}
	if sessionID == "" {
		return fmt.Errorf("%w: attaching to target '%s' did not yield a session", ErrNoAttachableTarget, page.TargetID)
	}

	s.lock.Lock()
	s.activeSessionID = sessionID
	s.targetID = page.TargetID
	s.lock.Unlock()

	if err = target.SetAutoAttach(ctx, s.config.WaitForDebuggerOnStart); err != nil {
		return fmt.Errorf("could not enable auto-attach for target '%s': %w", page.TargetID, err)
	}

	detachSub := target.OnDetachedFromTarget(s.onDetachedFromTarget)

	s.lock.Lock()
	s.detachSub = detachSub
	s.lock.Unlock()

	if !s.setState(StateAttaching, StateReady) {
		// Stopped while attaching.
		detachSub.Cancel()
		return ErrSessionClosed
	}

	s.log.Info("DevTools session attached", "TargetID", page.TargetID, "TargetSessionID", sessionID, "URL", page.URL)
	return nil
}

func (s *Session) onDetachedFromTarget(ev domains.DetachedFromTarget) {
	s.lock.Lock()
	activeSessionID := s.activeSessionID
	s.lock.Unlock()

	if activeSessionID == "" || ev.SessionID != activeSessionID {
		return
	}

	s.log.Info("The browser detached the session from its target", "TargetID", ev.TargetID, "TargetSessionID", ev.SessionID)

	// Teardown waits for the event pump, which is running this handler.
	go s.teardown(context.Background(), true)
}

// Blocks until the session is Ready. Fails if the session closes first or ctx is done.
func (s *Session) WaitReady(ctx context.Context) error {
	return wait.PollUntilContextCancel(ctx, waitReadyPollInterval, true, func(_ context.Context) (bool, error) {
		switch s.State() {
		case StateReady:
			return true, nil
		case StateDetaching, StateClosed:
			return false, ErrSessionClosed
		default:
			return false, nil
		}
	})
}

// Makes sure the session is attached before a target-scoped command is sent.
func (s *Session) ensureReady(ctx context.Context) error {
	switch s.State() {
	case StateReady:
		return nil
	case StateUnstarted:
		startErr := s.Start(ctx)
		if startErr == nil {
			return nil
		}
		if s.State()&(StateConnecting|StateAttaching|StateReady) != 0 {
			// Another caller won the race to start the session.
			return s.WaitReady(ctx)
		}
		return startErr
	case StateConnecting, StateAttaching:
		return s.WaitReady(ctx)
	default:
		return ErrSessionClosed
	}
}

// Sends a command and waits for its response.
//
// Command ids are shared with the attach sequence, which uses ids 1 through 3,
// so the first command sent on a fresh session has id 4.
// If the connection is not open the command is not sent and (nil, nil) is returned.
// If no response arrives within the timeout, ErrCommandTimeout is returned, unless
// WithThrowIfNoResponse(false) was used, in which case the result is (nil, nil).
func (s *Session) SendCommand(ctx context.Context, method string, params any, opts ...protocol.CommandOption) (json.RawMessage, error) {
	settings := protocol.NewCommandSettings(s.config.CommandTimeout, opts...)

	if !settings.BrowserScope && !settings.SkipAttach {
		if err := s.ensureReady(ctx); err != nil {
			return nil, err
		}
	}

	s.lock.Lock()
	conn := s.conn
	sessionID := s.activeSessionID
	s.lock.Unlock()
	if settings.BrowserScope {
		sessionID = ""
	}

	id := s.commandIDs.Next()
	payload, err := encodeCommand(id, sessionID, method, params)
	if err != nil {
		return nil, fmt.Errorf("could not serialize the parameters of %s: %w", method, err)
	}

	if conn == nil || !conn.IsActive() {
		s.log.V(1).Info("The DevTools connection is not open, command was not sent", "Method", method, "ID", id)
		return nil, nil
	}

	pc := newPendingCommand(id, method)
	s.pending.Add(pc)
	defer s.pending.Remove(id)

	if sendErr := conn.Send(payload); sendErr != nil {
		if errors.Is(sendErr, ErrConnectionNotOpen) {
			s.log.V(1).Info("The DevTools connection closed, command was not sent", "Method", method, "ID", id)
			return nil, nil
		}
		return nil, fmt.Errorf("could not send %s: %w", method, sendErr)
	}

	s.metrics.CommandSent(ctx, method)
	defer s.metrics.CommandSettled(ctx)
	s.log.V(1).Info("Command sent", "Method", method, "ID", id, "TargetSessionID", sessionID)

	timer := time.NewTimer(settings.Timeout)
	defer timer.Stop()

	select {
	case res := <-pc.done:
		if res.err != nil {
			if errors.Is(res.err, ErrCommandFailed) {
				s.metrics.CommandFailed(ctx, method)
			}
			return nil, res.err
		}
		return res.result, nil

	case <-timer.C:
		s.metrics.CommandTimedOut(ctx, method)
		if settings.ThrowIfNoResponse {
			return nil, fmt.Errorf("%w: %s (id %d) after %s", ErrCommandTimeout, method, id, settings.Timeout)
		}
		s.log.V(1).Info("No response received for command", "Method", method, "ID", id, "Timeout", settings.Timeout)
		return nil, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribes to an event. Handlers for the same event are invoked in subscription order,
// one event at a time, in the order the events arrived.
func (s *Session) Subscribe(domain, event string, handler protocol.EventHandler) protocol.Subscription {
	return s.subscriptions.Add(subscriptionKey{domain: domain, event: event}, handler)
}

// Observes every event before it is passed to the subscribers of that specific event.
func (s *Session) OnEventReceived(handler protocol.EventHandler) protocol.Subscription {
	return s.subscriptions.Add(anyEvent, handler)
}

// Called by the connection for every inbound message, on its receive goroutine.
func (s *Session) handleMessage(raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.log.V(1).Info("Discarding malformed DevTools message", "Error", err.Error(), "Size", len(raw))
		s.metrics.MessageDiscarded(s.lifetimeCtx, "malformed")
		return
	}

	switch {
	case msg.ID != nil:
		s.completeCommand(*msg.ID, &msg)

	case msg.Method != "":
		domain, name, ok := protocol.SplitMethod(msg.Method)
		if !ok {
			s.log.V(1).Info("Discarding message with an invalid method name", "Method", msg.Method)
			s.metrics.MessageDiscarded(s.lifetimeCtx, "invalid-method")
			return
		}
		s.metrics.EventReceived(s.lifetimeCtx, msg.Method)
		s.enqueueEvent(protocol.Event{
			Domain:    domain,
			Name:      name,
			SessionID: msg.SessionID,
			Params:    msg.Params,
		})

	default:
		s.log.V(1).Info("Discarding message that is neither a response nor an event", "Size", len(raw))
		s.metrics.MessageDiscarded(s.lifetimeCtx, "unrecognized")
	}
}

func (s *Session) completeCommand(id int64, msg *inboundMessage) {
	pc := s.pending.Remove(id)
	if pc == nil {
		// Late (after timeout), duplicate, or never issued.
		s.log.V(1).Info("Discarding response for a command that is not pending", "ID", id)
		s.metrics.MessageDiscarded(s.lifetimeCtx, "unknown-id")
		return
	}

	if msg.Error != nil {
		pc.complete(commandResult{err: msg.Error.toCommandError(pc.method)})
		return
	}

	result := msg.Result
	if len(result) == 0 {
		result = emptyParams
	}
	pc.complete(commandResult{result: result})
}

func (s *Session) enqueueEvent(ev protocol.Event) {
	select {
	case s.eventQueue.In <- ev:
	case <-s.lifetimeCtx.Done():
	}
}

func (s *Session) pumpEvents(events <-chan protocol.Event) {
	defer close(s.pumpDone)

	for ev := range events {
		for _, sub := range s.subscriptions.Matching(ev) {
			if sub.valid() {
				s.notify(sub, ev)
			}
		}
	}
}

func (s *Session) notify(sub *Subscription, ev protocol.Event) {
	defer func() {
		_ = resiliency.RecoverPanic(recover(), "event handler", s.log.WithValues("Event", ev.Method()))
	}()

	if err := sub.handler(ev); err != nil {
		s.log.Error(err, "Event handler failed", "Event", ev.Method())
	}
}

// Releases waiting commands when the connection goes away, and tears the session down
// if that was not requested.
func (s *Session) watchConnection(conn Connection) {
	select {
	case <-conn.Done():
	case <-s.lifetimeCtx.Done():
		return
	}

	if released := s.pending.DrainWithError(ErrSessionClosed); released > 0 {
		s.log.V(1).Info("Released pending commands after the connection ended", "Count", released)
	}

	if s.State()&(StateDetaching|StateClosed) == 0 {
		s.log.Info("The DevTools connection ended unexpectedly, closing the session")
		s.teardown(context.Background(), true)
	}
}

// Detaches from the target (if still attached) and closes the connection.
// Safe to call in any state, any number of times; the session ends up Closed.
// Must not be called synchronously from an event handler, since teardown waits for event delivery to finish.
func (s *Session) Stop(ctx context.Context) {
	s.teardown(ctx, false)
}

// Tears the session down without detaching from the target first.
// Safe to call in any state, any number of times.
func (s *Session) Close() error {
	s.teardown(context.Background(), true)
	return nil
}

func (s *Session) teardown(ctx context.Context, skipDetach bool) {
	s.teardownOnce.Do(func() {
		defer close(s.closed)

		prevState := s.getState()
		_ = s.setState(stateAny, StateDetaching)

		s.lock.Lock()
		conn := s.conn
		detachSub := s.detachSub
		sessionID, targetID := s.activeSessionID, s.targetID
		d := s.domains
		s.detachSub = nil
		s.lock.Unlock()

		if detachSub != nil {
			detachSub.Cancel()
		}

		if !skipDetach && prevState == StateReady && conn != nil && conn.IsActive() {
			detachCtx, cancelDetach := context.WithTimeout(ctx, detachTimeout)
			detachErr := d.Target().DetachFromTarget(detachCtx, sessionID, targetID)
			cancelDetach()
			if detachErr = filterContextError(detachErr, detachCtx, s.log); detachErr != nil {
				s.log.V(1).Info("Could not detach from the target", "TargetID", targetID, "Error", detachErr.Error())
			}
		}

		s.lock.Lock()
		s.activeSessionID = ""
		s.targetID = ""
		s.lock.Unlock()

		if conn != nil {
			conn.Close(s.config.CloseTimeout)
		}

		s.pending.DrainWithError(ErrSessionClosed)
		s.cancelLifetime()
		s.subscriptions.Clear()
		<-s.pumpDone

		_ = s.setState(stateAny, StateClosed)
		s.log.V(1).Info("DevTools session closed", "PreviousState", prevState.String())
	})

	// Concurrent callers return once the session is fully closed.
	select {
	case <-s.closed:
	case <-ctx.Done():
	}
}

// Returns the domain facades for the browser version this session talks to.
// Nil until Start() has resolved the version.
func (s *Session) Domains() domains.Domains {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.domains
}

func (s *Session) State() SessionState {
	return s.getState()
}

// The DevTools session id of the attached target, or "" if not attached.
func (s *Session) TargetSessionID() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.activeSessionID
}

func (s *Session) TargetID() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.targetID
}

func (s *Session) getState() SessionState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Transition the session to a new state, if the current state matches the expected state.
// Returns true if the session transitioned to the new state ONLY.
// Closed is final: nothing transitions out of it.
func (s *Session) setState(expectedState, newState SessionState) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state == newState || s.state == StateClosed {
		return false
	}
	if s.state&expectedState != 0 {
		s.state = newState
		return true
	}
	return false
}

var _ protocol.Commander = (*Session)(nil)
