/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package devtools

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/microsoft/cdpsession/pkg/resiliency"
)

// MessageHandler receives every complete text message read from the connection.
// It is called on the receive goroutine, one message at a time, in arrival order.
type MessageHandler func(message []byte)

// Connection is a message-oriented, full-duplex channel to a DevTools endpoint.
type Connection interface {
	// Opens the connection, retrying until timeout elapses, and starts the receive loop.
	Connect(ctx context.Context, address string, timeout time.Duration) error

	// Sends one complete text message. Safe for concurrent use.
	Send(message []byte) error

	// Closes the connection, waiting up to timeout for the peer to acknowledge. Safe to call more than once.
	Close(timeout time.Duration)

	IsActive() bool

	// Closed when the receive loop has ended and the socket has been released.
	Done() <-chan struct{}
}

// ConnectionFactory creates the Connection used by a session.
type ConnectionFactory func(onMessage MessageHandler, log logr.Logger) Connection

type wsConnectionState uint32

const (
	connStateInitial    wsConnectionState = 0x1
	connStateConnecting wsConnectionState = 0x2
	connStateOpen       wsConnectionState = 0x4
	connStateClosing    wsConnectionState = 0x8
	connStateClosed     wsConnectionState = 0x10
	connStateAny        wsConnectionState = 0xFFFFFFFF
)

func (s wsConnectionState) String() string {
	switch s {
	case connStateInitial:
		return "Initial"
	case connStateConnecting:
		return "Connecting"
	case connStateOpen:
		return "Open"
	case connStateClosing:
		return "Closing"
	case connStateClosed:
		return "Closed"
	case connStateAny:
		return "Any"
	default:
		return "Unknown"
	}
}

const (
	// Timeout for writing a single message or control frame.
	writeTimeout = 10 * time.Second

	// DevTools messages (screenshots, large DOM snapshots) can be far bigger than typical WebSocket traffic.
	readBufferSize  = 64 * 1024
	writeBufferSize = 64 * 1024
)

type wsConnection struct {
	lock      *sync.Mutex
	writeLock *sync.Mutex
	state     wsConnectionState
	conn      *websocket.Conn
	dialer    *websocket.Dialer
	onMessage MessageHandler
	log       logr.Logger

	// Cancelling this context wakes up the receive loop, which then releases the socket.
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

func NewWebSocketConnection(onMessage MessageHandler, log logr.Logger) Connection {
	return &wsConnection{
		lock:      &sync.Mutex{},
		writeLock: &sync.Mutex{},
		state:     connStateInitial,
		dialer: &websocket.Dialer{
			Proxy:            nil, // DevTools endpoints are local; never route them through a proxy.
			HandshakeTimeout: 5 * time.Second,
			ReadBufferSize:   readBufferSize,
			WriteBufferSize:  writeBufferSize,
		},
		onMessage: onMessage,
		log:       log,
		loopDone:  make(chan struct{}),
	}
}

var _ ConnectionFactory = NewWebSocketConnection

func (c *wsConnection) Connect(ctx context.Context, address string, timeout time.Duration) error {
	if !c.setState(connStateInitial, connStateConnecting) {
		return fmt.Errorf("%w: the connection cannot be opened in state %s", ErrTransport, c.getState())
	}

	if err := validateWebSocketAddress(address); err != nil {
		_ = c.setState(connStateAny, connStateClosed)
		return err
	}

	connectCtx, cancelConnect := context.WithTimeout(ctx, timeout)
	defer cancelConnect()

	wsConn, retryErr := resiliency.RetryGet(connectCtx, resiliency.EndpointBackoff(), func() (*websocket.Conn, error) {
		conn, resp, dialErr := c.dialer.DialContext(connectCtx, address, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if dialErr != nil {
			c.log.V(1).Info("Could not connect to the DevTools endpoint, retrying...", "Address", address, "Error", dialErr.Error())
			return nil, dialErr
		}
		return conn, nil
	})
	if retryErr != nil {
		_ = c.setState(connStateAny, connStateClosed)
		return fmt.Errorf("%w '%s' within %s: %w", ErrConnectTimeout, address, timeout, retryErr)
	}

	loopCtx, cancelLoop := context.WithCancel(context.Background())

	c.lock.Lock()
	if c.state != connStateConnecting {
		// Closed while we were dialing.
		c.lock.Unlock()
		cancelLoop()
		_ = wsConn.Close()
		return fmt.Errorf("%w: the connection was closed while connecting", ErrTransport)
	}
	c.conn = wsConn
	c.cancelLoop = cancelLoop
	c.state = connStateOpen
	c.lock.Unlock()

	wsConn.SetCloseHandler(c.handleRemoteClose(wsConn))

	c.log.V(1).Info("Connected to the DevTools endpoint", "Address", address)
	go c.receiveMessages(loopCtx, wsConn)
	return nil
}

func (c *wsConnection) Send(message []byte) error {
	c.lock.Lock()
	state, wsConn := c.state, c.conn
	c.lock.Unlock()

	if state != connStateOpen {
		return ErrConnectionNotOpen
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if err := wsConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := wsConn.WriteMessage(websocket.TextMessage, message); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

func (c *wsConnection) Close(timeout time.Duration) {
	c.lock.Lock()
	wsConn, cancelLoop := c.conn, c.cancelLoop
	wasOpen := c.state == connStateOpen
	if wsConn == nil {
		// Never connected (or still dialing; Connect will notice).
		c.state = connStateClosed
		c.lock.Unlock()
		return
	}
	if wasOpen {
		c.state = connStateClosing
	}
	c.lock.Unlock()

	if wasOpen {
		// Closing is a best-effort operation, so errors are logged as "info" entries.
		c.writeLock.Lock()
		closeMsgErr := wsConn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(timeout),
		)
		c.writeLock.Unlock()

		if closeMsgErr != nil {
			c.log.V(1).Info("Failed to send close message to the DevTools endpoint", "Error", closeMsgErr.Error())
		} else {
			// The receive loop exits when the peer echoes the close frame.
			select {
			case <-c.loopDone:
			case <-time.After(timeout):
				c.log.V(1).Info("The DevTools endpoint did not acknowledge the close message in time", "Timeout", timeout)
			}
		}
	}

	cancelLoop()
	<-c.loopDone
}

func (c *wsConnection) IsActive() bool {
	return c.getState() == connStateOpen
}

func (c *wsConnection) Done() <-chan struct{} {
	return c.loopDone
}

// The receive loop is the only place where the socket is released.
func (c *wsConnection) receiveMessages(loopCtx context.Context, wsConn *websocket.Conn) {
	defer close(c.loopDone)

	defer func() {
		_ = c.setState(connStateAny, connStateClosed)
		if closeErr := wsConn.Close(); closeErr != nil {
			c.log.V(1).Info("Failed to close the DevTools connection", "Error", closeErr.Error())
		}
	}()

	defer func() {
		_ = resiliency.RecoverPanic(recover(), "receive loop", c.log)
	}()

	stopWaking := context.AfterFunc(loopCtx, func() {
		// Force the pending read to fail immediately.
		_ = wsConn.SetReadDeadline(time.Now())
	})
	defer stopWaking()

	for {
		msgType, msg, readErr := wsConn.ReadMessage()
		if readErr != nil {
			c.reportReadError(loopCtx, readErr)
			return
		}

		switch msgType {
		// Ping and pong frames are handled by the Gorilla WebSocket library.
		// The close frame is reported as CloseError from ReadMessage(), handled above.

		case websocket.TextMessage:
			c.onMessage(msg)

		default:
			c.log.V(1).Info("Ignoring non-text message from the DevTools endpoint", "MessageType", msgType, "Size", len(msg))
		}
	}
}

func (c *wsConnection) reportReadError(loopCtx context.Context, readErr error) {
	if loopCtx.Err() != nil {
		// We are being asked to end the connection, the error is expected.
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(readErr, &closeErr) {
		c.log.V(1).Info("The DevTools endpoint closed the connection", "Code", closeErr.Code, "Text", closeErr.Text)
		return
	}

	if c.getState() == connStateClosing {
		return
	}

	// Abrupt termination (the browser went away). Not an error from the session point of view.
	c.log.V(1).Info("The DevTools connection ended unexpectedly", "Error", readErr.Error())
}

func (c *wsConnection) handleRemoteClose(wsConn *websocket.Conn) func(code int, text string) error {
	return func(code int, text string) error {
		if !c.setState(connStateOpen, connStateClosing) {
			// We initiated the close, this is the acknowledgement.
			return nil
		}

		c.writeLock.Lock()
		defer c.writeLock.Unlock()

		ackErr := wsConn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""),
			time.Now().Add(writeTimeout),
		)
		if ackErr != nil && !errors.Is(ackErr, websocket.ErrCloseSent) {
			c.log.V(1).Info("Failed to acknowledge the close message from the DevTools endpoint", "Error", ackErr.Error())
		}
		return nil
	}
}

func (c *wsConnection) getState() wsConnectionState {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// Transition the connection to a new state, if the current state matches the expected state.
// Returns false if the current state does not match, or is already the new state.
func (c *wsConnection) setState(expectedState, newState wsConnectionState) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.state == newState {
		return false
	}
	if c.state&expectedState != 0 {
		c.state = newState
		return true
	}
	return false
}

func validateWebSocketAddress(address string) error {
	u, err := url.Parse(address)
	if err != nil {
		return fmt.Errorf("%w: invalid DevTools address '%s': %w", ErrTransport, address, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: DevTools address '%s' must use the ws or wss scheme", ErrTransport, address)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: DevTools address '%s' has no host", ErrTransport, address)
	}
	return nil
}
