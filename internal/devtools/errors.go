/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/microsoft/cdpsession/internal/devtools/domains"
)

var (
	// The connection could not be established within the connect timeout.
	ErrConnectTimeout = errors.New("could not connect to the DevTools endpoint")

	// The connection failed, or was used while not open.
	ErrTransport = errors.New("DevTools transport failure")

	// Returned by Connection.Send when the connection is not open (yet, or anymore).
	ErrConnectionNotOpen = fmt.Errorf("%w: connection is not open", ErrTransport)

	// No response arrived within the command timeout.
	ErrCommandTimeout = errors.New("DevTools command did not receive a response in time")

	// The browser answered a command with an error payload. See CommandError.
	ErrCommandFailed = errors.New("DevTools command failed")

	ErrUnsupportedVersion = domains.ErrUnsupportedVersion

	// The browser exposes no page target to attach to.
	ErrNoAttachableTarget = errors.New("no page target available to attach to")

	// The browser version string does not contain a major version number.
	ErrVersionParse = errors.New("could not parse the browser version")

	// The session was torn down while the command was waiting, or before it was issued.
	ErrSessionClosed = errors.New("DevTools session is closed")
)

// CommandError carries the error payload of a failed command.
type CommandError struct {
	Method  string
	Code    int64
	Message string
	Data    string
}

func (e *CommandError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("DevTools command %s failed with code %d: %s (%s)", e.Method, e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("DevTools command %s failed with code %d: %s", e.Method, e.Code, e.Message)
}

func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}

// Wire representation of a command error.
type responseError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (re *responseError) toCommandError(method string) *CommandError {
	ce := &CommandError{
		Method:  method,
		Code:    re.Code,
		Message: re.Message,
	}
	if len(re.Data) > 0 {
		var text string
		if err := json.Unmarshal(re.Data, &text); err == nil {
			ce.Data = text
		} else {
			ce.Data = string(re.Data)
		}
	}
	return ce
}

func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectTimeout) || errors.Is(err, ErrTransport)
}

func IsCommandError(err error) bool {
	return errors.Is(err, ErrCommandFailed) || errors.Is(err, ErrCommandTimeout)
}

// Context errors that happen because the session is shutting down are expected,
// so they are logged at debug level and dropped.
func filterContextError(err error, ctx context.Context, log logr.Logger) error {
	if err == nil {
		return nil
	}

	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		log.V(1).Info("Ignoring context error during shutdown", "Error", err.Error())
		return nil
	}

	return err
}
