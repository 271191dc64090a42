/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"fmt"
	"runtime/debug"

	"github.com/go-logr/logr"
)

// A panic recovered from a background goroutine (receive loop, event pump) or from a user callback.
type PanicError struct {
	// What was running when the panic happened, for example "event handler".
	Origin string
	Value  any
	Stack  []byte
}

func (pe *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", pe.Origin, pe.Value)
}

// Panics with an error value keep that error visible to errors.Is() and errors.As().
func (pe *PanicError) Unwrap() error {
	if err, isErr := pe.Value.(error); isErr {
		return err
	}
	return nil
}

// Converts the result of recover() into a permanent *PanicError and logs it together with the stack.
// Returns nil if nothing panicked. Intended for deferred calls:
//
//	defer func() { _ = resiliency.RecoverPanic(recover(), "receive loop", log) }()
func RecoverPanic(panicVal any, origin string, log logr.Logger) error {
	if panicVal == nil {
		return nil
	}

	pe := &PanicError{Origin: origin, Value: panicVal, Stack: debug.Stack()}
	log.Error(pe, "Recovered from a panic", "Origin", origin, "Stack", string(pe.Stack))
	return Permanent(pe)
}
