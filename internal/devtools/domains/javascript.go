/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package domains

import (
	"context"
	"errors"
	"fmt"

	"github.com/microsoft/cdpsession/internal/devtools/protocol"
)

const runtimeDomainName = "Runtime"

var ErrScriptException = errors.New("script evaluation threw an exception")

// javaScriptDomain spans the Runtime and Page domains.
type javaScriptDomain struct {
	cmd protocol.Commander
}

func (j *javaScriptDomain) EnableRuntime(ctx context.Context) error {
	return run(ctx, j.cmd, "Runtime.enable", nil)
}

func (j *javaScriptDomain) DisableRuntime(ctx context.Context) error {
	return run(ctx, j.cmd, "Runtime.disable", nil)
}

func (j *javaScriptDomain) EnablePage(ctx context.Context) error {
	return run(ctx, j.cmd, "Page.enable", nil)
}

func (j *javaScriptDomain) DisablePage(ctx context.Context) error {
	return run(ctx, j.cmd, "Page.disable", nil)
}

func (j *javaScriptDomain) AddBinding(ctx context.Context, name string) error {
	params := struct {
		Name string `json:"name"`
	}{name}
	return run(ctx, j.cmd, "Runtime.addBinding", params)
}

func (j *javaScriptDomain) RemoveBinding(ctx context.Context, name string) error {
	params := struct {
		Name string `json:"name"`
	}{name}
	return run(ctx, j.cmd, "Runtime.removeBinding", params)
}

func (j *javaScriptDomain) AddScriptToEvaluateOnNewDocument(ctx context.Context, script string) (string, error) {
	params := struct {
		Source string `json:"source"`
	}{script}

	res, err := protocol.Execute[struct {
		Identifier string `json:"identifier"`
	}](ctx, j.cmd, "Page.addScriptToEvaluateOnNewDocument", params)
	if err != nil {
		return "", err
	}
	return res.Identifier, nil
}

func (j *javaScriptDomain) RemoveScriptToEvaluateOnNewDocument(ctx context.Context, identifier string) error {
	params := struct {
		Identifier string `json:"identifier"`
	}{identifier}
	return run(ctx, j.cmd, "Page.removeScriptToEvaluateOnNewDocument", params)
}

func (j *javaScriptDomain) Evaluate(ctx context.Context, expression string) (RemoteObject, error) {
	params := struct {
		Expression    string `json:"expression"`
		ReturnByValue bool   `json:"returnByValue"`
		AwaitPromise  bool   `json:"awaitPromise"`
	}{
		Expression:    expression,
		ReturnByValue: true,
		AwaitPromise:  true,
	}

	res, err := protocol.Execute[struct {
		Result           RemoteObject      `json:"result"`
		ExceptionDetails *ExceptionDetails `json:"exceptionDetails,omitempty"`
	}](ctx, j.cmd, "Runtime.evaluate", params)
	if err != nil {
		return RemoteObject{}, err
	}
	if res.ExceptionDetails != nil {
		return res.Result, fmt.Errorf("%w: %s (line %d, column %d)", ErrScriptException,
			res.ExceptionDetails.Text, res.ExceptionDetails.LineNumber, res.ExceptionDetails.ColumnNumber)
	}
	return res.Result, nil
}

func (j *javaScriptDomain) OnBindingCalled(handler func(BindingCalled)) protocol.Subscription {
	return protocol.OnEvent(j.cmd, runtimeDomainName, "bindingCalled", handler)
}

func (j *javaScriptDomain) OnConsoleAPICalled(handler func(ConsoleAPICalled)) protocol.Subscription {
	return protocol.OnEvent(j.cmd, runtimeDomainName, "consoleAPICalled", handler)
}

func (j *javaScriptDomain) OnExceptionThrown(handler func(ExceptionThrown)) protocol.Subscription {
	return protocol.OnEvent(j.cmd, runtimeDomainName, "exceptionThrown", handler)
}
