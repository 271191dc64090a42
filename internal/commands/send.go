/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/microsoft/cdpsession/internal/devtools"
	"github.com/microsoft/cdpsession/internal/devtools/protocol"
)

var (
	sendBrowserScope bool
	sendTimeout      time.Duration
	sendNoThrow      bool
)

func NewSendCommand(log logr.Logger) *cobra.Command {
	sendCmd := &cobra.Command{
		Use:   "send METHOD [PARAMS]",
		Short: "Sends a DevTools command and prints its result",
		Long: `Sends a DevTools command and prints its result.

	METHOD is the fully qualified command name, for example Page.navigate.
	PARAMS, if present, is the JSON object with the command parameters, for example '{"url":"https://example.com"}'.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: sendCommand(log),
	}

	sendCmd.Flags().BoolVar(&sendBrowserScope, "browser", false, "Send the command to the browser instead of the attached page target.")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 0, "How long to wait for the response. Defaults to the command timeout of the session.")
	sendCmd.Flags().BoolVar(&sendNoThrow, "no-response-ok", false, "Do not fail if the browser does not respond in time.")

	return sendCmd
}

func sendCommand(log logr.Logger) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log := log.WithName("send")

		method := args[0]
		if _, _, ok := protocol.SplitMethod(method); !ok {
			return fmt.Errorf("'%s' is not a valid DevTools method name, expected Domain.command", method)
		}

		var params json.RawMessage
		if len(args) > 1 {
			params = json.RawMessage(args[1])
			if !json.Valid(params) {
				return fmt.Errorf("the command parameters are not valid JSON: %s", args[1])
			}
		}

		opts := []protocol.CommandOption{protocol.WithThrowIfNoResponse(!sendNoThrow)}
		if sendBrowserScope {
			opts = append(opts, protocol.WithBrowserScope())
		}
		if sendTimeout > 0 {
			opts = append(opts, protocol.WithTimeout(sendTimeout))
		}

		return withSession(cmd.Context(), log, func(ctx context.Context, s *devtools.Session) error {
			var paramsVal any
			if params != nil {
				paramsVal = params
			}

			result, err := s.SendCommand(ctx, method, paramsVal, opts...)
			if err != nil {
				var ce *devtools.CommandError
				if errors.As(err, &ce) {
					log.V(1).Info("The browser rejected the command", "Method", ce.Method, "Code", ce.Code)
				}
				return err
			}

			if result == nil {
				log.Info("No response was received", "Method", method)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), result)
		})
	}
}

func NewEvalCommand(log logr.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "eval EXPRESSION",
		Short: "Evaluates a JavaScript expression in the attached page and prints the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), log.WithName("eval"), func(ctx context.Context, s *devtools.Session) error {
				obj, err := s.Domains().JavaScript().Evaluate(ctx, args[0])
				if err != nil {
					return err
				}
				if len(obj.Value) > 0 {
					return writeJSON(cmd.OutOrStdout(), obj.Value)
				}
				return writeJSON(cmd.OutOrStdout(), obj)
			})
		},
	}
}
