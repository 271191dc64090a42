/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/microsoft/cdpsession/pkg/logger"
)

func NewRootCommand(logger *logger.Logger) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		SilenceErrors: true,
		Use:           "cdpsession",
		Short:         "Talks to a Chromium-based browser over the Chrome DevTools Protocol",
		Long: `Talks to a Chromium-based browser over the Chrome DevTools Protocol.

	The browser must be started with remote debugging enabled (for example --remote-debugging-port=9222).
	Commands attach to the first page target of the browser and detach when they are done.`,
		SilenceUsage:     true,
		PersistentPreRun: LogVersion(logger.Logger, "Starting cdpsession..."),
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	logger.AddLevelFlag(rootCmd.PersistentFlags())
	addSessionFlags(rootCmd.PersistentFlags())

	var err error
	var cmd *cobra.Command

	if cmd, err = NewVersionCommand(logger.Logger); err != nil {
		return nil, fmt.Errorf("could not set up 'version' command: %w", err)
	} else {
		rootCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(NewBrowserVersionCommand(logger.Logger))
	rootCmd.AddCommand(NewTargetsCommand(logger.Logger))
	rootCmd.AddCommand(NewSendCommand(logger.Logger))
	rootCmd.AddCommand(NewEvalCommand(logger.Logger))
	rootCmd.AddCommand(NewWatchCommand(logger.Logger))

	return rootCmd, nil
}
