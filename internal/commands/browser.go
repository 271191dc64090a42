/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/microsoft/cdpsession/internal/devtools"
	"github.com/microsoft/cdpsession/internal/devtools/domains"
)

func NewBrowserVersionCommand(log logr.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "browser-version",
		Short: "Prints the version information reported by the browser",
		Long: `Prints the version information reported by the browser DevTools discovery endpoint,
together with the DevTools domain set that would be used for it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := log.WithName("browser-version")

			ctx, cancel := context.WithTimeout(cmd.Context(), sessionConfig.ConnectTimeout)
			defer cancel()

			info, err := devtools.FetchVersionInfo(ctx, http.DefaultClient, sessionConfig.Endpoint)
			if err != nil {
				log.Error(err, "Could not get browser version information", "Endpoint", sessionConfig.Endpoint)
				return err
			}

			output := struct {
				devtools.VersionInfo
				DomainVersion int `json:"domainVersion,omitempty"`
			}{VersionInfo: info}

			if major, majorErr := info.MajorVersion(); majorErr == nil {
				if entry, resolveErr := domains.DefaultRegistry().Resolve(major, sessionConfig.VersionTolerance); resolveErr == nil {
					output.DomainVersion = entry.Version
				} else {
					log.Info("The browser version is not supported", "Browser", info.Browser)
				}
			}

			return writeJSON(cmd.OutOrStdout(), output)
		},
	}
}

func NewTargetsCommand(log logr.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "Lists the browser targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), log.WithName("targets"), func(ctx context.Context, s *devtools.Session) error {
				targets, err := s.Domains().Target().GetTargets(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), targets)
			})
		},
	}
}
