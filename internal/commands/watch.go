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
	"slices"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/microsoft/cdpsession/internal/devtools"
	"github.com/microsoft/cdpsession/internal/devtools/protocol"
)

const watchPollInterval = 200 * time.Millisecond

var (
	watchEnableDomains []string
)

type watchedEvent struct {
	Method    string          `json:"method"`
	SessionID string          `json:"sessionId,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

func NewWatchCommand(log logr.Logger) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch [EVENT...]",
		Short: "Prints DevTools events as they arrive, one JSON object per line",
		Long: `Prints DevTools events as they arrive, one JSON object per line.

	EVENT is a fully qualified event name, for example Network.requestWillBeSent.
	If no events are given, every event is printed. The domains of the given events are enabled
	before watching starts; use --enable to enable additional domains.
	Watching continues until the command is interrupted or the browser detaches the session.`,
		RunE: watchEvents(log),
	}

	watchCmd.Flags().StringSliceVar(&watchEnableDomains, "enable", nil, "Additional DevTools domains to enable, for example Network,Log.")

	return watchCmd
}

func watchEvents(log logr.Logger) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log := log.WithName("watch")

		type eventName struct{ domain, event string }
		var events []eventName
		toEnable := slices.Clone(watchEnableDomains)
		for _, arg := range args {
			domain, event, ok := protocol.SplitMethod(arg)
			if !ok {
				return fmt.Errorf("'%s' is not a valid DevTools event name, expected Domain.event", arg)
			}
			events = append(events, eventName{domain, event})
			toEnable = append(toEnable, domain)
		}
		slices.Sort(toEnable)
		toEnable = slices.Compact(toEnable)

		out := cmd.OutOrStdout()
		// Handlers are called one at a time, so writes to the output do not interleave.
		printEvent := func(ev protocol.Event) error {
			return writeJSONLine(out, watchedEvent{Method: ev.Method(), SessionID: ev.SessionID, Params: ev.Params})
		}

		return withSession(cmd.Context(), log, func(ctx context.Context, s *devtools.Session) error {
			if len(events) == 0 {
				s.OnEventReceived(printEvent)
			}
			for _, e := range events {
				s.Subscribe(e.domain, e.event, printEvent)
			}

			for _, domain := range toEnable {
				if _, err := s.SendCommand(ctx, domain+".enable", nil); err != nil {
					return fmt.Errorf("could not enable the %s domain: %w", domain, err)
				}
			}

			log.V(1).Info("Watching DevTools events", "Events", args, "EnabledDomains", toEnable)

			waitErr := wait.PollUntilContextCancel(ctx, watchPollInterval, false, func(_ context.Context) (bool, error) {
				return s.State() == devtools.StateClosed, nil
			})
			if waitErr != nil && (errors.Is(waitErr, context.Canceled) || errors.Is(waitErr, context.DeadlineExceeded)) {
				// Interrupted.
				return nil
			}
			if waitErr == nil {
				log.Info("The browser ended the DevTools session")
			}
			return waitErr
		})
	}
}
