/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package domains

import (
	"errors"
	"fmt"
	"slices"

	"github.com/microsoft/cdpsession/internal/devtools/protocol"
)

// How many major versions a browser may be ahead of the newest matching domain set.
const DefaultVersionTolerance = 5

var ErrUnsupportedVersion = errors.New("no DevTools domain set matches the browser version")

// Factory builds the domain facades for a session.
type Factory func(cmd protocol.Commander) Domains

type Entry struct {
	Version int
	New     Factory
}

// Registry is an immutable list of domain set factories, ordered from the newest version to the oldest.
type Registry struct {
	entries []Entry
}

func NewRegistry(entries ...Entry) *Registry {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		return b.Version - a.Version
	})
	return &Registry{entries: sorted}
}

// Returns the registry of all domain sets compiled into this module.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Entry{Version: 86, New: NewV86},
		Entry{Version: 85, New: NewV85},
		Entry{Version: 84, New: NewV84},
	)
}

func (r *Registry) Versions() []int {
	versions := make([]int, len(r.entries))
	for i, e := range r.entries {
		versions[i] = e.Version
	}
	return versions
}

// Selects the newest entry whose version is not greater than the reported browser version
// and lags it by at most tolerance major versions.
func (r *Registry) Resolve(reportedVersion, tolerance int) (Entry, error) {
	if tolerance < 0 {
		tolerance = 0
	}

	for _, e := range r.entries {
		if e.Version > reportedVersion {
			continue
		}
		if reportedVersion-e.Version <= tolerance {
			return e, nil
		}
		// Entries are sorted newest first, so every remaining one lags even further behind.
		break
	}

	return Entry{}, fmt.Errorf("%w: browser version %d, supported versions %v, tolerance %d",
		ErrUnsupportedVersion, reportedVersion, r.Versions(), tolerance)
}
