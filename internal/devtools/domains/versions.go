/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package domains

import "github.com/microsoft/cdpsession/internal/devtools/protocol"

// Chrome 84 predates userAgentMetadata (User-Agent Client Hints) in Network.setUserAgentOverride.
func NewV84(cmd protocol.Commander) Domains {
	return newDomainSet(84, cmd, protocolFeatures{})
}

func NewV85(cmd protocol.Commander) Domains {
	return newDomainSet(85, cmd, protocolFeatures{userAgentMetadata: true})
}

func NewV86(cmd protocol.Commander) Domains {
	return newDomainSet(86, cmd, protocolFeatures{userAgentMetadata: true})
}
