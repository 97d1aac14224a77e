// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"github.com/gotls/tlsengine/pkg/crypto/ciphersuite"
)

// negotiateCipherSuite picks the first entry of local that offered also
// contains, preserving local's preference order (this engine negotiates as
// a server favoring its own configured order, and as a client simply
// offers its list for the server to pick from).
func negotiateCipherSuite(offered, local []ciphersuite.ID) (ciphersuite.Suite, error) {
	offeredSet := make(map[ciphersuite.ID]bool, len(offered))
	for _, id := range offered {
		offeredSet[id] = true
	}
	for _, id := range local {
		if !offeredSet[id] {
			continue
		}
		suite, ok := ciphersuite.ByID(id)
		if !ok {
			continue
		}
		return suite, nil
	}
	return ciphersuite.Suite{}, errNoSupportedCipherSuite
}

// suiteIsTLS13 reports whether id is drawn from the TLS 1.3 suite space,
// used to pick which ClientHello/ServerHello field set a negotiated ID
// implies before the full Suite lookup is available.
func suiteIsTLS13(id ciphersuite.ID) bool {
	suite, ok := ciphersuite.ByID(id)
	return ok && suite.IsTLS13
}
