// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"github.com/gotls/tlsengine/pkg/protocol/recordlayer"
)

// packet is one outbound unit of work for the writer: a record body plus
// whether it must be sealed under the current write key before it goes
// out, RFC 8446 Section 5.1 / RFC 5246 Section 6.2.1.
type packet struct {
	record        *recordlayer.RecordLayer
	shouldEncrypt bool
}
