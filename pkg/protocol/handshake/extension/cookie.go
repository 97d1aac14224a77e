// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// Cookie is the cookie extension, RFC 8446 Section 4.2.2. Carried in a
// HelloRetryRequest and echoed verbatim in the client's second
// ClientHello; this engine treats the contents as opaque.
type Cookie struct {
	Cookie []byte
}

// Type returns the extension Type
func (c Cookie) Type() Type { return TypeCookie }

// Marshal encodes the Cookie extension
func (c *Cookie) Marshal() ([]byte, error) {
	out := make([]byte, 2+len(c.Cookie))
	binary.BigEndian.PutUint16(out, uint16(len(c.Cookie)))
	copy(out[2:], c.Cookie)
	return out, nil
}

// Unmarshal populates the Cookie extension from encoded data
func (c *Cookie) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return errBufferTooSmall
	}
	l := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < l {
		return errBufferTooSmall
	}
	c.Cookie = data[:l]
	return nil
}

// PSKKeyExchangeMode is a psk_key_exchange_modes mode value, RFC 8446
// Section 4.2.9.
type PSKKeyExchangeMode uint8

// PSKKeyExchangeMode enums
const (
	PSKKE             PSKKeyExchangeMode = 0
	PSKDHEKE          PSKKeyExchangeMode = 1
)

// PSKKeyExchangeModes is the psk_key_exchange_modes extension, RFC 8446
// Section 4.2.9. This engine only ever offers/accepts PSKDHEKE: pure PSK
// without a fresh (EC)DHE contribution gives up forward secrecy on
// resumption, so psk_ke is declared in the registry but never selected.
type PSKKeyExchangeModes struct {
	Modes []PSKKeyExchangeMode
}

// Type returns the extension Type
func (p PSKKeyExchangeModes) Type() Type { return TypePSKKeyExchangeModes }

// Marshal encodes the PSKKeyExchangeModes extension
func (p *PSKKeyExchangeModes) Marshal() ([]byte, error) {
	out := make([]byte, 1+len(p.Modes))
	out[0] = byte(len(p.Modes))
	for i, m := range p.Modes {
		out[1+i] = byte(m)
	}
	return out, nil
}

// Unmarshal populates the PSKKeyExchangeModes extension from encoded data
func (p *PSKKeyExchangeModes) Unmarshal(data []byte) error {
	if len(data) < 1 {
		return errBufferTooSmall
	}
	l := int(data[0])
	data = data[1:]
	if len(data) < l {
		return errBufferTooSmall
	}
	for _, m := range data[:l] {
		p.Modes = append(p.Modes, PSKKeyExchangeMode(m))
	}
	return nil
}

// HeartbeatMode is the heartbeat extension's mode value, RFC 6520 Section 2.
type HeartbeatMode uint8

// HeartbeatMode enums
const (
	HeartbeatPeerAllowedToSend    HeartbeatMode = 1
	HeartbeatPeerNotAllowedToSend HeartbeatMode = 2
)

// Heartbeat is the heartbeat extension, RFC 6520 Section 2. Its presence
// and mode negotiate whether this engine's peer may originate heartbeat
// requests; see spec.md's post-handshake heartbeat module for the
// both-sides-required gating decision recorded in DESIGN.md.
type Heartbeat struct {
	Mode HeartbeatMode
}

// Type returns the extension Type
func (h Heartbeat) Type() Type { return TypeHeartbeat }

// Marshal encodes the Heartbeat extension
func (h *Heartbeat) Marshal() ([]byte, error) { return []byte{byte(h.Mode)}, nil }

// Unmarshal populates the Heartbeat extension from encoded data
func (h *Heartbeat) Unmarshal(data []byte) error {
	if len(data) < 1 {
		return errBufferTooSmall
	}
	h.Mode = HeartbeatMode(data[0])
	return nil
}
