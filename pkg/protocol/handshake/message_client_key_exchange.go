// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

// MessageClientKeyExchange carries the client's ephemeral ECDHE public
// key for TLS 1.2 (RFC 8422 Section 5.7). TLS 1.3 carries the equivalent
// information in the ClientHello's key_share extension instead.
type MessageClientKeyExchange struct {
	PublicKey []byte
}

// Type returns the Handshake Type
func (m MessageClientKeyExchange) Type() Type {
	return TypeClientKeyExchange
}

// Marshal encodes the Handshake
func (m *MessageClientKeyExchange) Marshal() ([]byte, error) {
	return append([]byte{byte(len(m.PublicKey))}, m.PublicKey...), nil
}

// Unmarshal populates the Handshake from encoded data
func (m *MessageClientKeyExchange) Unmarshal(data []byte) error {
	if len(data) < 1 {
		return errBufferTooSmall
	}
	n := int(data[0])
	if len(data) < 1+n {
		return errBufferTooSmall
	}
	m.PublicKey = append([]byte{}, data[1:1+n]...)
	return nil
}
