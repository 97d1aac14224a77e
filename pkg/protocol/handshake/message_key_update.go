// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

// KeyUpdateRequest tells the peer whether it must itself send a KeyUpdate
// in response, RFC 8446 Section 4.6.3.
type KeyUpdateRequest uint8

// KeyUpdateRequest enums
const (
	KeyUpdateNotRequested KeyUpdateRequest = 0
	KeyUpdateRequested    KeyUpdateRequest = 1
)

// MessageKeyUpdate asks the peer to update its sending traffic key
// (spec.md's post-handshake KeyUpdate operation), RFC 8446 Section 4.6.3.
// TLS 1.2 has no equivalent; this message only appears once a TLS 1.3
// connection is established.
type MessageKeyUpdate struct {
	RequestUpdate KeyUpdateRequest
}

// Type returns the Handshake Type
func (m MessageKeyUpdate) Type() Type {
	return TypeKeyUpdate
}

// Marshal encodes the Handshake
func (m *MessageKeyUpdate) Marshal() ([]byte, error) {
	return []byte{byte(m.RequestUpdate)}, nil
}

// Unmarshal populates the Handshake from encoded data
func (m *MessageKeyUpdate) Unmarshal(data []byte) error {
	if len(data) != 1 {
		return errInvalidMessageLength
	}
	if data[0] != byte(KeyUpdateNotRequested) && data[0] != byte(KeyUpdateRequested) {
		return errInvalidKeyUpdateRequest
	}
	m.RequestUpdate = KeyUpdateRequest(data[0])
	return nil
}
