// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

// MessageEndOfEarlyData signals the client has finished sending 0-RTT
// early data, RFC 8446 Section 4.5. This engine always rejects early
// data (spec.md's 0-RTT open question), so it only ever unmarshals this
// message to recognize and reject it, never negotiates sending one.
type MessageEndOfEarlyData struct{}

// Type returns the Handshake Type
func (m MessageEndOfEarlyData) Type() Type {
	return TypeEndOfEarlyData
}

// Marshal encodes the Handshake
func (m *MessageEndOfEarlyData) Marshal() ([]byte, error) {
	return []byte{}, nil
}

// Unmarshal populates the Handshake from encoded data
func (m *MessageEndOfEarlyData) Unmarshal(data []byte) error {
	if len(data) != 0 {
		return errInvalidMessageLength
	}
	return nil
}
