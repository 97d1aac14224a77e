// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package protocol

import "encoding/binary"

// HeartbeatMessageType distinguishes a request from a response within the
// Heartbeat content type, RFC 6520 Section 3.
type HeartbeatMessageType byte

// HeartbeatMessageType enums
const (
	HeartbeatMessageTypeRequest  HeartbeatMessageType = 1
	HeartbeatMessageTypeResponse HeartbeatMessageType = 2
)

const heartbeatMinPaddingLength = 16

// Heartbeat carries a heartbeat_request or heartbeat_response, RFC 6520.
// Wire format: type:u8 | payload_length:u16 | payload | padding.
type Heartbeat struct {
	MessageType HeartbeatMessageType
	Payload     []byte
	Padding     []byte
}

// ContentType returns the ContentType of this content
func (h Heartbeat) ContentType() ContentType { return ContentTypeHeartbeat }

// Marshal encodes the Heartbeat
func (h *Heartbeat) Marshal() ([]byte, error) {
	if len(h.Padding) < heartbeatMinPaddingLength {
		return nil, errHeartbeatPaddingTooShort
	}
	out := make([]byte, 1+2+len(h.Payload)+len(h.Padding))
	out[0] = byte(h.MessageType)
	binary.BigEndian.PutUint16(out[1:], uint16(len(h.Payload)))
	copy(out[3:], h.Payload)
	copy(out[3+len(h.Payload):], h.Padding)
	return out, nil
}

// Unmarshal populates the Heartbeat from encoded data
func (h *Heartbeat) Unmarshal(data []byte) error {
	if len(data) < 3 {
		return errBufferTooSmall
	}
	h.MessageType = HeartbeatMessageType(data[0])
	payloadLen := int(binary.BigEndian.Uint16(data[1:3]))
	if len(data) < 3+payloadLen+heartbeatMinPaddingLength {
		// RFC 6520 Section 4: a HeartbeatRequest with a payload_length larger
		// than what fits (with at least 16 bytes of padding remaining) must
		// be silently discarded by the receiver, not treated as a decode
		// error that tears down the connection.
		return errHeartbeatMalformedLength
	}
	h.Payload = append([]byte{}, data[3:3+payloadLen]...)
	h.Padding = append([]byte{}, data[3+payloadLen:]...)
	return nil
}
