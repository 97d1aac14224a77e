// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import "encoding/binary"

// MessageCertificateVerify carries a signature over the handshake
// transcript proving possession of the private key matching the most
// recently sent Certificate, RFC 5246 Section 7.4.8 / RFC 8446 Section
// 4.4.3.
type MessageCertificateVerify struct {
	Algorithm uint16
	Signature []byte
}

// Type returns the Handshake Type
func (m MessageCertificateVerify) Type() Type {
	return TypeCertificateVerify
}

// Marshal encodes the Handshake
func (m *MessageCertificateVerify) Marshal() ([]byte, error) {
	out := make([]byte, 4+len(m.Signature))
	binary.BigEndian.PutUint16(out, m.Algorithm)
	binary.BigEndian.PutUint16(out[2:], uint16(len(m.Signature)))
	copy(out[4:], m.Signature)
	return out, nil
}

// Unmarshal populates the Handshake from encoded data
func (m *MessageCertificateVerify) Unmarshal(data []byte) error {
	if len(data) < 4 {
		return errBufferTooSmall
	}
	m.Algorithm = binary.BigEndian.Uint16(data)
	sigLen := int(binary.BigEndian.Uint16(data[2:]))
	if len(data) < 4+sigLen {
		return errBufferTooSmall
	}
	m.Signature = append([]byte{}, data[4:4+sigLen]...)
	return nil
}
