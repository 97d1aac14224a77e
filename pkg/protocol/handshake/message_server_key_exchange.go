// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import "encoding/binary"

// curveTypeNamedCurve is the only ECCurveType this engine offers or
// accepts, RFC 8422 Section 5.4.
const curveTypeNamedCurve = 3

// MessageServerKeyExchange carries the server's ephemeral ECDHE public
// key and a signature over it, for TLS 1.2 ECDHE cipher suites only (RFC
// 8422 Section 5.4). TLS 1.3 carries the equivalent information in the
// key_share extension instead.
type MessageServerKeyExchange struct {
	NamedCurve  uint16
	PublicKey   []byte
	Algorithm   uint16 // signature_algorithms scheme id, extension.SignatureAlgorithms
	Signature   []byte
}

// Type returns the Handshake Type
func (m MessageServerKeyExchange) Type() Type {
	return TypeServerKeyExchange
}

// Marshal encodes the Handshake
func (m *MessageServerKeyExchange) Marshal() ([]byte, error) {
	out := []byte{curveTypeNamedCurve, 0, 0, byte(len(m.PublicKey))}
	binary.BigEndian.PutUint16(out[1:], m.NamedCurve)
	out = append(out, m.PublicKey...)

	sig := make([]byte, 2+2+len(m.Signature))
	binary.BigEndian.PutUint16(sig, m.Algorithm)
	binary.BigEndian.PutUint16(sig[2:], uint16(len(m.Signature)))
	copy(sig[4:], m.Signature)
	return append(out, sig...), nil
}

// Unmarshal populates the Handshake from encoded data
func (m *MessageServerKeyExchange) Unmarshal(data []byte) error {
	if len(data) < 4 {
		return errBufferTooSmall
	}
	if data[0] != curveTypeNamedCurve {
		return errUnsupportedCurveType
	}
	m.NamedCurve = binary.BigEndian.Uint16(data[1:])
	pubLen := int(data[3])
	if len(data) < 4+pubLen {
		return errBufferTooSmall
	}
	m.PublicKey = append([]byte{}, data[4:4+pubLen]...)
	offset := 4 + pubLen

	if len(data) < offset+4 {
		return errBufferTooSmall
	}
	m.Algorithm = binary.BigEndian.Uint16(data[offset:])
	sigLen := int(binary.BigEndian.Uint16(data[offset+2:]))
	offset += 4
	if len(data) < offset+sigLen {
		return errBufferTooSmall
	}
	m.Signature = append([]byte{}, data[offset:offset+sigLen]...)
	return nil
}
