// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"encoding/binary"

	"github.com/gotls/tlsengine/pkg/protocol/handshake/extension"
)

// clientCertTypeECDSASign / clientCertTypeRSASign are the only
// ClientCertificateType values this engine advertises in a TLS 1.2
// CertificateRequest, RFC 5246 Section 7.4.4.
const (
	clientCertTypeRSASign   = 1
	clientCertTypeECDSASign = 64
)

// MessageCertificateRequest asks the peer for a client certificate, RFC
// 5246 Section 7.4.4 / RFC 8446 Section 4.3.2. The TLS 1.3 shape
// (CertificateRequestContext plus an extensions vector, signature
// algorithms carried as an extension) and the TLS 1.2 shape (a
// certificate-type list plus a flat signature_algorithms vector, no
// context) are both supported via the tls13 flag threaded in by the
// handshake driver that knows the negotiated version.
type MessageCertificateRequest struct {
	CertificateRequestContext []byte
	SignatureSchemes          []uint16
	Extensions                []extension.Extension
	tls13                     bool
}

// NewMessageCertificateRequest selects the wire shape this message will
// use to Marshal/Unmarshal.
func NewMessageCertificateRequest(tls13 bool) *MessageCertificateRequest {
	return &MessageCertificateRequest{tls13: tls13}
}

// ParseCertificateRequest reparses a Handshake's RawBody as a
// CertificateRequest using the wire shape the negotiated version
// implies, for the same reason ParseCertificate exists.
func ParseCertificateRequest(body []byte, tls13 bool) (*MessageCertificateRequest, error) {
	m := NewMessageCertificateRequest(tls13)
	if err := m.Unmarshal(body); err != nil {
		return nil, err
	}
	return m, nil
}

// Type returns the Handshake Type
func (m MessageCertificateRequest) Type() Type {
	return TypeCertificateRequest
}

// Marshal encodes the Handshake
func (m *MessageCertificateRequest) Marshal() ([]byte, error) {
	if m.tls13 {
		out := []byte{byte(len(m.CertificateRequestContext))}
		out = append(out, m.CertificateRequestContext...)
		extRaw, err := extension.Marshal(m.Extensions)
		if err != nil {
			return nil, err
		}
		return append(out, extRaw...), nil
	}

	certTypes := []byte{2, clientCertTypeRSASign, clientCertTypeECDSASign}
	schemes := make([]byte, 2+2*len(m.SignatureSchemes))
	binary.BigEndian.PutUint16(schemes, uint16(2*len(m.SignatureSchemes)))
	for i, s := range m.SignatureSchemes {
		binary.BigEndian.PutUint16(schemes[2+2*i:], s)
	}
	out := append(certTypes, schemes...)
	return append(out, 0x00, 0x00), nil // empty certificate_authorities
}

// Unmarshal populates the Handshake from encoded data
func (m *MessageCertificateRequest) Unmarshal(data []byte) error {
	if m.tls13 {
		return m.unmarshalTLS13(data)
	}
	return m.unmarshalTLS12(data)
}

func (m *MessageCertificateRequest) unmarshalTLS13(data []byte) error {
	if len(data) < 1 {
		return errBufferTooSmall
	}
	n := int(data[0])
	if len(data) < 1+n {
		return errBufferTooSmall
	}
	m.CertificateRequestContext = append([]byte{}, data[1:1+n]...)
	exts, err := extension.Unmarshal(data[1+n:], extension.ContextOther)
	if err != nil {
		return err
	}
	m.Extensions = exts
	for _, e := range exts {
		if sa, ok := e.(*extension.SignatureAlgorithms); ok {
			m.SignatureSchemes = sa.Schemes
		}
	}
	return nil
}

func (m *MessageCertificateRequest) unmarshalTLS12(data []byte) error {
	if len(data) < 1 {
		return errBufferTooSmall
	}
	certTypeLen := int(data[0])
	offset := 1 + certTypeLen
	if len(data) < offset+2 {
		return errBufferTooSmall
	}
	schemesLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if len(data) < offset+schemesLen || schemesLen%2 != 0 {
		return errBufferTooSmall
	}
	m.SignatureSchemes = make([]uint16, schemesLen/2)
	for i := range m.SignatureSchemes {
		m.SignatureSchemes[i] = binary.BigEndian.Uint16(data[offset+2*i:])
	}
	offset += schemesLen
	if len(data) < offset+2 {
		return errBufferTooSmall
	}
	return nil
}
