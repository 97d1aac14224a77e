// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"encoding/binary"

	"github.com/gotls/tlsengine/pkg/protocol/handshake/extension"
	"github.com/zmap/zcrypto/tls"
)

// CertificateEntry is one entry of a TLS 1.3 Certificate message's
// certificate_list, RFC 8446 Section 4.4.2. TLS 1.2 certificates carry no
// per-entry extensions; Extensions is always empty in that case.
type CertificateEntry struct {
	CertData   []byte
	Extensions []extension.Extension
}

// MessageCertificate carries the sender's certificate chain. Path
// validation (chain building, trust anchors, revocation) is not performed
// here; it is the job of the CertificateVerifier collaborator the caller
// supplies.
//
// https://tools.ietf.org/html/rfc5246#section-7.4.2
// https://tools.ietf.org/html/rfc8446#section-4.4.2
type MessageCertificate struct {
	// CertificateRequestContext is empty except when this Certificate is
	// sent in response to a post-handshake CertificateRequest, RFC 8446
	// Section 4.4.2.
	CertificateRequestContext []byte
	Certificates              []CertificateEntry
	tls13                     bool
}

// NewMessageCertificate constructs a MessageCertificate that will
// marshal/unmarshal using the TLS 1.3 wire shape (request context +
// per-entry extensions) when tls13 is true, or the plain TLS 1.2 shape
// otherwise.
func NewMessageCertificate(tls13 bool) *MessageCertificate {
	return &MessageCertificate{tls13: tls13}
}

// ParseCertificate reparses a Handshake's RawBody as a Certificate
// message using the wire shape the negotiated version implies.
// Handshake.Unmarshal leaves Message nil for a Certificate, so a driver
// of either version parses it with this.
func ParseCertificate(body []byte, tls13 bool) (*MessageCertificate, error) {
	m := NewMessageCertificate(tls13)
	if err := m.Unmarshal(body); err != nil {
		return nil, err
	}
	return m, nil
}

// Type returns the Handshake Type
func (m MessageCertificate) Type() Type {
	return TypeCertificate
}

// Marshal encodes the Handshake
func (m *MessageCertificate) Marshal() ([]byte, error) {
	var out []byte
	if m.tls13 {
		out = append(out, byte(len(m.CertificateRequestContext)))
		out = append(out, m.CertificateRequestContext...)
	}

	var list []byte
	for _, c := range m.Certificates {
		entry := make([]byte, 3+len(c.CertData))
		putUint24(entry, uint32(len(c.CertData)))
		copy(entry[3:], c.CertData)
		list = append(list, entry...)
		if m.tls13 {
			extRaw, err := extension.Marshal(c.Extensions)
			if err != nil {
				return nil, err
			}
			list = append(list, extRaw...)
		}
	}

	listLen := make([]byte, 3)
	putUint24(listLen, uint32(len(list)))
	out = append(out, listLen...)
	return append(out, list...), nil
}

// Unmarshal populates the Handshake from encoded data
func (m *MessageCertificate) Unmarshal(data []byte) error { //nolint:cyclop
	offset := 0
	if m.tls13 {
		if len(data) < 1 {
			return errBufferTooSmall
		}
		n := int(data[0])
		offset++
		if len(data) < offset+n {
			return errBufferTooSmall
		}
		m.CertificateRequestContext = append([]byte{}, data[offset:offset+n]...)
		offset += n
	}

	if len(data) < offset+3 {
		return errBufferTooSmall
	}
	listLen := int(getUint24(data[offset:]))
	offset += 3
	if len(data) < offset+listLen {
		return errBufferTooSmall
	}
	end := offset + listLen
	m.Certificates = nil
	for offset < end {
		if end-offset < 3 {
			return errBufferTooSmall
		}
		certLen := int(getUint24(data[offset:]))
		offset += 3
		if end-offset < certLen {
			return errBufferTooSmall
		}
		entry := CertificateEntry{CertData: append([]byte{}, data[offset:offset+certLen]...)}
		offset += certLen

		if m.tls13 {
			if end-offset < 2 {
				return errBufferTooSmall
			}
			extLen := int(binary.BigEndian.Uint16(data[offset:]))
			if end-offset < 2+extLen {
				return errBufferTooSmall
			}
			exts, err := extension.Unmarshal(data[offset:offset+2+extLen], extension.ContextOther)
			if err != nil {
				return err
			}
			entry.Extensions = exts
			offset += 2 + extLen
		}
		m.Certificates = append(m.Certificates, entry)
	}
	return nil
}

// MakeLog exports a zcrypto fingerprint-compatible view of the raw
// certificate chain (path validation is not this package's job; the
// CertificateVerifier collaborator already ran by the time a log is made).
func (m *MessageCertificate) MakeLog() *tls.Certificates {
	ret := &tls.Certificates{}
	for _, entry := range m.Certificates {
		ret.Certificate = append(ret.Certificate, append([]byte{}, entry.CertData...))
	}
	return ret
}
