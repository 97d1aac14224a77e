// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"encoding/binary"

	"github.com/gotls/tlsengine/pkg/protocol"
	"github.com/gotls/tlsengine/pkg/protocol/handshake/extension"
	"github.com/zmap/zcrypto/tls"
)

// MessageClientHello is the first message a client sends, RFC 5246
// Section 7.4.1.2 / RFC 8446 Section 4.1.2. The CipherSuiteIDs and
// Extensions lists carry both versions' negotiable parameters; which
// fields matter is decided by whichever supported_versions the client
// advertises.
type MessageClientHello struct {
	Version protocol.Version
	Random  Random

	SessionID []byte

	CipherSuiteIDs []uint16
	Extensions     []extension.Extension
}

// Type returns the Handshake Type
func (m MessageClientHello) Type() Type {
	return TypeClientHello
}

// Marshal encodes the Handshake
func (m *MessageClientHello) Marshal() ([]byte, error) {
	out := make([]byte, 2+RandomLength)
	out[0] = m.Version.Major
	out[1] = m.Version.Minor

	rnd := m.Random.MarshalFixed()
	copy(out[2:], rnd[:])

	out = append(out, byte(len(m.SessionID)))
	out = append(out, m.SessionID...)

	suites := make([]byte, 2+2*len(m.CipherSuiteIDs))
	binary.BigEndian.PutUint16(suites, uint16(2*len(m.CipherSuiteIDs)))
	for i, id := range m.CipherSuiteIDs {
		binary.BigEndian.PutUint16(suites[2+2*i:], id)
	}
	out = append(out, suites...)

	out = append(out, byte(1), legacyCompressionMethodNull)

	extensions, err := extension.Marshal(m.Extensions)
	if err != nil {
		return nil, err
	}
	return append(out, extensions...), nil
}

// Unmarshal populates the Handshake from encoded data
func (m *MessageClientHello) Unmarshal(data []byte) error { //nolint:cyclop
	if len(data) < 2+RandomLength {
		return errBufferTooSmall
	}
	m.Version.Major = data[0]
	m.Version.Minor = data[1]

	var random [RandomLength + 4]byte
	copy(random[:], data[2:2+RandomLength])
	m.Random.UnmarshalFixed(random)

	offset := 2 + RandomLength
	if len(data) <= offset {
		return errBufferTooSmall
	}
	sessionIDLen := int(data[offset])
	offset++
	if len(data) < offset+sessionIDLen {
		return errBufferTooSmall
	}
	m.SessionID = append([]byte{}, data[offset:offset+sessionIDLen]...)
	offset += sessionIDLen

	if len(data) < offset+2 {
		return errBufferTooSmall
	}
	suitesLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if len(data) < offset+suitesLen || suitesLen%2 != 0 {
		return errBufferTooSmall
	}
	m.CipherSuiteIDs = make([]uint16, suitesLen/2)
	for i := range m.CipherSuiteIDs {
		m.CipherSuiteIDs[i] = binary.BigEndian.Uint16(data[offset+2*i:])
	}
	offset += suitesLen

	if len(data) <= offset {
		return errBufferTooSmall
	}
	compressionLen := int(data[offset])
	offset++
	if len(data) < offset+compressionLen {
		return errBufferTooSmall
	}
	found := false
	for _, c := range data[offset : offset+compressionLen] {
		if c == legacyCompressionMethodNull {
			found = true
		}
	}
	if !found {
		return errInvalidCompressionMethod
	}
	offset += compressionLen

	if len(data) <= offset {
		m.Extensions = []extension.Extension{}
		return nil
	}
	extensions, err := extension.Unmarshal(data[offset:], extension.ContextClientHello)
	if err != nil {
		return err
	}
	m.Extensions = extensions
	return nil
}

// MakeLog exports a zcrypto fingerprint-compatible view of this
// ClientHello, used by the connection-level handshake fingerprint export
// (handshake_log.go).
func (m *MessageClientHello) MakeLog() *tls.ClientHello {
	ret := &tls.ClientHello{}
	ret.Version = tls.TLSVersion((uint16(m.Version.Major) << 8) | uint16(m.Version.Minor))

	ret.Random = make([]byte, RandomLength+4)
	binary.BigEndian.PutUint32(ret.Random[:4], uint32(m.Random.GMTUnixTime.Unix()))
	copy(ret.Random[4:], m.Random.RandomBytes[:])

	ret.SessionID = make([]byte, len(m.SessionID))
	copy(ret.SessionID, m.SessionID)

	ret.CipherSuites = make([]tls.CipherSuiteID, len(m.CipherSuiteIDs))
	for i, id := range m.CipherSuiteIDs {
		ret.CipherSuites[i] = tls.CipherSuiteID(id)
	}
	ret.CompressionMethods = []byte{legacyCompressionMethodNull}

	for _, anyExt := range m.Extensions {
		switch e := anyExt.(type) {
		case *extension.ServerName:
			ret.ServerName = e.HostName
		case *extension.ALPN:
			ret.AlpnProtocols = append([]string{}, e.ProtocolNameList...)
		case *extension.RenegotiationInfo:
			ret.SecureRenegotiation = true
		case *extension.UseExtendedMasterSecret:
			ret.ExtendedMasterSecret = true
		default:
			// TLS 1.3-only extensions have no zcrypto ClientHello field.
		}
	}
	return ret
}
