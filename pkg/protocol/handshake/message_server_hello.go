// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"encoding/binary"

	"github.com/gotls/tlsengine/pkg/protocol"
	"github.com/gotls/tlsengine/pkg/protocol/handshake/extension"
	"github.com/zmap/zcrypto/tls"
)

// legacyCompressionMethodNull is the only compression method this engine
// ever sends or accepts, RFC 8446 Section 4.1.3 ("MUST be set to 0") /
// RFC 5246 Section 7.4.1.3 (compression is out of scope here, see
// SPEC_FULL.md's Non-goals).
const legacyCompressionMethodNull = 0

// MessageServerHello is sent in response to a ClientHello message when
// the server was able to find an acceptable set of algorithms. In TLS 1.3
// (RFC 8446 Section 4.1.3) a ServerHello whose Random equals the
// HelloRetryRequest sentinel is a HelloRetryRequest, not a second
// ServerHello.
//
// https://tools.ietf.org/html/rfc5246#section-7.4.1.3
type MessageServerHello struct {
	Version protocol.Version
	Random  Random

	SessionID []byte

	CipherSuiteID *uint16
	Extensions    []extension.Extension
}

const messageServerHelloVariableWidthStart = 2 + RandomLength

// Type returns the Handshake Type
func (m MessageServerHello) Type() Type {
	return TypeServerHello
}

// Marshal encodes the Handshake
func (m *MessageServerHello) Marshal() ([]byte, error) {
	if m.CipherSuiteID == nil {
		return nil, errCipherSuiteUnset
	}

	out := make([]byte, messageServerHelloVariableWidthStart)
	out[0] = m.Version.Major
	out[1] = m.Version.Minor

	rnd := m.Random.MarshalFixed()
	copy(out[2:], rnd[:])

	out = append(out, byte(len(m.SessionID)))
	out = append(out, m.SessionID...)

	out = append(out, []byte{0x00, 0x00}...)
	binary.BigEndian.PutUint16(out[len(out)-2:], *m.CipherSuiteID)

	out = append(out, legacyCompressionMethodNull)

	extensions, err := extension.Marshal(m.Extensions)
	if err != nil {
		return nil, err
	}

	return append(out, extensions...), nil
}

// Unmarshal populates the message from encoded data
func (m *MessageServerHello) Unmarshal(data []byte) error {
	if len(data) < 2+RandomLength {
		return errBufferTooSmall
	}

	m.Version.Major = data[0]
	m.Version.Minor = data[1]

	var random [RandomLength]byte
	copy(random[:], data[2:])
	m.Random.UnmarshalFixed(random)

	currOffset := messageServerHelloVariableWidthStart
	currOffset++
	if len(data) <= currOffset {
		return errBufferTooSmall
	}

	n := int(data[currOffset-1])
	if len(data) <= currOffset+n {
		return errBufferTooSmall
	}
	m.SessionID = append([]byte{}, data[currOffset:currOffset+n]...)
	currOffset += len(m.SessionID)

	if len(data) < currOffset+2 {
		return errBufferTooSmall
	}
	m.CipherSuiteID = new(uint16)
	*m.CipherSuiteID = binary.BigEndian.Uint16(data[currOffset:])
	currOffset += 2

	if len(data) <= currOffset {
		return errBufferTooSmall
	}
	if data[currOffset] != legacyCompressionMethodNull {
		return errInvalidCompressionMethod
	}
	currOffset++

	if len(data) <= currOffset {
		m.Extensions = []extension.Extension{}
		return nil
	}

	extensions, err := extension.Unmarshal(data[currOffset:], extension.ContextServerHello)
	if err != nil {
		return err
	}
	m.Extensions = extensions
	return nil
}

// MakeLog exports a zcrypto fingerprint-compatible view of this
// ServerHello, used by the connection-level handshake fingerprint export
// (handshake_log.go).
func (m *MessageServerHello) MakeLog() *tls.ServerHello {
	ret := &tls.ServerHello{}

	ret.Version = tls.TLSVersion((uint16(m.Version.Major) << 8) | uint16(m.Version.Minor))

	ret.Random = make([]byte, RandomLength)
	binary.BigEndian.PutUint32(ret.Random[:4], uint32(m.Random.GMTUnixTime.Unix()))
	copy(ret.Random[4:], m.Random.RandomBytes[:])

	ret.SessionID = make([]byte, len(m.SessionID))
	copy(ret.SessionID, m.SessionID)

	if m.CipherSuiteID != nil {
		ret.CipherSuite = tls.CipherSuiteID(*m.CipherSuiteID)
	}

	ret.CompressionMethod = legacyCompressionMethodNull

	for _, anyExt := range m.Extensions {
		switch e := anyExt.(type) {
		case *extension.ALPN:
			if len(e.ProtocolNameList) > 0 {
				ret.AlpnProtocol = e.ProtocolNameList[0]
			}
		case *extension.RenegotiationInfo:
			ret.SecureRenegotiation = true
		case *extension.UseExtendedMasterSecret:
			ret.ExtendedMasterSecret = true
		default:
			// TLS 1.3-only extensions (key_share, supported_versions,
			// pre_shared_key, ...) have no zcrypto ServerHello field to
			// populate; fingerprinting of those lives on the raw
			// ClientHello export instead.
		}
	}
	return ret
}
