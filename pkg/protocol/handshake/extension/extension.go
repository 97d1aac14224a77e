// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package extension implements the TLS extension wire format and the
// extension bodies this engine negotiates, RFC 8446 Section 4.2.
package extension

import (
	"encoding/binary"
	"errors"
)

// Type is the two-byte extension type code, RFC 8446 Section 4.2 / the
// IANA TLS ExtensionType registry.
type Type uint16

// Type enums used by this engine.
const (
	TypeServerName            Type = 0
	TypeSupportedGroups       Type = 10
	TypeSignaturePointFormats Type = 11 // legacy ec_point_formats, parsed and ignored
	TypeSignatureAlgorithms   Type = 13
	TypeALPN                  Type = 16
	TypeEncryptThenMAC        Type = 22
	TypeExtendedMasterSecret  Type = 23
	TypeSessionTicket         Type = 35
	TypePreSharedKey          Type = 41
	TypeEarlyData             Type = 42
	TypeSupportedVersions     Type = 43
	TypeCookie                Type = 44
	TypePSKKeyExchangeModes   Type = 45
	TypeKeyShare              Type = 51
	TypeRenegotiationInfo     Type = 0xff01
	TypeHeartbeat             Type = 15
)

// Extension is one TLS extension, RFC 8446 Section 4.2.
type Extension interface {
	Type() Type
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

const headerLen = 4 // type:u16 | length:u16

// Marshal encodes a list of extensions into the extensions vector
// (including its own 2-byte length prefix), RFC 8446 Section 4.2.
func Marshal(exts []Extension) ([]byte, error) {
	var body []byte
	for _, e := range exts {
		raw, err := e.Marshal()
		if err != nil {
			return nil, err
		}
		header := make([]byte, headerLen)
		binary.BigEndian.PutUint16(header, uint16(e.Type()))
		binary.BigEndian.PutUint16(header[2:], uint16(len(raw)))
		body = append(body, header...)
		body = append(body, raw...)
	}
	out := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(out, uint16(len(body)))
	copy(out[2:], body)
	return out, nil
}

// Context tells Unmarshal which message the extensions vector came from,
// needed only because pre_shared_key (RFC 8446 Section 4.2.11) has a
// different body shape in ClientHello (identities+binders) than in
// ServerHello (a single selected-identity index).
type Context int

// Context enums
const (
	ContextOther Context = iota
	ContextClientHello
	ContextServerHello
)

// Unmarshal decodes an extensions vector (its own 2-byte length prefix
// included) into a list of Extension. Unknown extension types are skipped
// (RFC 8446 Section 4.2: "implementations MUST ignore unrecognized
// extensions").
func Unmarshal(data []byte, ctx Context) ([]Extension, error) { //nolint:cyclop
	if len(data) < 2 {
		return nil, errBufferTooSmall
	}
	vecLen := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < vecLen {
		return nil, errBufferTooSmall
	}
	data = data[:vecLen]

	var out []Extension
	for len(data) > 0 {
		if len(data) < headerLen {
			return nil, errBufferTooSmall
		}
		t := Type(binary.BigEndian.Uint16(data))
		l := int(binary.BigEndian.Uint16(data[2:]))
		data = data[headerLen:]
		if len(data) < l {
			return nil, errBufferTooSmall
		}
		body := data[:l]
		data = data[l:]

		ext, ok := newByType(t, ctx)
		if !ok {
			continue
		}
		if err := ext.Unmarshal(body); err != nil {
			return nil, err
		}
		out = append(out, ext)
	}
	return out, nil
}

func newByType(t Type, ctx Context) (Extension, bool) { //nolint:cyclop
	switch t {
	case TypeServerName:
		return &ServerName{}, true
	case TypeSupportedGroups:
		return &SupportedGroups{}, true
	case TypeSignatureAlgorithms:
		return &SignatureAlgorithms{}, true
	case TypeALPN:
		return &ALPN{}, true
	case TypeEncryptThenMAC:
		return &EncryptThenMAC{}, true
	case TypeExtendedMasterSecret:
		return &UseExtendedMasterSecret{}, true
	case TypePreSharedKey:
		return &PreSharedKey{fromServerHello: ctx == ContextServerHello}, true
	case TypeSupportedVersions:
		return &SupportedVersions{fromServerHello: ctx == ContextServerHello}, true
	case TypeCookie:
		return &Cookie{}, true
	case TypePSKKeyExchangeModes:
		return &PSKKeyExchangeModes{}, true
	case TypeKeyShare:
		return &KeyShare{fromServerHello: ctx == ContextServerHello}, true
	case TypeRenegotiationInfo:
		return &RenegotiationInfo{}, true
	case TypeHeartbeat:
		return &Heartbeat{}, true
	default:
		return nil, false
	}
}

var errBufferTooSmall = errors.New("extension: buffer too small")
