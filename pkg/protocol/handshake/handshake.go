// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package handshake implements the TLS Handshake protocol content type and
// every handshake message variant named in RFC 5246 Section 7 (TLS 1.2)
// and RFC 8446 Section 4 (TLS 1.3).
package handshake

import (
	"encoding/binary"

	"github.com/gotls/tlsengine/pkg/protocol"
)

// Type is the handshake message type, RFC 8446 Section 4.
type Type uint8

// Type enums
const (
	TypeClientHello         Type = 1
	TypeServerHello         Type = 2
	TypeNewSessionTicket    Type = 4
	TypeEndOfEarlyData      Type = 5
	TypeEncryptedExtensions Type = 8
	TypeCertificate         Type = 11
	TypeServerKeyExchange   Type = 12
	TypeCertificateRequest  Type = 13
	TypeServerHelloDone     Type = 14
	TypeCertificateVerify   Type = 15
	TypeClientKeyExchange   Type = 16
	TypeFinished            Type = 20
	TypeKeyUpdate           Type = 24
	TypeMessageHash         Type = 254
)

func (t Type) String() string {
	switch t {
	case TypeClientHello:
		return "ClientHello"
	case TypeServerHello:
		return "ServerHello"
	case TypeNewSessionTicket:
		return "NewSessionTicket"
	case TypeEndOfEarlyData:
		return "EndOfEarlyData"
	case TypeEncryptedExtensions:
		return "EncryptedExtensions"
	case TypeCertificate:
		return "Certificate"
	case TypeServerKeyExchange:
		return "ServerKeyExchange"
	case TypeCertificateRequest:
		return "CertificateRequest"
	case TypeServerHelloDone:
		return "ServerHelloDone"
	case TypeCertificateVerify:
		return "CertificateVerify"
	case TypeClientKeyExchange:
		return "ClientKeyExchange"
	case TypeFinished:
		return "Finished"
	case TypeKeyUpdate:
		return "KeyUpdate"
	case TypeMessageHash:
		return "MessageHash"
	default:
		return "Unknown MessageType"
	}
}

// Message is a handshake message, defined in RFC 8446 Section 4
type Message interface {
	Type() Type
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// Header is the handshake message header, RFC 5246 Section 7.4 /
// RFC 8446 Section 4: msg_type:u8 | length:u24.
type Header struct {
	Type   Type
	Length uint32
}

// Size returns the number of bytes a marshaled Header occupies.
func (h Header) Size() int { return 4 }

// Marshal encodes the Header
func (h *Header) Marshal() ([]byte, error) {
	out := make([]byte, 4)
	out[0] = byte(h.Type)
	putUint24(out[1:], h.Length)
	return out, nil
}

// Unmarshal populates the Header from encoded data
func (h *Header) Unmarshal(data []byte) error {
	if len(data) < 4 {
		return errBufferTooSmall
	}
	h.Type = Type(data[0])
	h.Length = getUint24(data[1:])
	return nil
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func getUint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// Handshake is a record layer Content carrying exactly one handshake
// message. It is also what feeds the transcript hash: the raw bytes
// written here (header included) are what Derive-Secret/PRF hash over.
type Handshake struct {
	Header  Header
	Message Message

	// RawBody is the message body Unmarshal last parsed, kept around
	// because Certificate and CertificateRequest have two different wire
	// shapes (TLS 1.2 vs TLS 1.3) that this type cannot tell apart on its
	// own; Unmarshal leaves Message nil for those two. A handshake driver
	// that knows the negotiated version parses them from RawBody via
	// ParseCertificate/ParseCertificateRequest.
	RawBody []byte
}

// ContentType returns the ContentType of this content
func (h Handshake) ContentType() protocol.ContentType { return protocol.ContentTypeHandshake }

// Marshal encodes the Handshake
func (h *Handshake) Marshal() ([]byte, error) {
	if h.Message == nil {
		return nil, errMessageUnset
	}
	body, err := h.Message.Marshal()
	if err != nil {
		return nil, err
	}
	h.Header.Type = h.Message.Type()
	h.Header.Length = uint32(len(body))
	headerRaw, err := h.Header.Marshal()
	if err != nil {
		return nil, err
	}
	return append(headerRaw, body...), nil
}

// Unmarshal populates the Handshake from encoded data
func (h *Handshake) Unmarshal(data []byte) error {
	if err := h.Header.Unmarshal(data); err != nil {
		return err
	}
	if uint32(len(data)-h.Header.Size()) < h.Header.Length {
		return errBufferTooSmall
	}
	body := data[h.Header.Size() : h.Header.Size()+int(h.Header.Length)]
	h.RawBody = append([]byte{}, body...)

	// Certificate and CertificateRequest have two incompatible wire
	// shapes (TLS 1.2 vs TLS 1.3) that only the handshake driver, which
	// knows the negotiated version, can tell apart. Leave Message nil for
	// those two and let the driver reparse RawBody via ParseCertificate/
	// ParseCertificateRequest instead of guessing here.
	if h.Header.Type == TypeCertificate || h.Header.Type == TypeCertificateRequest {
		h.Message = nil
		return nil
	}

	msg, err := newMessage(h.Header.Type)
	if err != nil {
		return err
	}
	if err := msg.Unmarshal(body); err != nil {
		return err
	}
	h.Message = msg
	return nil
}

func newMessage(t Type) (Message, error) { //nolint:cyclop
	switch t {
	case TypeClientHello:
		return &MessageClientHello{}, nil
	case TypeServerHello:
		return &MessageServerHello{}, nil
	case TypeNewSessionTicket:
		return &MessageNewSessionTicket{}, nil
	case TypeEndOfEarlyData:
		return &MessageEndOfEarlyData{}, nil
	case TypeEncryptedExtensions:
		return &MessageEncryptedExtensions{}, nil
	case TypeCertificate:
		return &MessageCertificate{}, nil
	case TypeServerKeyExchange:
		return &MessageServerKeyExchange{}, nil
	case TypeCertificateRequest:
		return &MessageCertificateRequest{}, nil
	case TypeServerHelloDone:
		return &MessageServerHelloDone{}, nil
	case TypeCertificateVerify:
		return &MessageCertificateVerify{}, nil
	case TypeClientKeyExchange:
		return &MessageClientKeyExchange{}, nil
	case TypeFinished:
		return &MessageFinished{}, nil
	case TypeKeyUpdate:
		return &MessageKeyUpdate{}, nil
	default:
		return nil, errInvalidHandshakeType
	}
}

// FindMessageLength reads only the 4-byte handshake header from data (which
// may be shorter than the full message) and returns the total on-wire
// length (header included), or ok=false if fewer than 4 bytes are
// available yet. Used by the record layer's defragmenter to know how many
// more bytes to gather before a complete handshake message can be parsed.
func FindMessageLength(data []byte) (length int, ok bool) {
	if len(data) < 4 {
		return 0, false
	}
	var h Header
	if err := h.Unmarshal(data); err != nil {
		return 0, false
	}
	return h.Size() + int(h.Length), true
}
