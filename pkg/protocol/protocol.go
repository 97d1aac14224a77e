// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package protocol implements the TLS record layer's content types and
// protocol version identifiers shared by every content kind the record
// layer multiplexes (RFC 5246 Section 6.2.1, RFC 8446 Section 5.1).
package protocol

import "fmt"

// Version is the record layer's advertised protocol version. TLS 1.3
// records always carry the legacy value 0x0303 (the wire value never
// advances past TLS 1.2; the real negotiated version travels in the
// supported_versions extension, RFC 8446 Section 4.1.2).
type Version struct {
	Major, Minor uint8
}

// Equal reports whether two versions are the same wire value.
func (v Version) Equal(o Version) bool {
	return v.Major == o.Major && v.Minor == o.Minor
}

// String implements fmt.Stringer
func (v Version) String() string {
	switch {
	case v.Equal(Version1_0):
		return "TLS1.0"
	case v.Equal(Version1_1):
		return "TLS1.1"
	case v.Equal(Version1_2):
		return "TLS1.2"
	case v.Equal(Version1_3):
		return "TLS1.3"
	default:
		return fmt.Sprintf("Unknown(%d.%d)", v.Major, v.Minor)
	}
}

// Wire version values, RFC 8446 Section 4.2.1 / Appendix D.
//
//nolint:revive
var (
	Version1_0 = Version{Major: 0x03, Minor: 0x01}
	Version1_1 = Version{Major: 0x03, Minor: 0x02}
	Version1_2 = Version{Major: 0x03, Minor: 0x03}
	Version1_3 = Version{Major: 0x03, Minor: 0x04}
)

// ContentType represents the IANA Registered ContentTypes used by DTLS
//
// https://tools.ietf.org/html/rfc5246#section-6.2.1
type ContentType byte

// ContentType enums
const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
	ContentTypeHeartbeat        ContentType = 24
)

func (c ContentType) String() string {
	switch c {
	case ContentTypeChangeCipherSpec:
		return "ChangeCipherSpec"
	case ContentTypeAlert:
		return "Alert"
	case ContentTypeHandshake:
		return "Handshake"
	case ContentTypeApplicationData:
		return "ApplicationData"
	case ContentTypeHeartbeat:
		return "Heartbeat"
	default:
		return "Unknown ContentType"
	}
}

// Content represents the payload carried by one record, for every
// content type the record layer multiplexes.
type Content interface {
	ContentType() ContentType
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// ChangeCipherSpec is a legacy TLS 1.2 signal that the sender has switched
// to the newly negotiated keys. It is a single byte of value 1 and is a
// no-op in TLS 1.3 beyond middlebox-compatibility tolerance.
//
// https://tools.ietf.org/html/rfc5246#section-7.1
type ChangeCipherSpec struct{}

// ContentType returns the ContentType of this content
func (c ChangeCipherSpec) ContentType() ContentType { return ContentTypeChangeCipherSpec }

// Marshal encodes the ChangeCipherSpec
func (c *ChangeCipherSpec) Marshal() ([]byte, error) {
	return []byte{0x01}, nil
}

// Unmarshal populates the ChangeCipherSpec from encoded data
func (c *ChangeCipherSpec) Unmarshal(data []byte) error {
	if len(data) != 1 || data[0] != 0x01 {
		return errInvalidCipherSpec
	}
	return nil
}

// ApplicationData is the content type carrying opaque bytes to/from the
// application above the record layer.
type ApplicationData struct {
	Data []byte
}

// ContentType returns the ContentType of this content
func (a ApplicationData) ContentType() ContentType { return ContentTypeApplicationData }

// Marshal encodes the ApplicationData
func (a *ApplicationData) Marshal() ([]byte, error) {
	return append([]byte{}, a.Data...), nil
}

// Unmarshal populates the ApplicationData from encoded data
func (a *ApplicationData) Unmarshal(data []byte) error {
	a.Data = append([]byte{}, data...)
	return nil
}
